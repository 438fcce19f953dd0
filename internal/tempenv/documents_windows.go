//go:build windows

package tempenv

import (
	"golang.org/x/sys/windows"
)

// DocumentsDir returns the user's Documents known folder.
func DocumentsDir() (string, error) {
	return windows.KnownFolderPath(windows.FOLDERID_Documents, 0)
}
