//go:build !windows

package tempenv

import (
	"os"
	"path/filepath"
)

// DocumentsDir returns $XDG_DOCUMENTS_DIR, or ~/Documents.
func DocumentsDir() (string, error) {
	if dir := os.Getenv("XDG_DOCUMENTS_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Documents"), nil
}
