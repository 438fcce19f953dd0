//go:build !windows

package pathres

import (
	"os"
	"path/filepath"
)

// ModulePath returns the running executable, with symlinks resolved.
func ModulePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}
