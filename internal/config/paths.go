// Package config provides launcher configuration loading and path utilities.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PluginConfigName is the config file looked up next to the launcher module.
const PluginConfigName = "mlauncher.yaml"

// DefaultConfigDir returns the default configuration directory (~/.mlauncher).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".mlauncher"), nil
}

// DefaultConfigPath returns the default configuration file path (~/.mlauncher/config.yaml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// PluginConfigPath returns the config file path for a module loaded from moduleDir.
func PluginConfigPath(moduleDir string) string {
	return filepath.Join(moduleDir, PluginConfigName)
}

// ExpandPath expands ~ prefix in path to user home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}

	if path == "~" {
		return os.UserHomeDir()
	}

	return path, nil
}
