package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigDir(t *testing.T) {
	dir, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".mlauncher")
	if dir != expected {
		t.Errorf("DefaultConfigDir() = %q, want %q", dir, expected)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error: %v", err)
	}

	if !strings.HasSuffix(path, filepath.Join(".mlauncher", "config.yaml")) {
		t.Errorf("DefaultConfigPath() = %q, want suffix .mlauncher/config.yaml", path)
	}
}

func TestPluginConfigPath(t *testing.T) {
	dir := filepath.Join("games", "Data", "F4SE", "Plugins")
	got := PluginConfigPath(dir)
	if got != filepath.Join(dir, "mlauncher.yaml") {
		t.Errorf("PluginConfigPath() = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty path", input: "", expected: ""},
		{name: "tilde only", input: "~", expected: home},
		{name: "tilde with subpath", input: "~/test/path", expected: filepath.Join(home, "test/path")},
		{name: "absolute path", input: "/absolute/path", expected: "/absolute/path"},
		{name: "relative path", input: "relative/path", expected: "relative/path"},
		{name: "tilde in middle", input: "/some/~/path", expected: "/some/~/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error = %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
