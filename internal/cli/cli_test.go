package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"mlauncher/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(config.Reset)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	require.FileExists(t, path)

	_, err = execute(t, "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "executable: Mantella.exe")
	assert.Contains(t, out, "continue_on_failure: true")
}

func TestConfigGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("companion:\n  launch_flag: --standalone\n"), 0o600))

	out, err := execute(t, "--config", path, "config", "get", "companion.launch_flag")
	require.NoError(t, err)
	assert.Equal(t, "--standalone\n", out)

	_, err = execute(t, "--config", path, "config", "get", "companion.nope")
	assert.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "--config", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestNotifyRejectsUnknownRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "notify", "restart")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request")
}

func TestNotifyWithoutHost(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket endpoint")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("MLAUNCHER_BRIDGE_ENDPOINT", filepath.Join(dir, "missing.sock"))

	_, err := execute(t, "--config", path, "notify", "ready", "--timeout", "5s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}
