package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Mantella", cfg.Companion.Product)
	assert.Equal(t, "Mantella.exe", cfg.Companion.Executable)
	assert.Equal(t, "MantellaSoftware", cfg.Companion.SubPath)
	assert.Equal(t, "--integrated", cfg.Companion.LaunchFlag)
	assert.Equal(t, 1, cfg.Companion.PluginLevels)
	assert.Equal(t, 4, cfg.Companion.RootLevels)
	assert.Equal(t, []string{"OneDrive"}, cfg.Temp.SyncTokens)
	assert.Equal(t, []string{"TEMP", "TMP"}, cfg.Temp.EnvVars)
	assert.True(t, cfg.Termination.ContinueOnFailure)
	assert.Equal(t, time.Duration(0), cfg.Termination.GetWaitTimeout())
	assert.Equal(t, 50*time.Millisecond, cfg.Termination.GetPollInterval())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_DefaultsMatchDefault(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
companion:
  executable: Helper.exe
  subpath: bin
termination:
  continue_on_failure: false
  wait_timeout: 5s
temp:
  sync_tokens: [OneDrive, Dropbox]
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "Helper.exe", cfg.Companion.Executable)
	assert.Equal(t, "bin", cfg.Companion.SubPath)
	assert.Equal(t, "Mantella", cfg.Companion.Product, "unset keys keep defaults")
	assert.False(t, cfg.Termination.ContinueOnFailure)
	assert.Equal(t, 5*time.Second, cfg.Termination.GetWaitTimeout())
	assert.Equal(t, []string{"OneDrive", "Dropbox"}, cfg.Temp.SyncTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, configFile, Path())
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("MLAUNCHER_COMPANION_EXECUTABLE", "Other.exe")
	t.Setenv("MLAUNCHER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Other.exe", cfg.Companion.Executable)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("companion: [unclosed"), 0o644))

	_, err := Load(configFile)
	assert.Error(t, err)
}

func TestLoad_NonexistentFile(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Mantella.exe", cfg.Companion.Executable)
}

func TestLoad_UnreadableFile(t *testing.T) {
	Reset()
	defer Reset()

	// A directory exists but cannot be read as a file.
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_RejectsExecutablePath(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("MLAUNCHER_COMPANION_EXECUTABLE", "sub/Mantella.exe")

	_, err := Load("")
	assert.ErrorContains(t, err, "must be a file name")
}

func TestSaveToRoundTrip(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Termination.WaitTimeout = "10s"
	cfg.Watchdog.Schedule = "*/30 * * * * *"

	require.NoError(t, SaveTo(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestReload(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))
	_, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("companion:\n  executable: B.exe\n"), 0o644))
	cfg, err := Reload(path)
	require.NoError(t, err)
	assert.Equal(t, "B.exe", cfg.Companion.Executable)
	assert.Equal(t, "info", cfg.Log.Level, "keys removed from the file fall back to defaults")
	assert.Same(t, cfg, GetConfig())
}

func TestDocumentsTempSubpath(t *testing.T) {
	c := TempConfig{}
	assert.Equal(t, filepath.Join("My Games", "Mantella", "data", "tmp"), c.DocumentsTempSubpath("Mantella"))

	c.DocumentsSubpath = "Scratch/tmp"
	assert.Equal(t, filepath.Join("Scratch", "tmp"), c.DocumentsTempSubpath("Mantella"))
}

func TestTerminationDurations(t *testing.T) {
	c := TerminationConfig{WaitTimeout: "bogus", PollInterval: "-1s"}
	assert.Equal(t, time.Duration(0), c.GetWaitTimeout())
	assert.Equal(t, 50*time.Millisecond, c.GetPollInterval())

	c = TerminationConfig{WaitTimeout: "2s", PollInterval: "10ms"}
	assert.Equal(t, 2*time.Second, c.GetWaitTimeout())
	assert.Equal(t, 10*time.Millisecond, c.GetPollInterval())
}
