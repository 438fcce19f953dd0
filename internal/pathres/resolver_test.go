package pathres

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlauncher/internal/launcherr"
)

func syntheticModule(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	return root, filepath.Join(root, "Data", "F4SE", "Plugins", "MantellaLauncher.dll")
}

func TestAncestorDirectoryLevels(t *testing.T) {
	root, module := syntheticModule(t)
	r := New(WithLocator(func() (string, error) { return module, nil }))

	want := []string{
		module,
		filepath.Join(root, "Data", "F4SE", "Plugins"),
		filepath.Join(root, "Data", "F4SE"),
		filepath.Join(root, "Data"),
		root,
	}
	for levels, expected := range want {
		got, err := r.AncestorDirectory(levels)
		require.NoError(t, err, "levels=%d", levels)
		assert.Equal(t, expected, got, "levels=%d", levels)
	}
}

func TestAncestorAtRootIsIdempotent(t *testing.T) {
	root := string(filepath.Separator)
	if vol := filepath.VolumeName(t.TempDir()); vol != "" {
		root = vol + root
	}
	file := filepath.Join(root, "plugin.dll")

	assert.Equal(t, root, Ancestor(file, 1))
	assert.Equal(t, root, Ancestor(file, 2))
	assert.Equal(t, root, Ancestor(file, 10))
}

func TestPluginAndRootDirectories(t *testing.T) {
	root, module := syntheticModule(t)
	r := New(WithLocator(func() (string, error) { return module, nil }))

	plugin, err := r.PluginDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(module), plugin)

	top, err := r.RootDirectory()
	require.NoError(t, err)
	assert.Equal(t, root, top)

	exe, err := r.TargetExecutable("MantellaSoftware", "Mantella.exe")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(plugin, "MantellaSoftware", "Mantella.exe"), exe)
}

func TestWithLevels(t *testing.T) {
	root, module := syntheticModule(t)
	r := New(WithLocator(func() (string, error) { return module, nil }), WithLevels(2, 3))

	plugin, err := r.PluginDirectory()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Data", "F4SE"), plugin)
}

func TestResolutionFailure(t *testing.T) {
	r := New(WithLocator(func() (string, error) { return "", errors.New("no module owns address") }))

	_, err := r.AncestorDirectory(1)
	assert.ErrorIs(t, err, launcherr.ErrResolution)

	r = New(WithLocator(func() (string, error) { return "", nil }))
	_, err = r.PluginDirectory()
	assert.ErrorIs(t, err, launcherr.ErrResolution)
}

func TestNegativeLevels(t *testing.T) {
	_, module := syntheticModule(t)
	r := New(WithLocator(func() (string, error) { return module, nil }))

	_, err := r.AncestorDirectory(-1)
	assert.ErrorIs(t, err, launcherr.ErrResolution)
}

func TestModulePathIsQueriedEachCall(t *testing.T) {
	calls := 0
	r := New(WithLocator(func() (string, error) {
		calls++
		return filepath.Join(t.TempDir(), "a", "b.dll"), nil
	}))

	_, _ = r.PluginDirectory()
	_, _ = r.RootDirectory()
	assert.Equal(t, 2, calls)
}

func TestModulePathOfTestBinary(t *testing.T) {
	path, err := New().ModulePath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}
