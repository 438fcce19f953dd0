package spawn

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlauncher/internal/launcherr"
)

func TestStartRejectsEmptyPath(t *testing.T) {
	_, err := New().Start(context.Background(), Spec{})
	assert.Error(t, err)
}

func TestStartHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Start(ctx, Spec{Path: "/bin/true"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartMissingExecutableCarriesCode(t *testing.T) {
	_, err := New().Start(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "Mantella.exe")})
	require.Error(t, err)
	assert.NotZero(t, launcherr.Code(err))
}

func TestStartRunsInDirWithArgsAndEnv(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	script := filepath.Join(dir, "companion.sh")
	body := "#!" + sh + "\necho \"$PWD $1 $MLAUNCHER_SPAWN_TEST\" > " + out + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))
	t.Setenv("MLAUNCHER_SPAWN_TEST", "inherited")

	pid, err := New().Start(context.Background(), Spec{Path: script, Args: []string{"--integrated"}, Dir: dir})
	require.NoError(t, err)
	assert.Positive(t, pid)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && strings.HasSuffix(string(data), "\n")
	}, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	realDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	fields := strings.Fields(string(data))
	require.Len(t, fields, 3)
	assert.Contains(t, []string{dir, realDir}, fields[0])
	assert.Equal(t, "--integrated", fields[1])
	assert.Equal(t, "inherited", fields[2])
}

func TestFuncAdapter(t *testing.T) {
	var got Spec
	s := Func(func(_ context.Context, spec Spec) (int, error) {
		got = spec
		return 42, nil
	})
	pid, err := s.Start(context.Background(), Spec{Path: "x"})
	require.NoError(t, err)
	assert.Equal(t, 42, pid)
	assert.Equal(t, "x", got.Path)
}
