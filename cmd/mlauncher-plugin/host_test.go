//go:build cgo

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlauncher/internal/config"
	"mlauncher/internal/ipc"
)

func TestPluginServesAndStopsEndpoint(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix socket endpoint")
	}
	t.Cleanup(config.Reset)

	dir := t.TempDir()
	endpoint := filepath.Join(dir, "p.sock")
	require.NoError(t, os.WriteFile(config.PluginConfigPath(dir), []byte("bridge:\n  endpoint: "+endpoint+"\n"), 0o600))

	p := newPlugin(dir)
	require.NotNil(t, p.ipc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := ipc.Dial(ctx, endpoint, ipc.RoleCLI, ipc.WithRetry(20*time.Millisecond, 10))
	require.NoError(t, err)
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())

	require.NoError(t, p.close())
	assert.Nil(t, p.ipc)
	assert.FileExists(t, filepath.Join(dir, logName))

	_, err = ipc.Dial(ctx, endpoint, ipc.RoleCLI)
	assert.Error(t, err)
}

func TestPluginWithoutEndpoint(t *testing.T) {
	t.Cleanup(config.Reset)

	p := newPlugin(t.TempDir())
	assert.Nil(t, p.ipc)
	assert.NotNil(t, p.bridge)
	assert.NoError(t, p.close())
}
