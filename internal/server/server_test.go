package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlauncher/internal/config"
	"mlauncher/internal/console"
	"mlauncher/internal/ipc"
	"mlauncher/internal/lock"
	"mlauncher/internal/metrics"
	"mlauncher/internal/pathres"
	"mlauncher/internal/procreg/procregtest"
	"mlauncher/internal/spawn"
	"mlauncher/internal/supervisor"
	"mlauncher/internal/tempenv"
)

type staticTemp string

func (t staticTemp) Prepare() (tempenv.Choice, error) {
	return tempenv.Choice{Location: tempenv.LocationSystemTemp, Path: string(t)}, nil
}

type harness struct {
	reg    *procregtest.Registry
	spawns atomic.Int32
	built  atomic.Int32
	dir    string
}

func newHarness(t *testing.T, procs ...procregtest.Process) *harness {
	return &harness{reg: procregtest.New(procs...), dir: t.TempDir()}
}

func (h *harness) factory(cfg *config.Config, con console.Console, m *metrics.Metrics, log *zerolog.Logger) *supervisor.Supervisor {
	h.built.Add(1)
	module := filepath.Join(h.dir, "Data", "F4SE", "Plugins", "MantellaLauncher.dll")
	return supervisor.New(supervisor.OptionsFromConfig(cfg), supervisor.Deps{
		Paths:    pathres.New(pathres.WithLocator(func() (string, error) { return module, nil })),
		Temp:     staticTemp(filepath.Join(h.dir, "tmp")),
		Registry: h.reg,
		Spawner: spawn.Func(func(context.Context, spawn.Spec) (int, error) {
			h.spawns.Add(1)
			return 100 + int(h.spawns.Load()), nil
		}),
		Lock:    lock.New(h.dir, cfg.Companion.Executable),
		Console: con,
		Metrics: m,
		Log:     log,
	})
}

func testEndpoint(t *testing.T) string {
	if runtime.GOOS == "windows" {
		return fmt.Sprintf(`\\.\pipe\mlauncher-server-test-%d`, time.Now().UnixNano())
	}
	return filepath.Join(t.TempDir(), "h.sock")
}

func newTestServer(t *testing.T, h *harness, cfg *config.Config, path string) *Server {
	t.Helper()
	s, err := NewServer(Config{
		ConfigPath:    path,
		Config:        cfg,
		NewSupervisor: h.factory,
		Console:       &console.Recorder{},
		Logger:        zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Companion.Executable = ""
	_, err := NewServer(Config{Config: cfg})
	assert.Error(t, err)

	_, err = NewServer(Config{})
	assert.Error(t, err)
}

func TestReadyReflectsRunningCompanion(t *testing.T) {
	h := newHarness(t)
	s := newTestServer(t, h, config.Default(), "")
	handler := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, handler, "/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, handler, "/ready").Code)

	h.reg.Add(procregtest.Process{PID: 10, Name: "Mantella.exe"})
	assert.Equal(t, http.StatusOK, get(t, handler, "/ready").Code)
	assert.Zero(t, h.reg.OpenHandles())
}

func TestStatusAndMetricsAfterAttempt(t *testing.T) {
	h := newHarness(t)
	s := newTestServer(t, h, config.Default(), "")
	handler := s.Handler()

	rec := get(t, handler, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var before StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	assert.Equal(t, "Mantella.exe", before.Executable)
	assert.Nil(t, before.Last)

	res := s.Bridge().GameDataReady(context.Background())
	require.True(t, res.OK(), "err: %v", res.Err)

	rec = get(t, handler, "/status")
	var after StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	require.NotNil(t, after.Last)
	assert.Equal(t, "ready", after.Last.Trigger)
	assert.Equal(t, "done", after.Last.State)
	assert.Equal(t, res.PID, after.Last.PID)
	assert.Contains(t, after.Last.States, "spawning")

	body := get(t, handler, "/metrics").Body.String()
	assert.Contains(t, body, `mlauncher_attempts_total{result="done",trigger="ready"} 1`)
	assert.Contains(t, body, "mlauncher_healthcheck_status")
}

func TestServeIPCRequests(t *testing.T) {
	h := newHarness(t, procregtest.Process{PID: 10, Name: "Mantella.exe"})
	cfg := config.Default()
	cfg.Bridge.Endpoint = testEndpoint(t)
	cfg.Status.Listen = "127.0.0.1:0"

	s := newTestServer(t, h, cfg, "")
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	require.NotEmpty(t, s.StatusAddr())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := ipc.Dial(ctx, s.Endpoint(), ipc.RoleCLI, ipc.WithRetry(20*time.Millisecond, 10))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Call(ctx, ipc.MsgGameReady)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.PID)
	assert.True(t, h.reg.Running(10))

	res, err = c.Call(ctx, ipc.MsgLaunch)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotZero(t, res.PID)
	assert.False(t, h.reg.Running(10))

	resp, err := http.Get("http://" + s.StatusAddr() + "/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestReloadSwapsSupervisor(t *testing.T) {
	t.Cleanup(config.Reset)
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	require.NoError(t, config.SaveTo(cfg, path))
	loaded, err := config.Load(path)
	require.NoError(t, err)

	s := newTestServer(t, h, loaded, path)
	assert.Equal(t, int32(1), h.built.Load())

	cfg.Companion.Executable = "Other.exe"
	require.NoError(t, config.SaveTo(cfg, path))
	require.NoError(t, s.Reload())

	assert.Equal(t, "Other.exe", s.Config().Companion.Executable)
	assert.Equal(t, int32(2), h.built.Load())

	require.NoError(t, os.WriteFile(path, []byte("companion: ["), 0o644))
	assert.Error(t, s.Reload())
	assert.Equal(t, "Other.exe", s.Config().Companion.Executable)
}

func TestConfigWatcherTriggersReload(t *testing.T) {
	t.Cleanup(config.Reset)
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Bridge.Endpoint = testEndpoint(t)
	require.NoError(t, config.SaveTo(cfg, path))
	loaded, err := config.Load(path)
	require.NoError(t, err)

	s := newTestServer(t, h, loaded, path)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })

	cfg.Companion.Executable = "Watched.exe"
	require.NoError(t, config.SaveTo(cfg, path))

	assert.Eventually(t, func() bool {
		return s.Config().Companion.Executable == "Watched.exe"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchdogRunsPassiveCheck(t *testing.T) {
	var ticks atomic.Int32
	w := NewWatchdog(func() { ticks.Add(1) }, zerolog.Nop())

	assert.Error(t, w.Schedule("not a schedule"))
	require.NoError(t, w.Schedule("@every 1s"))
	assert.Equal(t, "@every 1s", w.Spec())

	w.Start()
	defer w.Stop()

	assert.Eventually(t, func() bool { return ticks.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, w.Schedule(""))
	assert.Empty(t, w.Spec())
}
