package bridge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlauncher/internal/ipc"
	"mlauncher/internal/launcherr"
	"mlauncher/internal/supervisor"
)

type stubRunner struct {
	ready, launch supervisor.Result
	calls         []supervisor.Trigger
	panicWith     any
}

func (s *stubRunner) GameReady(context.Context) supervisor.Result {
	s.calls = append(s.calls, supervisor.TriggerGameReady)
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.ready
}

func (s *stubRunner) Launch(context.Context) supervisor.Result {
	s.calls = append(s.calls, supervisor.TriggerLaunch)
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.launch
}

func TestLaunchReturnsSuccessFlag(t *testing.T) {
	r := &stubRunner{launch: supervisor.Result{State: supervisor.Done, PID: 9}}
	b := New(r, nil)

	assert.True(t, b.Launch(context.Background()))

	r.launch = supervisor.Result{State: supervisor.Failed, Err: errors.New("spawn failed")}
	assert.False(t, b.Launch(context.Background()))

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, supervisor.Failed, last.State)
	assert.Equal(t, []supervisor.Trigger{supervisor.TriggerLaunch, supervisor.TriggerLaunch}, r.calls)
}

func TestGameDataReadyUsesPassivePath(t *testing.T) {
	r := &stubRunner{ready: supervisor.Result{State: supervisor.Done, Found: 1}}
	b := New(r, nil)

	res := b.GameDataReady(context.Background())
	assert.True(t, res.OK())
	assert.Equal(t, []supervisor.Trigger{supervisor.TriggerGameReady}, r.calls)
}

func TestEachNotificationRunsTheCheck(t *testing.T) {
	r := &stubRunner{ready: supervisor.Result{State: supervisor.Done}}
	b := New(r, nil)

	b.GameDataReady(context.Background())
	b.GameDataReady(context.Background())
	assert.Len(t, r.calls, 2)
}

func TestPanicDoesNotEscape(t *testing.T) {
	b := New(&stubRunner{panicWith: "boom"}, nil)

	assert.NotPanics(t, func() {
		assert.False(t, b.Launch(context.Background()))
	})
	res := b.GameDataReady(context.Background())
	assert.Equal(t, supervisor.Failed, res.State)
	assert.ErrorContains(t, res.Err, "boom")
}

func TestNoRunner(t *testing.T) {
	b := New(nil, nil)
	assert.False(t, b.Launch(context.Background()))

	_, ok := b.Last()
	assert.True(t, ok)
}

func TestSwap(t *testing.T) {
	first := &stubRunner{launch: supervisor.Result{State: supervisor.Failed}}
	second := &stubRunner{launch: supervisor.Result{State: supervisor.Done}}
	b := New(first, nil)

	assert.False(t, b.Launch(context.Background()))
	b.Swap(second)
	assert.True(t, b.Launch(context.Background()))
	assert.Len(t, first.calls, 1)
	assert.Len(t, second.calls, 1)
}

func TestResultPayload(t *testing.T) {
	p := ResultPayload(supervisor.Result{ID: "a1", State: supervisor.Done, PID: 5})
	assert.Equal(t, &ipc.ResultPayload{Success: true, Attempt: "a1", State: "done", PID: 5}, p)

	p = ResultPayload(supervisor.Result{
		State: supervisor.Failed,
		Err:   launcherr.New(launcherr.KindSpawn, "create process", errors.New("not found")),
	})
	assert.False(t, p.Success)
	assert.Equal(t, "failed", p.State)
	assert.Contains(t, p.Message, "spawn error")
}

func TestRegisterServesRequests(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "b.sock")
	if runtime.GOOS == "windows" {
		endpoint = fmt.Sprintf(`\\.\pipe\mlauncher-bridge-test-%d`, time.Now().UnixNano())
	}
	srv := ipc.NewServer(endpoint)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	r := &stubRunner{
		ready:  supervisor.Result{State: supervisor.Done, Found: 1},
		launch: supervisor.Result{State: supervisor.Done, PID: 77},
	}
	New(r, nil).Register(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := ipc.Dial(ctx, endpoint, ipc.RoleCLI, ipc.WithRetry(20*time.Millisecond, 10))
	require.NoError(t, err)
	defer c.Close()

	res, err := c.Call(ctx, ipc.MsgLaunch)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 77, res.PID)

	res, err = c.Call(ctx, ipc.MsgGameReady)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.PID)
}
