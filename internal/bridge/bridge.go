// Package bridge is the boundary between the game host and the supervisor.
// Nothing that happens behind it escapes to the caller as a panic.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mlauncher/internal/ipc"
	"mlauncher/internal/supervisor"
)

// Runner runs launch attempts. *supervisor.Supervisor implements it.
type Runner interface {
	GameReady(ctx context.Context) supervisor.Result
	Launch(ctx context.Context) supervisor.Result
}

type runnerBox struct{ r Runner }

var errNoRunner = errors.New("no supervisor configured")

// Bridge forwards host events to the current Runner.
type Bridge struct {
	runner atomic.Pointer[runnerBox]
	last   atomic.Pointer[supervisor.Result]
	log    zerolog.Logger
}

// New returns a Bridge forwarding to r.
func New(r Runner, log *zerolog.Logger) *Bridge {
	b := &Bridge{log: zerolog.Nop()}
	if log != nil {
		b.log = log.With().Str("component", "bridge").Logger()
	}
	b.Swap(r)
	return b
}

// Swap replaces the Runner. Attempts already running finish on the old one.
func (b *Bridge) Swap(r Runner) {
	b.runner.Store(&runnerBox{r: r})
}

// GameDataReady handles the game-ready notification: launch only if no
// instance is running.
func (b *Bridge) GameDataReady(ctx context.Context) supervisor.Result {
	return b.call(ctx, supervisor.TriggerGameReady)
}

// Launch handles the scripted launch call: replace any running instance.
func (b *Bridge) Launch(ctx context.Context) bool {
	res := b.call(ctx, supervisor.TriggerLaunch)
	return res.OK()
}

// Last returns the most recent result.
func (b *Bridge) Last() (supervisor.Result, bool) {
	if r := b.last.Load(); r != nil {
		return *r, true
	}
	return supervisor.Result{}, false
}

func (b *Bridge) call(ctx context.Context, trigger supervisor.Trigger) (res supervisor.Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Stringer("trigger", trigger).Msg("launch attempt panicked")
			res = supervisor.Result{Trigger: trigger, State: supervisor.Failed, Err: fmt.Errorf("panic: %v", r)}
		}
		b.last.Store(&res)
	}()

	box := b.runner.Load()
	if box == nil || box.r == nil {
		return supervisor.Result{Trigger: trigger, State: supervisor.Failed, Err: errNoRunner}
	}
	if trigger == supervisor.TriggerLaunch {
		return box.r.Launch(ctx)
	}
	return box.r.GameReady(ctx)
}

// Register binds game_ready and launch requests on s to the bridge.
func (b *Bridge) Register(s *ipc.Server) {
	s.RegisterHandler(ipc.MsgGameReady, ipc.HandlerFunc(func(msg *ipc.Message) (*ipc.Message, error) {
		b.log.Debug().Str("source", string(msg.Source)).Msg("game_ready request")
		res := b.GameDataReady(context.Background())
		return ipc.NewMessage(ipc.MsgResult, ipc.RoleHost).WithPayload(ResultPayload(res)), nil
	}))
	s.RegisterHandler(ipc.MsgLaunch, ipc.HandlerFunc(func(msg *ipc.Message) (*ipc.Message, error) {
		b.log.Debug().Str("source", string(msg.Source)).Msg("launch request")
		res := b.call(context.Background(), supervisor.TriggerLaunch)
		return ipc.NewMessage(ipc.MsgResult, ipc.RoleHost).WithPayload(ResultPayload(res)), nil
	}))
}

// ResultPayload converts an attempt result to its wire form.
func ResultPayload(res supervisor.Result) *ipc.ResultPayload {
	p := &ipc.ResultPayload{
		Success: res.OK(),
		Attempt: res.ID,
		State:   res.State.String(),
		PID:     res.PID,
	}
	switch {
	case res.Err != nil:
		p.Message = res.Err.Error()
	case len(res.Warnings) > 0:
		p.Message = errors.Join(res.Warnings...).Error()
	}
	return p
}
