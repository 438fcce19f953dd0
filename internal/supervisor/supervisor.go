// Package supervisor runs the discover, terminate, prepare and spawn protocol
// that keeps at most one companion instance alive next to the game.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mlauncher/internal/console"
	"mlauncher/internal/launcherr"
	"mlauncher/internal/metrics"
	"mlauncher/internal/procreg"
	"mlauncher/internal/spawn"
	"mlauncher/internal/tempenv"
)

// Paths resolves the launcher's own location. *pathres.Resolver implements it.
type Paths interface {
	PluginDirectory() (string, error)
	RootDirectory() (string, error)
	TargetExecutable(subpath, exe string) (string, error)
}

// TempPreparer negotiates and exports the temp directory. *tempenv.Negotiator
// implements it.
type TempPreparer interface {
	Prepare() (tempenv.Choice, error)
}

// Locker serializes attempts across processes. *lock.Locker implements it.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Options is the launch policy.
type Options struct {
	Executable   string
	SubPath      string
	LaunchFlag   string
	ConsoleTitle string

	// ContinueOnFailure keeps launching when a previous instance could not be
	// terminated.
	ContinueOnFailure bool

	// WaitTimeout bounds the wait for a terminated instance to exit. Zero waits
	// until it is gone.
	WaitTimeout time.Duration
}

// Deps are the collaborators of a Supervisor. Console, Metrics and Log may be nil.
type Deps struct {
	Paths    Paths
	Temp     TempPreparer
	Registry procreg.Registry
	Spawner  spawn.Spawner
	Lock     Locker
	Console  console.Console
	Metrics  *metrics.Metrics
	Log      *zerolog.Logger
}

// Result describes one finished attempt.
type Result struct {
	ID      string  `json:"id"`
	Trigger Trigger `json:"trigger"`
	States  []State `json:"states"`
	State   State   `json:"state"`

	Target     string         `json:"target,omitempty"`
	Found      int            `json:"found"`
	Terminated int            `json:"terminated"`
	TempDir    tempenv.Choice `json:"-"`
	PID        int            `json:"pid,omitempty"`
	Warnings   []error        `json:"-"`
	Err        error          `json:"-"`

	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the attempt ended in Done.
func (r Result) OK() bool {
	return r.State == Done
}

// Spawned reports whether the attempt created a process.
func (r Result) Spawned() bool {
	return r.PID != 0
}

// Supervisor runs launch attempts. Attempts run on the caller's goroutine;
// concurrent callers are serialized by the lock.
type Supervisor struct {
	opts Options
	deps Deps
	log  zerolog.Logger
}

// New returns a Supervisor.
func New(opts Options, deps Deps) *Supervisor {
	if deps.Console == nil {
		deps.Console = console.Discard
	}
	log := zerolog.Nop()
	if deps.Log != nil {
		log = deps.Log.With().Str("exe", opts.Executable).Logger()
	}
	return &Supervisor{opts: opts, deps: deps, log: log}
}

// Executable returns the supervised executable name.
func (s *Supervisor) Executable() string {
	return s.opts.Executable
}

// Launch terminates every running instance, then starts a new one.
func (s *Supervisor) Launch(ctx context.Context) Result {
	return s.run(ctx, TriggerLaunch)
}

// GameReady starts the companion only if no instance is running.
func (s *Supervisor) GameReady(ctx context.Context) Result {
	return s.run(ctx, TriggerGameReady)
}

// Discover lists running instances without changing anything. The caller
// owns the returned handles.
func (s *Supervisor) Discover(ctx context.Context) (procreg.Matches, error) {
	m, err := s.deps.Registry.FindByExecutableName(ctx, s.opts.Executable)
	if err != nil {
		return procreg.Matches{}, launcherr.New(launcherr.KindDiscovery, "snapshot processes", err)
	}
	s.deps.Metrics.SetDiscovered(m.Len())
	return m, nil
}

// attempt is the mutable state of one run.
type attempt struct {
	res Result
	log zerolog.Logger
}

func (a *attempt) enter(st State) {
	a.res.States = append(a.res.States, st)
	a.res.State = st
	a.log.Debug().Stringer("state", st).Msg("state transition")
}

func (a *attempt) fail(err error) {
	a.res.Err = err
	a.enter(Failed)
}

func (a *attempt) warn(err error) {
	a.res.Warnings = append(a.res.Warnings, err)
	a.log.Warn().Err(err).Msg("termination warning")
}

func (s *Supervisor) run(ctx context.Context, trigger Trigger) (res Result) {
	a := &attempt{res: Result{
		ID:      uuid.NewString(),
		Trigger: trigger,
		States:  []State{Idle},
		State:   Idle,
		Started: time.Now(),
	}}
	a.log = s.log.With().Str("attempt", a.res.ID).Stringer("trigger", trigger).Logger()
	a.log.Info().Msg("attempt started")

	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Msg("attempt panicked")
			a.fail(fmt.Errorf("panic: %v", r))
		}
		if a.res.State == Failed {
			s.reportFailure(a)
		}
		a.res.Duration = time.Since(a.res.Started)
		s.deps.Metrics.Attempt(trigger.String(), a.res.State.String())
		a.log.Info().
			Stringer("state", a.res.State).
			Int("found", a.res.Found).
			Int("pid", a.res.PID).
			Dur("duration", a.res.Duration).
			Msg("attempt finished")
		res = a.res
	}()

	s.execute(ctx, a)
	return a.res
}

func (s *Supervisor) execute(ctx context.Context, a *attempt) {
	exe := s.opts.Executable

	pluginDir, err := s.deps.Paths.PluginDirectory()
	if err != nil {
		a.fail(err)
		return
	}
	rootDir, err := s.deps.Paths.RootDirectory()
	if err != nil {
		a.fail(err)
		return
	}
	target, err := s.deps.Paths.TargetExecutable(s.opts.SubPath, exe)
	if err != nil {
		a.fail(err)
		return
	}
	a.res.Target = target
	a.log.Debug().Str("plugin_dir", pluginDir).Str("root_dir", rootDir).Str("target", target).Msg("paths resolved")

	release, err := s.deps.Lock.Acquire(ctx)
	if err != nil {
		a.fail(launcherr.New(launcherr.KindLock, "acquire launch lock", err))
		return
	}
	defer release()

	a.enter(Discovering)
	matches, err := s.Discover(ctx)
	if err != nil {
		a.fail(err)
		return
	}
	defer matches.Close()
	a.res.Found = matches.Len()

	a.enter(Deciding)
	if a.res.Trigger == TriggerGameReady && matches.Len() > 0 {
		if err := matches.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close process handles")
		}
		a.log.Info().Int("found", matches.Len()).Msg("instance already running, leaving it alone")
		s.deps.Console.PrintLine(fmt.Sprintf("Found running instance of %s. Not starting a new one. You can still restart it from the MCM.", exe))
		a.enter(Done)
		return
	}

	live := s.liveHandles(ctx, a, matches.Handles)
	if ok := s.terminateAll(ctx, a, matches.Denied, live); !ok && !s.opts.ContinueOnFailure {
		a.fail(errors.Join(a.res.Warnings...))
		return
	}

	a.enter(EnvPreparing)
	choice, err := s.deps.Temp.Prepare()
	if err != nil {
		a.fail(err)
		return
	}
	a.res.TempDir = choice

	a.enter(Spawning)
	s.deps.Console.PrintLine("Attempting to launch: " + target)
	var args []string
	if s.opts.LaunchFlag != "" {
		args = []string{s.opts.LaunchFlag}
	}
	pid, err := s.deps.Spawner.Start(ctx, spawn.Spec{
		Path:  target,
		Args:  args,
		Dir:   pluginDir,
		Title: s.opts.ConsoleTitle,
	})
	if err != nil {
		a.fail(launcherr.New(launcherr.KindSpawn, "create process", err).WithPath(target))
		return
	}
	a.res.PID = pid
	a.log.Info().Int("pid", pid).Str("temp", choice.Path).Msg("companion started")
	s.deps.Console.PrintLine(exe + " launched successfully!")
	a.enter(Done)
}

// liveHandles keeps the matches that still run. Handles of instances that
// exited since the snapshot are closed here. A failed liveness check counts as
// running.
func (s *Supervisor) liveHandles(ctx context.Context, a *attempt, handles []procreg.Handle) []procreg.Handle {
	var live []procreg.Handle
	for _, h := range handles {
		running, err := h.Running(ctx)
		if err == nil && !running {
			a.log.Debug().Int("pid", h.PID()).Msg("instance exited before termination")
			if err := h.Close(); err != nil {
				a.log.Warn().Err(err).Int("pid", h.PID()).Msg("close process handle")
			}
			continue
		}
		if err != nil {
			a.log.Debug().Err(err).Int("pid", h.PID()).Msg("liveness unknown, terminating")
		}
		live = append(live, h)
	}
	return live
}

// terminateAll enters Terminating once per instance and reports false if any
// of them may have survived. Every handle is closed.
func (s *Supervisor) terminateAll(ctx context.Context, a *attempt, denied []procreg.Denied, live []procreg.Handle) bool {
	exe := s.opts.Executable
	ok := true

	for _, d := range denied {
		a.enter(Terminating)
		ok = false
		s.deps.Metrics.Termination("failed")
		err := launcherr.New(launcherr.KindTermination, fmt.Sprintf("open pid %d", d.PID), d.Err)
		a.warn(err)
		s.deps.Console.PrintLine(fmt.Sprintf("Failed to terminate existing %s process. OpenProcess error: %d", exe, err.Code))
		if !s.opts.ContinueOnFailure {
			return false
		}
	}

	for _, h := range live {
		a.enter(Terminating)
		if !s.terminateOne(ctx, a, h) {
			ok = false
			if !s.opts.ContinueOnFailure {
				return false
			}
		}
	}
	return ok
}

func (s *Supervisor) terminateOne(ctx context.Context, a *attempt, h procreg.Handle) bool {
	exe := s.opts.Executable
	defer func() {
		if err := h.Close(); err != nil {
			a.log.Warn().Err(err).Int("pid", h.PID()).Msg("close process handle")
		}
	}()

	if err := h.Terminate(ctx); err != nil {
		s.deps.Metrics.Termination("failed")
		werr := launcherr.New(launcherr.KindTermination, fmt.Sprintf("terminate pid %d", h.PID()), err)
		a.warn(werr)
		s.deps.Console.PrintLine(fmt.Sprintf("Failed to terminate existing %s process. TerminateProcess error: %d", exe, werr.Code))
		return false
	}

	waitCtx := ctx
	if s.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.opts.WaitTimeout)
		defer cancel()
	}
	if err := h.Wait(waitCtx); err != nil {
		s.deps.Metrics.Termination("timeout")
		a.warn(launcherr.New(launcherr.KindTermination, fmt.Sprintf("wait pid %d", h.PID()), err))
		return false
	}

	a.res.Terminated++
	s.deps.Metrics.Termination("ok")
	a.log.Info().Int("pid", h.PID()).Msg("previous instance terminated")
	s.deps.Console.PrintLine(fmt.Sprintf("Existing %s process terminated.", exe))
	return true
}

func (s *Supervisor) reportFailure(a *attempt) {
	a.log.Error().Err(a.res.Err).Int("code", launcherr.Code(a.res.Err)).Msg("launch attempt failed")
	s.deps.Console.PrintLine(fmt.Sprintf("Failed to launch %s.", s.opts.Executable))
	if a.res.Err != nil {
		s.deps.Console.PrintLine(a.res.Err.Error())
	}
}
