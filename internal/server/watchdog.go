package server

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Watchdog periodically re-runs the passive check so a companion that
// crashed mid-session comes back.
type Watchdog struct {
	cron    *cron.Cron
	run     func()
	entry   cron.EntryID
	spec    string
	mu      sync.Mutex
	started bool
}

// NewWatchdog creates a stopped watchdog with no schedule.
func NewWatchdog(run func(), logger zerolog.Logger) *Watchdog {
	log := cronLogger{logger: logger.With().Str("component", "watchdog").Logger()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	return &Watchdog{cron: c, run: run}
}

// Schedule replaces the schedule. An empty spec disables the watchdog.
func (w *Watchdog) Schedule(spec string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.entry != 0 {
		w.cron.Remove(w.entry)
		w.entry = 0
		w.spec = ""
	}
	if spec == "" {
		return nil
	}
	id, err := w.cron.AddFunc(spec, w.run)
	if err != nil {
		return err
	}
	w.entry = id
	w.spec = spec
	return nil
}

// Spec returns the active schedule.
func (w *Watchdog) Spec() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spec
}

// Start runs the scheduler in the background.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		w.cron.Start()
		w.started = true
	}
}

// Stop stops scheduling; the returned context is done when a running check
// has finished.
func (w *Watchdog) Stop() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.started = false
	return w.cron.Stop()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
