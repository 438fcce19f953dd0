// Package procregtest provides an in-memory procreg.Registry for tests.
package procregtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mlauncher/internal/procreg"
)

// Process describes a fake process.
type Process struct {
	PID  int
	Name string
	// Survives makes Terminate succeed without the process exiting.
	Survives     bool
	TerminateErr error
	WaitErr      error
	// DenyOpen reports the process as found but unopenable.
	DenyOpen bool
	// Exited keeps the process in lookups while its handle reports it gone,
	// as when it exits between the snapshot and the liveness check.
	Exited bool
}

// Registry is a fake process table. It records every operation in order.
type Registry struct {
	mu      sync.Mutex
	procs   []*state
	findErr error
	open    int
	journal []string
}

type state struct {
	Process
	running bool
}

// New returns a registry seeded with procs, running unless marked Exited.
func New(procs ...Process) *Registry {
	r := &Registry{}
	for _, p := range procs {
		r.Add(p)
	}
	return r
}

// Add registers a process.
func (r *Registry) Add(p Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs = append(r.procs, &state{Process: p, running: !p.Exited})
}

// FailFind makes the next lookups fail with err.
func (r *Registry) FailFind(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

// Record appends an external event to the journal so tests can check ordering
// against registry operations.
func (r *Registry) Record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, event)
}

// Journal returns the recorded operations, e.g. "find Mantella.exe",
// "terminate 10", "wait 10", "close 10".
func (r *Registry) Journal() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.journal...)
}

// OpenHandles counts handles not yet closed.
func (r *Registry) OpenHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// Running reports whether the fake process with pid is still alive.
func (r *Registry) Running(pid int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.procs {
		if p.PID == pid {
			return p.running
		}
	}
	return false
}

// FindByExecutableName implements procreg.Registry.
func (r *Registry) FindByExecutableName(ctx context.Context, name string) (procreg.Matches, error) {
	if err := ctx.Err(); err != nil {
		return procreg.Matches{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal = append(r.journal, "find "+name)
	if r.findErr != nil {
		return procreg.Matches{}, r.findErr
	}

	var m procreg.Matches
	for _, p := range r.procs {
		if (!p.running && !p.Exited) || !procreg.MatchName(p.Name, name) {
			continue
		}
		if p.DenyOpen {
			m.Denied = append(m.Denied, procreg.Denied{PID: p.PID, Name: p.Name, Err: errors.New("access denied")})
			continue
		}
		r.open++
		m.Handles = append(m.Handles, &handle{reg: r, st: p})
	}
	return m, nil
}

type handle struct {
	reg    *Registry
	st     *state
	closed bool
}

func (h *handle) PID() int     { return h.st.PID }
func (h *handle) Name() string { return h.st.Name }

func (h *handle) Running(ctx context.Context) (bool, error) {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	if h.closed {
		return false, errors.New("handle closed")
	}
	return h.st.running, nil
}

func (h *handle) Terminate(ctx context.Context) error {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	h.reg.journal = append(h.reg.journal, fmt.Sprintf("terminate %d", h.st.PID))
	if h.closed {
		return errors.New("handle closed")
	}
	if h.st.TerminateErr != nil {
		return h.st.TerminateErr
	}
	if !h.st.Survives {
		h.st.running = false
	}
	return nil
}

func (h *handle) Wait(ctx context.Context) error {
	h.reg.mu.Lock()
	h.reg.journal = append(h.reg.journal, fmt.Sprintf("wait %d", h.st.PID))
	waitErr, running := h.st.WaitErr, h.st.running
	h.reg.mu.Unlock()

	if waitErr != nil {
		return waitErr
	}
	if running {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (h *handle) Close() error {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.reg.open--
	h.reg.journal = append(h.reg.journal, fmt.Sprintf("close %d", h.st.PID))
	return nil
}
