package procreg

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// PS is a Registry backed by gopsutil. It works on every OS gopsutil supports.
// Handles hold no OS resources; a recycled PID is detected through the
// process creation time.
type PS struct {
	pollInterval time.Duration
}

// NewPS returns a gopsutil registry.
func NewPS(pollInterval time.Duration) *PS {
	return &PS{pollInterval: pollInterval}
}

// FindByExecutableName implements Registry.
func (r *PS) FindByExecutableName(ctx context.Context, name string) (Matches, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return Matches{}, fmt.Errorf("list processes: %w", err)
	}

	var m Matches
	for _, p := range procs {
		exe, err := p.NameWithContext(ctx)
		if err != nil {
			// Gone since the listing, or unreadable; either way not a known match.
			continue
		}
		if !MatchName(exe, name) {
			continue
		}
		created, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			m.Denied = append(m.Denied, Denied{PID: int(p.Pid), Name: exe, Err: err})
			continue
		}
		m.Handles = append(m.Handles, &psHandle{proc: p, name: exe, created: created, interval: r.pollInterval})
	}
	return m, nil
}

type psHandle struct {
	proc     *process.Process
	name     string
	created  int64
	interval time.Duration
	closed   atomic.Bool
}

func (h *psHandle) PID() int     { return int(h.proc.Pid) }
func (h *psHandle) Name() string { return h.name }

func (h *psHandle) Running(ctx context.Context) (bool, error) {
	if h.closed.Load() {
		return false, errClosed
	}
	alive, err := process.PidExistsWithContext(ctx, h.proc.Pid)
	if err != nil || !alive {
		return false, err
	}
	created, err := h.proc.CreateTimeWithContext(ctx)
	if err != nil || created != h.created {
		// Exited between the two checks, or the PID now names another process.
		return false, nil
	}
	status, err := h.proc.StatusWithContext(ctx)
	if err == nil && slices.Contains(status, process.Zombie) {
		return false, nil
	}
	return true, nil
}

func (h *psHandle) Terminate(ctx context.Context) error {
	if h.closed.Load() {
		return errClosed
	}
	// Never kill a PID that was reused by another process.
	alive, err := h.Running(ctx)
	if err != nil {
		return fmt.Errorf("check pid %d: %w", h.proc.Pid, err)
	}
	if !alive {
		return nil
	}
	if err := h.proc.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", h.proc.Pid, err)
	}
	return nil
}

func (h *psHandle) Wait(ctx context.Context) error {
	return waitExit(ctx, h.interval, h.Running)
}

func (h *psHandle) Close() error {
	h.closed.Store(true)
	return nil
}
