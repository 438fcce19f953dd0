// Package procreg finds running processes by executable name and hands out
// handles that can query and terminate them.
//
// Every process whose executable name matches is assumed to belong to the
// launcher's own ecosystem. The registry does not verify this: that trust
// boundary is the price of re-discovering the companion by name instead of
// remembering its identity across calls.
package procreg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Handle is an open reference to a running process. The code path that opened
// it owns it and must Close it on every exit path.
type Handle interface {
	PID() int
	Name() string
	// Running reports whether the process has not exited yet.
	Running(ctx context.Context) (bool, error)
	// Terminate forcibly ends the process.
	Terminate(ctx context.Context) error
	// Wait blocks until the process has exited or ctx is done.
	Wait(ctx context.Context) error
	// Close releases the handle. It is safe to call more than once.
	Close() error
}

// Denied is a matching process the registry could not open.
type Denied struct {
	PID  int
	Name string
	Err  error
}

// Matches is the result of a lookup.
type Matches struct {
	Handles []Handle
	// Denied lists matches that exist but could not be opened, e.g. because
	// they run under another user.
	Denied []Denied
}

// Len counts every match, opened or not.
func (m Matches) Len() int {
	return len(m.Handles) + len(m.Denied)
}

// Close releases every handle.
func (m Matches) Close() error {
	var errs []error
	for _, h := range m.Handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Registry enumerates processes.
type Registry interface {
	// FindByExecutableName snapshots all processes and opens every one whose
	// executable file name equals name, ignoring case. No matches is an empty
	// result, not an error.
	FindByExecutableName(ctx context.Context, name string) (Matches, error)
}

// MatchName compares executable file names the way the OS loader does on
// windows: case-insensitively.
func MatchName(candidate, name string) bool {
	return strings.EqualFold(candidate, name)
}

var errStillRunning = errors.New("process still running")

// DefaultPollInterval is how often Wait re-checks a process.
const DefaultPollInterval = 50 * time.Millisecond

// waitExit polls running until it reports false, the check fails, or ctx ends.
func waitExit(ctx context.Context, interval time.Duration, running func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	return backoff.Retry(func() error {
		alive, err := running(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if alive {
			return errStillRunning
		}
		return nil
	}, b)
}
