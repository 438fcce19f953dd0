// Package lock provides an OS-wide launch lock keyed by executable name.
//
// Every process that may launch the companion (the plugin, the CLI, a serve
// host) takes the same lock file, so discovery and spawn never interleave.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultPollInterval is how often a contended lock is retried.
const DefaultPollInterval = 25 * time.Millisecond

var errBusy = errors.New("lock held by another process")

// Locker hands out the launch lock for one executable.
type Locker struct {
	path     string
	interval time.Duration
	// mu serializes holders inside this process; flock alone does not on every OS.
	mu sync.Mutex
}

// New returns a locker for exe. An empty dir selects the system temp dir.
func New(dir, exe string) *Locker {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Locker{
		path:     filepath.Join(dir, strings.ToLower(exe)+".lock"),
		interval: DefaultPollInterval,
	}
}

// Path returns the lock file path.
func (l *Locker) Path() string {
	return l.path
}

// Acquire blocks until the lock is held or ctx is done. The returned function
// releases it and is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	if !l.lockLocal(ctx) {
		return nil, ctx.Err()
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(l.interval), ctx)
	err = backoff.Retry(func() error {
		locked, err := tryLock(f)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !locked {
			return errBusy
		}
		return nil
	}, b)
	if err != nil {
		_ = f.Close()
		l.mu.Unlock()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("wait for %s: %w", l.path, ctxErr)
		}
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = unlock(f)
			_ = f.Close()
			l.mu.Unlock()
		})
	}, nil
}

// lockLocal takes the in-process mutex, giving up when ctx ends.
func (l *Locker) lockLocal(ctx context.Context) bool {
	if l.mu.TryLock() {
		return true
	}
	t := time.NewTicker(l.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			if l.mu.TryLock() {
				return true
			}
		}
	}
}
