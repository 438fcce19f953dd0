//go:build windows

package procreg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code GetExitCodeProcess reports for a live process.
const stillActive = 259

// Toolhelp is a Registry backed by the Toolhelp32 process snapshot.
// Matches are opened with query and terminate rights only.
type Toolhelp struct {
	pollInterval time.Duration
}

// NewToolhelp returns a toolhelp registry.
func NewToolhelp(pollInterval time.Duration) *Toolhelp {
	return &Toolhelp{pollInterval: pollInterval}
}

// FindByExecutableName implements Registry.
func (r *Toolhelp) FindByExecutableName(ctx context.Context, name string) (Matches, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return Matches{}, fmt.Errorf("create snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var m Matches
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if ctx.Err() != nil {
			_ = m.Close()
			return Matches{}, ctx.Err()
		}
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if !MatchName(exe, name) {
			continue
		}
		pid := entry.ProcessID
		h, openErr := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_TERMINATE, false, pid)
		if openErr != nil {
			m.Denied = append(m.Denied, Denied{PID: int(pid), Name: exe, Err: openErr})
			continue
		}
		m.Handles = append(m.Handles, &winHandle{h: h, pid: int(pid), name: exe, interval: r.pollInterval})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		_ = m.Close()
		return Matches{}, fmt.Errorf("walk snapshot: %w", err)
	}
	return m, nil
}

type winHandle struct {
	mu       sync.Mutex
	h        windows.Handle
	pid      int
	name     string
	interval time.Duration
}

func (w *winHandle) PID() int     { return w.pid }
func (w *winHandle) Name() string { return w.name }

func (w *winHandle) handle() (windows.Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.h == 0 {
		return 0, errClosed
	}
	return w.h, nil
}

func (w *winHandle) Running(_ context.Context) (bool, error) {
	h, err := w.handle()
	if err != nil {
		return false, err
	}
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false, fmt.Errorf("exit code of pid %d: %w", w.pid, err)
	}
	return code == stillActive, nil
}

func (w *winHandle) Terminate(_ context.Context) error {
	h, err := w.handle()
	if err != nil {
		return err
	}
	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate pid %d: %w", w.pid, err)
	}
	return nil
}

func (w *winHandle) Wait(ctx context.Context) error {
	return waitExit(ctx, w.interval, w.Running)
}

func (w *winHandle) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.h == 0 {
		return nil
	}
	err := windows.CloseHandle(w.h)
	w.h = 0
	return err
}
