// Package spawn starts the companion executable detached from the caller.
package spawn

import (
	"context"
	"errors"
)

// Spec describes a process to start.
type Spec struct {
	// Path is the absolute path to the executable.
	Path string

	// Args are command line arguments, not including the program name.
	Args []string

	// Dir is the working directory.
	Dir string

	// Title is the console window title. Only used on windows.
	Title string
}

// Spawner creates processes. Start returns as soon as the OS has created the
// process; it never waits for it and keeps no handle to it.
type Spawner interface {
	Start(ctx context.Context, spec Spec) (pid int, err error)
}

// OS is the Spawner for the running platform. On windows the process gets its
// own console, shown minimized and without taking focus.
type OS struct{}

// New returns the platform spawner.
func New() OS { return OS{} }

var errNoPath = errors.New("spawn: empty executable path")

// Start implements Spawner.
func (OS) Start(ctx context.Context, spec Spec) (int, error) {
	if spec.Path == "" {
		return 0, errNoPath
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return start(spec)
}

// Func adapts a function to Spawner.
type Func func(ctx context.Context, spec Spec) (int, error)

// Start implements Spawner.
func (f Func) Start(ctx context.Context, spec Spec) (int, error) {
	return f(ctx, spec)
}
