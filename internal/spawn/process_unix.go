//go:build !windows

package spawn

import (
	"fmt"
	"os/exec"
	"syscall"
)

func start(spec Spec) (int, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	// New session so the companion outlives the caller's terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", spec.Path, err)
	}
	pid := cmd.Process.Pid
	// Reap the child when it exits; nothing else holds on to it.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}
