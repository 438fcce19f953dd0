//go:build !windows

package procreg

import "time"

// NewDefault returns the gopsutil registry.
func NewDefault(pollInterval time.Duration) Registry {
	return NewPS(pollInterval)
}
