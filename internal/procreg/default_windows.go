//go:build windows

package procreg

import "time"

// NewDefault returns the toolhelp registry.
func NewDefault(pollInterval time.Duration) Registry {
	return NewToolhelp(pollInterval)
}
