//go:build windows

package ipc

import (
	"context"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

// DefaultEndpoint returns the named pipe for product.
func DefaultEndpoint(product string) string {
	return `\\.\pipe\mlauncher-` + strings.ToLower(product)
}

func listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{MessageMode: false})
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

func cleanup(string) {}
