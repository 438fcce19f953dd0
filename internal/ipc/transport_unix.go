//go:build !windows

package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEndpoint returns the socket path for product.
func DefaultEndpoint(product string) string {
	return filepath.Join(os.TempDir(), "mlauncher-"+strings.ToLower(product)+".sock")
}

func listen(path string) (net.Listener, error) {
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

func cleanup(path string) {
	_ = os.Remove(path)
}
