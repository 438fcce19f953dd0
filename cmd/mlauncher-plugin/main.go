//go:build cgo

// Command mlauncher-plugin is built with -buildmode=c-shared and loaded by the
// game's plugin host. The host calls the exported functions below; everything
// else is resolved relative to the loaded module.
package main

import "C"

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mlauncher/internal/bridge"
	"mlauncher/internal/pathres"
)

var (
	setupOnce sync.Once
	current   atomic.Pointer[plugin]
)

// setup builds the plugin on first use. A failure leaves a bridge without a
// runner, so every later call reports failure instead of panicking.
func setup() *bridge.Bridge {
	setupOnce.Do(func() {
		nop := zerolog.Nop()
		defer func() {
			if r := recover(); r != nil {
				current.Store(&plugin{bridge: bridge.New(nil, &nop), log: nop})
			}
		}()

		module, err := pathres.ModulePath()
		if err != nil {
			current.Store(&plugin{bridge: bridge.New(nil, &nop), log: nop})
			return
		}
		current.Store(newPlugin(filepath.Dir(module)))
	})
	return current.Load().bridge
}

//export MlauncherGameDataReady
func MlauncherGameDataReady() C.int {
	if setup().GameDataReady(context.Background()).OK() {
		return 1
	}
	return 0
}

//export MlauncherLaunch
func MlauncherLaunch() C.int {
	if setup().Launch(context.Background()) {
		return 1
	}
	return 0
}

// MlauncherShutdown is called by the host before it unloads the module.
//
//export MlauncherShutdown
func MlauncherShutdown() {
	if p := current.Load(); p != nil {
		_ = p.close()
	}
}

func main() {}
