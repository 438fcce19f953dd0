//go:build cgo

package main

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"mlauncher/internal/bridge"
	"mlauncher/internal/config"
	"mlauncher/internal/console"
	"mlauncher/internal/ipc"
	"mlauncher/internal/supervisor"
	"mlauncher/pkg/logger"
)

const logName = "mlauncher.log"

// plugin is the state shared by the exports.
type plugin struct {
	bridge *bridge.Bridge
	ipc    *ipc.Server
	log    zerolog.Logger
}

// newPlugin configures the launcher for a module loaded from dir. A rejected
// config falls back to defaults; a missing IPC endpoint only disables IPC.
func newPlugin(dir string) *plugin {
	p := &plugin{log: zerolog.Nop()}

	cfg, cfgErr := config.Load(config.PluginConfigPath(dir))
	if cfgErr != nil {
		cfg = config.Default()
	}
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(dir, logName)
	}
	if err := logger.Init(logger.LogConfig{Level: cfg.Log.Level, Format: "json", File: logFile}); err == nil {
		p.log = *logger.Component("plugin")
	}
	if cfgErr != nil {
		p.log.Warn().Err(cfgErr).Msg("config rejected, using defaults")
	}

	supLog := p.log.With().Str("component", "supervisor").Logger()
	sup := supervisor.NewFromConfig(cfg, console.NewLog(&p.log), nil, &supLog)
	p.bridge = bridge.New(sup, &p.log)

	if cfg.Bridge.Endpoint != "" {
		srv := ipc.NewServer(cfg.Bridge.Endpoint)
		p.bridge.Register(srv)
		if err := srv.Start(); err != nil {
			p.log.Warn().Err(err).Str("endpoint", cfg.Bridge.Endpoint).Msg("IPC endpoint not available")
		} else {
			p.ipc = srv
		}
	}
	return p
}

// close stops the IPC endpoint and flushes the log file.
func (p *plugin) close() error {
	if p.ipc != nil {
		if err := p.ipc.Stop(); err != nil {
			p.log.Warn().Err(err).Msg("stop IPC endpoint")
		}
		p.ipc = nil
	}
	return logger.Close()
}
