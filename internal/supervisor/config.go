package supervisor

import (
	"github.com/rs/zerolog"

	"mlauncher/internal/config"
	"mlauncher/internal/console"
	"mlauncher/internal/lock"
	"mlauncher/internal/metrics"
	"mlauncher/internal/pathres"
	"mlauncher/internal/procreg"
	"mlauncher/internal/spawn"
	"mlauncher/internal/tempenv"
)

// OptionsFromConfig extracts the launch policy from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Executable:        cfg.Companion.Executable,
		SubPath:           cfg.Companion.SubPath,
		LaunchFlag:        cfg.Companion.LaunchFlag,
		ConsoleTitle:      cfg.Companion.ConsoleTitle,
		ContinueOnFailure: cfg.Termination.ContinueOnFailure,
		WaitTimeout:       cfg.Termination.GetWaitTimeout(),
	}
}

// NewFromConfig wires a Supervisor with the OS-backed collaborators.
func NewFromConfig(cfg *config.Config, con console.Console, m *metrics.Metrics, log *zerolog.Logger) *Supervisor {
	lockDir := cfg.Lock.Dir
	if lockDir == "" {
		lockDir, _ = tempenv.SystemTempDir()
	}

	return New(OptionsFromConfig(cfg), Deps{
		Paths: pathres.New(pathres.WithLevels(cfg.Companion.PluginLevels, cfg.Companion.RootLevels)),
		Temp: tempenv.New(tempenv.Options{
			Product:          cfg.Companion.Product,
			DocumentsSubpath: cfg.Temp.DocumentsTempSubpath(cfg.Companion.Product),
			SyncTokens:       cfg.Temp.SyncTokens,
			EnvVars:          cfg.Temp.EnvVars,
		}, tempenv.WithLogger(log)),
		Registry: procreg.NewDefault(cfg.Termination.GetPollInterval()),
		Spawner:  spawn.New(),
		Lock:     lock.New(lockDir, cfg.Companion.Executable),
		Console:  con,
		Metrics:  m,
		Log:      log,
	})
}
