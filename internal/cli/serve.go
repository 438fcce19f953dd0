package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mlauncher/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge host",
		Long: `Run the bridge host.

The host answers game_ready and launch requests from the game plugin and
from "mlauncher notify" over a named pipe (windows) or unix socket, and
optionally provides:
- /metrics, /live, /ready and /status on status.listen
- a watchdog that re-runs the passive check on watchdog.schedule
- configuration reload when the config file changes`,
		Example: `  # Start the host with the default configuration
  mlauncher serve

  # Expose status endpoints and run the passive check once on start
  mlauncher serve --listen 127.0.0.1:9464 --ready

  # Check every 30 seconds that the companion is still up
  mlauncher serve --watchdog "*/30 * * * * *"`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "status listen address (overrides config)")
	cmd.Flags().String("endpoint", "", "IPC endpoint (overrides config)")
	cmd.Flags().String("watchdog", "", "watchdog cron schedule with seconds (overrides config)")
	cmd.Flags().Bool("ready", false, "run the passive check once after start")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return errNoContext
	}

	cfg := cliCtx.Config
	log := cliCtx.Log()

	// Override config with flags if provided
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Status.Listen = listen
	}
	if endpoint, _ := cmd.Flags().GetString("endpoint"); endpoint != "" {
		cfg.Bridge.Endpoint = endpoint
	}
	if schedule, _ := cmd.Flags().GetString("watchdog"); schedule != "" {
		cfg.Watchdog.Schedule = schedule
	}

	srv, err := server.NewServer(server.Config{
		ConfigPath: cliCtx.ConfigPath,
		Config:     cfg,
		Console:    cliCtx.Console(),
		Logger:     *log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().
		Str("endpoint", srv.Endpoint()).
		Str("status", srv.StatusAddr()).
		Msg("Bridge host started")

	if ready, _ := cmd.Flags().GetBool("ready"); ready {
		go srv.Bridge().GameDataReady(context.Background())
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down bridge host...")
	case err := <-srv.ErrorChan():
		if err != nil {
			log.Error().Err(err).Msg("Bridge host error")
			_ = srv.Stop()
			return err
		}
	}

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("Bridge host stopped")
	return nil
}
