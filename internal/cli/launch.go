package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"mlauncher/internal/supervisor"

	"github.com/spf13/cobra"
)

// NewLaunchCmd 创建 launch 命令
func NewLaunchCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Terminate running instances and start a new one",
		Long: `Run the full relaunch path: every running instance of the companion is
terminated, the temp environment is prepared and a fresh instance is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttempt(cmd, supervisor.TriggerLaunch, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the attempt result as JSON")
	return cmd
}

// NewReadyCmd 创建 ready 命令
func NewReadyCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "Start the companion unless an instance is already running",
		Long: `Run the passive path used when the game reports its data is loaded: a
running instance is left alone, otherwise a new one is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttempt(cmd, supervisor.TriggerGameReady, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the attempt result as JSON")
	return cmd
}

func runAttempt(cmd *cobra.Command, trigger supervisor.Trigger, jsonOutput bool) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return errNoContext
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sup := cliCtx.Supervisor()
	var res supervisor.Result
	if trigger == supervisor.TriggerLaunch {
		res = sup.Launch(ctx)
	} else {
		res = sup.GameReady(ctx)
	}

	if jsonOutput {
		if err := writeResultJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	}
	if !res.OK() {
		return fmt.Errorf("%s attempt failed: %w", trigger, res.Err)
	}
	return nil
}

type resultJSON struct {
	supervisor.Result
	TempDir  string   `json:"temp_dir,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func writeResultJSON(w io.Writer, res supervisor.Result) error {
	out := resultJSON{Result: res, TempDir: res.TempDir.Path}
	for _, warn := range res.Warnings {
		out.Warnings = append(out.Warnings, warn.Error())
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
