package cli

import (
	"context"
	"fmt"
	"time"

	"mlauncher/internal/ipc"

	"github.com/spf13/cobra"
)

// NewNotifyCmd 创建 notify 命令
func NewNotifyCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:       "notify <launch|ready>",
		Short:     "Send a request to a running bridge host",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"launch", "ready"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}

			var msgType ipc.MessageType
			switch args[0] {
			case "launch":
				msgType = ipc.MsgLaunch
			case "ready":
				msgType = ipc.MsgGameReady
			default:
				return fmt.Errorf("unknown request %q (want launch or ready)", args[0])
			}

			cfg := cliCtx.Config
			endpoint := cfg.Bridge.Endpoint
			if endpoint == "" {
				endpoint = ipc.DefaultEndpoint(cfg.Companion.Product)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := ipc.Dial(ctx, endpoint, ipc.RoleCLI, ipc.WithRetry(200*time.Millisecond, 3))
			if err != nil {
				return fmt.Errorf("bridge host not reachable: %w", err)
			}
			defer client.Close()

			res, err := client.Call(ctx, msgType)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", res.State)
			if res.PID != 0 {
				fmt.Fprintf(out, "pid: %d\n", res.PID)
			}
			if res.Message != "" {
				fmt.Fprintf(out, "message: %s\n", res.Message)
			}
			if !res.Success {
				return fmt.Errorf("%s request failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "how long to wait for the host")
	return cmd
}
