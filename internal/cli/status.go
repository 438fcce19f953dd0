package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatusCmd 创建 status 命令
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List running instances of the companion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}

			matches, err := cliCtx.Supervisor().Discover(cmd.Context())
			if err != nil {
				return err
			}
			defer matches.Close()

			out := cmd.OutOrStdout()
			exe := cliCtx.Config.Companion.Executable
			if matches.Len() == 0 {
				fmt.Fprintf(out, "%s is not running\n", exe)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tNAME\tSTATE")
			for _, h := range matches.Handles {
				state := "running"
				if alive, err := h.Running(cmd.Context()); err != nil {
					state = "unknown: " + err.Error()
				} else if !alive {
					state = "exited"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", h.PID(), h.Name(), state)
			}
			for _, d := range matches.Denied {
				fmt.Fprintf(w, "%d\t%s\tno access: %v\n", d.PID, d.Name, d.Err)
			}
			return w.Flush()
		},
	}
}
