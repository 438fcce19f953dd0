package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"mlauncher/internal/ipc"
	"mlauncher/internal/lock"
	"mlauncher/internal/pathres"
	"mlauncher/internal/tempenv"

	"github.com/spf13/cobra"
)

// NewPathsCmd 创建 paths 命令
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show resolved directories without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return errNoContext
			}
			cfg := cliCtx.Config
			comp := cfg.Companion

			res := pathres.New(pathres.WithLevels(comp.PluginLevels, comp.RootLevels))
			module, err := res.ModulePath()
			if err != nil {
				return err
			}
			plugin, err := res.PluginDirectory()
			if err != nil {
				return err
			}
			root, err := res.RootDirectory()
			if err != nil {
				return err
			}
			target, err := res.TargetExecutable(comp.SubPath, comp.Executable)
			if err != nil {
				return err
			}

			docs := "unavailable"
			docsTemp := "-"
			if d, err := tempenv.DocumentsDir(); err == nil {
				docs = d
				if tempenv.IsSynced(d, cfg.Temp.SyncTokens) {
					docsTemp = "skipped (cloud-synced)"
				} else {
					docsTemp = filepath.Join(d, cfg.Temp.DocumentsTempSubpath(comp.Product))
				}
			}
			sysTemp, _ := tempenv.SystemTempDir()

			lockDir := cfg.Lock.Dir
			if lockDir == "" {
				lockDir = sysTemp
			}
			endpoint := cfg.Bridge.Endpoint
			if endpoint == "" {
				endpoint = ipc.DefaultEndpoint(comp.Product)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "config\t%s\n", cliCtx.ConfigPath)
			fmt.Fprintf(w, "module\t%s\n", module)
			fmt.Fprintf(w, "plugin dir\t%s\n", plugin)
			fmt.Fprintf(w, "root dir\t%s\n", root)
			fmt.Fprintf(w, "target\t%s\n", target)
			fmt.Fprintf(w, "documents\t%s\n", docs)
			fmt.Fprintf(w, "documents temp\t%s\n", docsTemp)
			fmt.Fprintf(w, "system temp\t%s\n", filepath.Join(sysTemp, comp.Product))
			fmt.Fprintf(w, "lock\t%s\n", lock.New(lockDir, comp.Executable).Path())
			fmt.Fprintf(w, "endpoint\t%s\n", endpoint)
			return w.Flush()
		},
	}
}
