package cli

import (
	"context"

	"mlauncher/internal/config"
	"mlauncher/pkg/logger"

	"github.com/spf13/cobra"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// contextKey CLI 上下文键
type contextKey struct{}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mlauncher",
		Short: "mlauncher - companion process supervisor",
		Long: `mlauncher keeps exactly one instance of a companion executable running
next to the game. It can run a single launch attempt, report what it would do,
or stay up as a bridge host that the game plugin talks to.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 跳过 version 和 help 命令的初始化
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			// 确定配置路径
			configPath := globalFlags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			// 加载配置
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// 初始化 Logger
			logLevel := cfg.Log.Level
			if globalFlags.Verbose {
				logLevel = "debug"
			}
			if globalFlags.Quiet {
				logLevel = "error"
			}

			if err := logger.Init(logger.LogConfig{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			// 创建 CLI 上下文
			cliCtx := NewCLIContext(cfg, configPath, logger.Get(), cmd.OutOrStdout(), globalFlags.Verbose, globalFlags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			// 关闭资源
			cliCtx := GetCLIContext(cmd)
			if cliCtx != nil {
				return cliCtx.Close()
			}
			return nil
		},
	}

	// 添加全局标志
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "quiet mode")

	// 添加子命令
	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewLaunchCmd())
	rootCmd.AddCommand(NewReadyCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewPathsCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewNotifyCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// GetCLIContext 从命令上下文获取 CLI 上下文
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}
