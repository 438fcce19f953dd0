package cli

import (
	"errors"
	"io"
	"sync"

	"mlauncher/internal/config"
	"mlauncher/internal/console"
	"mlauncher/internal/supervisor"
	"mlauncher/pkg/logger"

	"github.com/rs/zerolog"
)

var errNoContext = errors.New("CLI context not initialized")

// CLIContext CLI 上下文
type CLIContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger
	Out        io.Writer
	Verbose    bool
	Quiet      bool

	supOnce sync.Once
	sup     *supervisor.Supervisor
}

// NewCLIContext 创建 CLI 上下文
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, out io.Writer, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
		Out:        out,
		Verbose:    verbose,
		Quiet:      quiet,
	}
}

// Supervisor 获取 supervisor（懒加载）
func (c *CLIContext) Supervisor() *supervisor.Supervisor {
	c.supOnce.Do(func() {
		log := c.Log().With().Str("component", "supervisor").Logger()
		c.sup = supervisor.NewFromConfig(c.Config, c.Console(), nil, &log)
	})
	return c.sup
}

// Console 状态行输出到终端，quiet 模式下只写日志
func (c *CLIContext) Console() console.Console {
	if c.Quiet {
		return console.NewLog(c.Log())
	}
	return console.NewWriter(c.Out)
}

// Close 关闭资源
func (c *CLIContext) Close() error {
	return logger.Close()
}

// Log 获取 Logger
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
