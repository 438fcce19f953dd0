package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root of the launcher configuration.
type Config struct {
	Companion   CompanionConfig   `mapstructure:"companion" yaml:"companion"`
	Temp        TempConfig        `mapstructure:"temp" yaml:"temp"`
	Termination TerminationConfig `mapstructure:"termination" yaml:"termination"`
	Lock        LockConfig        `mapstructure:"lock" yaml:"lock"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Bridge      BridgeConfig      `mapstructure:"bridge" yaml:"bridge"`
	Watchdog    WatchdogConfig    `mapstructure:"watchdog" yaml:"watchdog"`
	Status      StatusConfig      `mapstructure:"status" yaml:"status"`
}

// CompanionConfig describes the executable being supervised and where it lives
// relative to the launcher module.
type CompanionConfig struct {
	Product      string `mapstructure:"product" yaml:"product"`
	Executable   string `mapstructure:"executable" yaml:"executable"`
	SubPath      string `mapstructure:"subpath" yaml:"subpath"`
	LaunchFlag   string `mapstructure:"launch_flag" yaml:"launch_flag"`
	ConsoleTitle string `mapstructure:"console_title" yaml:"console_title"`
	PluginLevels int    `mapstructure:"plugin_levels" yaml:"plugin_levels"`
	RootLevels   int    `mapstructure:"root_levels" yaml:"root_levels"`
}

// TempConfig controls where the companion writes its scratch files.
type TempConfig struct {
	// SyncTokens are path fragments that mark a cloud-synced Documents folder.
	SyncTokens []string `mapstructure:"sync_tokens" yaml:"sync_tokens"`
	// DocumentsSubpath is relative to the Documents folder. Empty means
	// "My Games/<product>/data/tmp".
	DocumentsSubpath string   `mapstructure:"documents_subpath" yaml:"documents_subpath,omitempty"`
	EnvVars          []string `mapstructure:"env_vars" yaml:"env_vars"`
}

// TerminationConfig controls how previous instances are stopped.
type TerminationConfig struct {
	ContinueOnFailure bool `mapstructure:"continue_on_failure" yaml:"continue_on_failure"`
	// WaitTimeout bounds the wait for a terminated process to exit. "0" or
	// empty waits until the process is gone.
	WaitTimeout  string `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	PollInterval string `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// LockConfig locates the launch lock file.
type LockConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// LogConfig mirrors logger.LogConfig.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// BridgeConfig configures the IPC endpoint used by serve and notify.
type BridgeConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

// WatchdogConfig schedules periodic passive checks in serve mode.
type WatchdogConfig struct {
	// Schedule is a cron spec with a seconds field; empty disables the watchdog.
	Schedule string `mapstructure:"schedule" yaml:"schedule,omitempty"`
}

// StatusConfig configures the HTTP status listener in serve mode.
type StatusConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`
}

// DocumentsTempSubpath returns the Documents-relative scratch directory.
func (c *TempConfig) DocumentsTempSubpath(product string) string {
	if c.DocumentsSubpath != "" {
		return filepath.FromSlash(c.DocumentsSubpath)
	}
	return filepath.Join("My Games", product, "data", "tmp")
}

// GetWaitTimeout parses WaitTimeout; invalid or empty values mean no bound.
func (c *TerminationConfig) GetWaitTimeout() time.Duration {
	if c.WaitTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.WaitTimeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetPollInterval parses PollInterval, defaulting to 50ms.
func (c *TerminationConfig) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 50 * time.Millisecond
	}
	return d
}

// Validate checks the fields the launcher cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Companion.Executable) == "" {
		errs = append(errs, errors.New("companion.executable is required"))
	}
	if strings.ContainsAny(c.Companion.Executable, `/\`) {
		errs = append(errs, fmt.Errorf("companion.executable must be a file name, got %q", c.Companion.Executable))
	}
	if strings.TrimSpace(c.Companion.Product) == "" {
		errs = append(errs, errors.New("companion.product is required"))
	}
	if c.Companion.PluginLevels < 0 || c.Companion.RootLevels < 0 {
		errs = append(errs, errors.New("companion levels must be non-negative"))
	}
	if c.Termination.WaitTimeout != "" {
		if _, err := time.ParseDuration(c.Termination.WaitTimeout); err != nil {
			errs = append(errs, fmt.Errorf("termination.wait_timeout: %w", err))
		}
	}
	if len(c.Temp.EnvVars) == 0 {
		errs = append(errs, errors.New("temp.env_vars must name at least one variable"))
	}
	return errors.Join(errs...)
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load reads configuration from path (optional) on top of defaults and
// MLAUNCHER_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("MLAUNCHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			// A missing file means defaults; anything else is reported.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", expandedPath, err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Reload discards viper state and loads path again.
func Reload(path string) (*Config, error) {
	Reset()
	return Load(path)
}

// GetConfig returns the last loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Path returns the config file path given to the last Load.
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Reset clears loaded state (mainly for tests).
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}
