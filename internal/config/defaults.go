package config

import (
	"github.com/spf13/viper"
)

// SetDefaults registers the default value of every configuration key.
func SetDefaults() {
	viper.SetDefault("companion.product", "Mantella")
	viper.SetDefault("companion.executable", "Mantella.exe")
	viper.SetDefault("companion.subpath", "MantellaSoftware")
	viper.SetDefault("companion.launch_flag", "--integrated")
	viper.SetDefault("companion.console_title", "Mantella")
	viper.SetDefault("companion.plugin_levels", 1)
	viper.SetDefault("companion.root_levels", 4)

	viper.SetDefault("temp.sync_tokens", []string{"OneDrive"})
	viper.SetDefault("temp.documents_subpath", "")
	viper.SetDefault("temp.env_vars", []string{"TEMP", "TMP"})

	viper.SetDefault("termination.continue_on_failure", true)
	viper.SetDefault("termination.wait_timeout", "0s")
	viper.SetDefault("termination.poll_interval", "50ms")

	viper.SetDefault("lock.dir", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	viper.SetDefault("bridge.endpoint", "")
	viper.SetDefault("watchdog.schedule", "")
	viper.SetDefault("status.listen", "")
}

// Default returns the default configuration without touching global state.
func Default() *Config {
	return &Config{
		Companion: CompanionConfig{
			Product:      "Mantella",
			Executable:   "Mantella.exe",
			SubPath:      "MantellaSoftware",
			LaunchFlag:   "--integrated",
			ConsoleTitle: "Mantella",
			PluginLevels: 1,
			RootLevels:   4,
		},
		Temp: TempConfig{
			SyncTokens: []string{"OneDrive"},
			EnvVars:    []string{"TEMP", "TMP"},
		},
		Termination: TerminationConfig{
			ContinueOnFailure: true,
			WaitTimeout:       "0s",
			PollInterval:      "50ms",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
