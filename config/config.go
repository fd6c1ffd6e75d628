package config

import "time"

// Config represents the complete tether configuration
type Config struct {
	BaseDir  string        `yaml:"-" toml:"-"`                  // Directory containing config file, for resolving relative paths
	Locale   string        `yaml:"locale" toml:"locale"`        // BCP 47 tag used by pipes (default: "en-US")
	Manifest string        `yaml:"manifest" toml:"manifest"`    // Default manifest when none is given on the command line
	Watch    WatchConfig   `yaml:"watch" toml:"watch"`
	Logging  LoggingConfig `yaml:"logging" toml:"logging"`
}

// WatchConfig holds `tether watch` settings
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"` // Quiet period after a write before reloading (default: 100ms)
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json or text
	Output string `yaml:"output" toml:"output"` // stderr, stdout, or file path
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Locale: "en-US",
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
