// Package config loads the engine's TOML configuration file and applies
// defaults for anything the file leaves out.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that decodes from TOML strings like "30s".
type Duration time.Duration

// UnmarshalText implements toml's text unmarshaling for durations.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Execution controls step execution limits.
type Execution struct {
	// StepTimeout bounds one SQL query step.
	StepTimeout Duration `toml:"step_timeout"`
	// ScriptTimeout bounds one script evaluation.
	ScriptTimeout Duration `toml:"script_timeout"`
}

// Import controls import validation.
type Import struct {
	// ErrorRateThreshold is the fraction of invalid rows (0..1) above which
	// an import fails instead of skipping rows.
	ErrorRateThreshold float64 `toml:"error_rate_threshold"`
}

// Dashboard controls the aggregate read endpoint.
type Dashboard struct {
	// Recent is how many recent imports and executions to include.
	Recent int `toml:"recent"`
}

// Config is the full engine configuration.
type Config struct {
	ListenAddr string    `toml:"listen_addr"`
	DBPath     string    `toml:"db_path"`
	LogLevel   string    `toml:"log_level"`
	Execution  Execution `toml:"execution"`
	Import     Import    `toml:"import"`
	Dashboard  Dashboard `toml:"dashboard"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		DBPath:     "engine.db",
		LogLevel:   "info",
		Execution: Execution{
			StepTimeout:   Duration(2 * time.Minute),
			ScriptTimeout: Duration(30 * time.Second),
		},
		Import:    Import{ErrorRateThreshold: 0.1},
		Dashboard: Dashboard{Recent: 10},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Import.ErrorRateThreshold < 0 || c.Import.ErrorRateThreshold > 1 {
		return fmt.Errorf("import.error_rate_threshold must be within [0, 1], got %v", c.Import.ErrorRateThreshold)
	}
	if c.Execution.StepTimeout <= 0 {
		return fmt.Errorf("execution.step_timeout must be positive")
	}
	if c.Execution.ScriptTimeout <= 0 {
		return fmt.Errorf("execution.script_timeout must be positive")
	}
	if c.Dashboard.Recent <= 0 {
		return fmt.Errorf("dashboard.recent must be positive")
	}
	return nil
}
