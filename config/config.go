// Package config loads runtime settings for the ripple CLI from an
// optional ripple.yaml file. CLI flags override anything set here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ripple runtime configuration
type Config struct {
	Watch   WatchConfig   `yaml:"watch"`
	REPL    REPLConfig    `yaml:"repl"`
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig holds CSV hot-reload settings
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`     // watch load_csv files and push fresh tables
	DebounceMS int  `yaml:"debounce_ms"` // quiet period before a change is applied (default: 200)
}

// REPLConfig holds interactive session settings
type REPLConfig struct {
	History string `yaml:"history"` // history file path (default: $TMPDIR/.ripple_history)
}

// LoggingConfig holds output settings
type LoggingConfig struct {
	Quiet bool `yaml:"quiet"` // suppress watcher notices
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMS: 200,
		},
		REPL: REPLConfig{
			History: filepath.Join(os.TempDir(), ".ripple_history"),
		},
	}
}

// Load reads the given config file, or the defaults when path is empty
// and no ripple.yaml sits in the working directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = "ripple.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot honour.
func Validate(cfg *Config) error {
	if cfg.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", cfg.Watch.DebounceMS)
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 200
	}
	if cfg.REPL.History == "" {
		cfg.REPL.History = filepath.Join(os.TempDir(), ".ripple_history")
	}
	return nil
}
