// Package config loads the repair engine settings: built-in defaults, then
// an optional YAML file, then environment overrides. Command-line flags are
// applied last by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultMaxModels = 10
)

// Config is the full settings tree.
type Config struct {
	Solver Solver `yaml:"solver"`
	Log    Log    `yaml:"log"`
	// Validate runs the syntax check on every proposed patch.
	Validate bool `yaml:"validate"`
}

// Solver bounds the repair search.
type Solver struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxModels int           `yaml:"max_models"`
}

// Log selects the log level and output format ("console" or "json").
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Solver:   Solver{Timeout: DefaultTimeout, MaxModels: DefaultMaxModels},
		Log:      Log{Level: "warn", Format: "console"},
		Validate: true,
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}

// Parse reads a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Check()
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("GLITCH_SOLVER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GLITCH_SOLVER_TIMEOUT: %w", err)
		}
		cfg.Solver.Timeout = d
	}
	if v, ok := os.LookupEnv("GLITCH_MAX_MODELS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GLITCH_MAX_MODELS: %w", err)
		}
		cfg.Solver.MaxModels = n
	}
	if v, ok := os.LookupEnv("GLITCH_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	return nil
}

// Check reports settings that cannot be used.
func (c Config) Check() error {
	var errs []error
	if c.Solver.Timeout < 0 {
		errs = append(errs, fmt.Errorf("solver.timeout must not be negative, got %s", c.Solver.Timeout))
	}
	if c.Solver.MaxModels < 1 {
		errs = append(errs, fmt.Errorf("solver.max_models must be at least 1, got %d", c.Solver.MaxModels))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
