// Package config loads the runtime configuration of the fluxbuf CLI and
// LocalRunner.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/petrijr/fluxbuf/internal/persistence"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FLUXBUF_"

// Config is the full runtime configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Events  EventsConfig  `koanf:"events"`
	Runner  RunnerConfig  `koanf:"runner"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EventsConfig selects the buffer event history backend.
type EventsConfig struct {
	Backend     string `koanf:"backend"`
	SQLiteDSN   string `koanf:"sqlite_dsn"`
	RedisAddr   string `koanf:"redis_addr"`
	RedisPrefix string `koanf:"redis_prefix"`
}

// RunnerConfig bounds the LocalRunner.
type RunnerConfig struct {
	QueueCapacity int `koanf:"queue_capacity"`
	MaxTicks      int `koanf:"max_ticks"`
	// RunID scopes recorded history. Empty draws a fresh UUID per run.
	RunID string `koanf:"run_id"`
}

// MetricsConfig enables the Prometheus observer.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Load reads configuration from the YAML file at path, then overrides it
// with FLUXBUF_ environment variables.
//
// An empty path, or a path that does not exist, skips the file. Variables
// map onto keys by splitting on the first underscore after the prefix:
//
//	FLUXBUF_EVENTS_BACKEND    -> events.backend
//	FLUXBUF_RUNNER_MAX_TICKS  -> runner.max_ticks
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps FLUXBUF_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Events.Backend == "" {
		cfg.Events.Backend = persistence.BackendNone
	}
	if cfg.Events.RedisPrefix == "" {
		cfg.Events.RedisPrefix = "fluxbuf:"
	}
	if cfg.Runner.QueueCapacity == 0 {
		cfg.Runner.QueueCapacity = 1024
	}
	if cfg.Runner.MaxTicks == 0 {
		cfg.Runner.MaxTicks = 1000
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
}

// Validate checks the configuration for values the runner cannot use.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q (must be text or json)", c.Log.Format)
	}

	switch c.Events.Backend {
	case persistence.BackendNone, persistence.BackendMemory, persistence.BackendSQLite:
	case persistence.BackendRedis:
		if c.Events.RedisAddr == "" {
			return errors.New("events.redis_addr required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid events backend: %q: %w", c.Events.Backend, persistence.ErrUnknownBackend)
	}

	if c.Runner.QueueCapacity < 1 {
		return fmt.Errorf("invalid runner queue capacity: %d (must be positive)", c.Runner.QueueCapacity)
	}
	if c.Runner.MaxTicks < 1 {
		return fmt.Errorf("invalid runner max ticks: %d (must be positive)", c.Runner.MaxTicks)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// PersistenceOptions maps the events section onto persistence.Open options.
func (c *Config) PersistenceOptions() persistence.Options {
	return persistence.Options{
		Backend:     c.Events.Backend,
		SQLiteDSN:   c.Events.SQLiteDSN,
		RedisAddr:   c.Events.RedisAddr,
		RedisPrefix: c.Events.RedisPrefix,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %q", s)
	}
	return lvl, nil
}
