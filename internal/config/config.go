// Package config loads queryexec configuration from defaults, an optional
// YAML file, QUERYEXEC_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/queryexec/internal/dataset"
	"github.com/roach88/queryexec/internal/workerpool"
)

// EnvPrefix is the environment variable prefix. QUERYEXEC_POOL_MAX_WORKERS
// sets pool.max_workers.
const EnvPrefix = "QUERYEXEC"

// Config is the full service configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Dataset DatasetConfig `mapstructure:"dataset"`
	Pool    PoolConfig    `mapstructure:"pool"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
}

// StoreConfig locates the query store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DatasetConfig locates the dataset and controls loading.
type DatasetConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	CSV         string `mapstructure:"csv"` // empty = embedded sample
	LoadOnStart bool   `mapstructure:"load_on_start"`
}

// PoolConfig sizes the async worker pool.
type PoolConfig struct {
	MinWorkers int `mapstructure:"min_workers"`
	MaxWorkers int `mapstructure:"max_workers"`
	Backlog    int `mapstructure:"backlog"`
}

// Worker converts to the workerpool sizing.
func (p PoolConfig) Worker() workerpool.Config {
	return workerpool.Config{MinWorkers: p.MinWorkers, MaxWorkers: p.MaxWorkers, Backlog: p.Backlog}
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests/second per client; <= 0 disables
	Burst           int           `mapstructure:"burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// Load reads configuration. cfgFile may be empty. flags, if non-nil, are
// bound by their dotted key names (e.g. a flag named "http.addr").
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("queryexec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindFlags binds every flag whose name is a known config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || !v.IsSet(f.Name) {
			return
		}
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "queryexec.db")

	v.SetDefault("dataset.driver", dataset.DriverSQLite)
	v.SetDefault("dataset.dsn", "dataset.db")
	v.SetDefault("dataset.csv", "")
	v.SetDefault("dataset.load_on_start", true)

	pool := workerpool.DefaultConfig()
	v.SetDefault("pool.min_workers", pool.MinWorkers)
	v.SetDefault("pool.max_workers", pool.MaxWorkers)
	v.SetDefault("pool.backlog", pool.Backlog)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.burst", 20)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	switch c.Dataset.Driver {
	case dataset.DriverSQLite, dataset.DriverPostgres, dataset.DriverMySQL:
	default:
		return fmt.Errorf("dataset.driver %q: must be one of %s, %s, %s",
			c.Dataset.Driver, dataset.DriverSQLite, dataset.DriverPostgres, dataset.DriverMySQL)
	}
	if c.Dataset.DSN == "" {
		return fmt.Errorf("dataset.dsn is required")
	}
	if err := c.Pool.Worker().Validate(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if c.HTTP.RateLimit > 0 && c.HTTP.Burst < 1 {
		return fmt.Errorf("http.burst must be >= 1 when rate limiting is enabled")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q: must be debug, info, warn or error", level)
	}
}

// NewLogger builds the process logger on stderr. verbose forces debug.
func (c LogConfig) NewLogger(verbose bool) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
