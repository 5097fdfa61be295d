// Package config loads rxavail settings from defaults, an optional YAML file,
// RXAVAIL_* environment variables and command-line flags, in increasing
// order of precedence.
package config

/*
rxavail — resumable RDAP domain availability checker in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/x-stp/rxavail/internal/rdap"
)

// configName is the config file name without extension.
const configName = "rxavail"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for rxavail settings.
const envPrefix = "RXAVAIL"

// Defaults.
const (
	DefaultRegistry        = "ai"
	DefaultRate            = 30.0
	DefaultCheckpointEvery = 100
	DefaultPatterns        = "patterns.txt"
	DefaultOutputDir       = "."
	DefaultBackend         = BackendFile
	DefaultImportBatchSize = 1000
)

// Checkpoint backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Registry        string            `mapstructure:"registry"`
	Rate            float64           `mapstructure:"rate"`
	Limit           int64             `mapstructure:"limit"`
	CheckpointEvery int64             `mapstructure:"checkpoint_every"`
	Patterns        string            `mapstructure:"patterns"`
	OutputDir       string            `mapstructure:"output_dir"`
	Debug           bool              `mapstructure:"debug"`
	Registries      map[string]string `mapstructure:"registries"`
	Checkpoint      CheckpointConfig  `mapstructure:"checkpoint"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	DatabaseURL     string            `mapstructure:"database_url"`
	Import          ImportConfig      `mapstructure:"import"`
}

// CheckpointConfig selects where checkpoints live.
type CheckpointConfig struct {
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ImportConfig tunes the database import.
type ImportConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"registry":         "registry",
	"rate":             "rate",
	"limit":            "limit",
	"checkpoint-every": "checkpoint_every",
	"patterns":         "patterns",
	"output-dir":       "output_dir",
	"debug":            "debug",
	"backend":          "checkpoint.backend",
	"redis-url":        "checkpoint.redis_url",
	"metrics-addr":     "metrics.addr",
	"database-url":     "database_url",
	"batch-size":       "import.batch_size",
}

// LoadConfig loads configuration from file, env vars, flags and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
// flags may be nil; flags it defines that appear in flagKeys override every other source
// when set on the command line.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	if err := viperCfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := viperCfg.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Registry = strings.ToLower(strings.TrimSpace(cfg.Registry))
	cfg.Checkpoint.Backend = strings.ToLower(strings.TrimSpace(cfg.Checkpoint.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("registry", DefaultRegistry)
	viperCfg.SetDefault("rate", DefaultRate)
	viperCfg.SetDefault("limit", 0)
	viperCfg.SetDefault("checkpoint_every", DefaultCheckpointEvery)
	viperCfg.SetDefault("patterns", DefaultPatterns)
	viperCfg.SetDefault("output_dir", DefaultOutputDir)
	viperCfg.SetDefault("debug", false)
	viperCfg.SetDefault("checkpoint.backend", DefaultBackend)
	viperCfg.SetDefault("checkpoint.redis_url", "")
	viperCfg.SetDefault("metrics.addr", "")
	viperCfg.SetDefault("database_url", "")
	viperCfg.SetDefault("import.batch_size", DefaultImportBatchSize)
}

// Validate checks bounds and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.Registry == "" {
		errs = append(errs, errors.New("registry must not be empty"))
	}
	if c.Rate <= 0 {
		errs = append(errs, fmt.Errorf("rate must be positive, got %v", c.Rate))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if c.CheckpointEvery <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint_every must be positive, got %d", c.CheckpointEvery))
	}
	switch c.Checkpoint.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Checkpoint.RedisURL == "" {
			errs = append(errs, errors.New("checkpoint.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("import.batch_size must be positive, got %d", c.Import.BatchSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// RegistryTable returns the built-in registries with configured overrides applied.
func (c *Config) RegistryTable() rdap.Registries {
	return rdap.DefaultRegistries().Merge(c.Registries)
}
