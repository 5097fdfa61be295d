/*
Package main is the entry point for the rxavail command-line application.

rxavail checks a large, generated vocabulary of candidate labels against a
registry's RDAP service and sorts each <label>.<tld> into available or taken.
Runs are slow (30 lookups per minute by default) and therefore
resumable: progress is checkpointed per registry, and an interrupted run picks
up at the first unprocessed candidate.

Subcommands:
  - `generate`: write the phonetic vocabulary (patterns.txt).
  - `check`: run the checker for one registry until done, limited or interrupted.
  - `status`: show a registry's checkpoint.
  - `reset`: delete a registry's checkpoint.
  - `registries`: list configured RDAP endpoints.
  - `import`: load an available_<tld>.txt partition into PostgreSQL.

Settings come from flags, RXAVAIL_* environment variables (a .env file is
honoured), an optional rxavail.yaml, and built-in defaults, in that order.
*/
package main

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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/x-stp/rxavail/internal/checkpoint"
	"github.com/x-stp/rxavail/internal/config"
	"github.com/x-stp/rxavail/internal/logging"
)

// Global flags (persistent across commands)
var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "rxavail",
	Short:         "rxavail - resumable, rate-limited RDAP domain availability checker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; a malformed one is not.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ./rxavail.yaml or $HOME/rxavail.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	pf.Bool("debug", false, "Enable debug logging")
	pf.StringP("registry", "r", config.DefaultRegistry, "Registry id (TLD) to check")
	pf.StringP("output-dir", "o", config.DefaultOutputDir, "Directory for checkpoints, partitions and logs")
	pf.String("backend", config.DefaultBackend, "Checkpoint backend: file or redis")
	pf.String("redis-url", "", "Redis URL for the redis checkpoint backend")
	pf.StringP("patterns", "p", config.DefaultPatterns, "Vocabulary file, one candidate per line")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(registriesCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves settings for cmd, flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.LoadConfig(configPath, cmd.Flags())
}

// consoleLogger returns a console-only logger for short-lived commands.
func consoleLogger(cfg *config.Config) *slog.Logger {
	logger, _, err := logging.New(logging.Options{Debug: cfg.Debug})
	if err != nil {
		return slog.Default()
	}
	return logger
}

// openCheckpointStore returns the configured checkpoint backend and a function releasing it.
func openCheckpointStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, func() error, error) {
	switch cfg.Checkpoint.Backend {
	case config.BackendRedis:
		rs, err := checkpoint.NewRedisStore(ctx, cfg.Checkpoint.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	default:
		return checkpoint.NewFileStore(cfg.OutputDir), func() error { return nil }, nil
	}
}
