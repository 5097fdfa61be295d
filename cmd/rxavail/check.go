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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/x-stp/rxavail/internal/candidates"
	"github.com/x-stp/rxavail/internal/client"
	"github.com/x-stp/rxavail/internal/config"
	"github.com/x-stp/rxavail/internal/core"
	rxio "github.com/x-stp/rxavail/internal/io"
	"github.com/x-stp/rxavail/internal/lock"
	"github.com/x-stp/rxavail/internal/logging"
	"github.com/x-stp/rxavail/internal/metrics"
	"github.com/x-stp/rxavail/internal/rdap"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check candidates against the registry, resuming from the last checkpoint",
	Long: `Looks up every candidate of the vocabulary as <label>.<registry> over RDAP,
one at a time and at most --rate per minute. A 404 is recorded as available, a 200
as taken; anything else counts as an error and is not retried. Progress is saved
every --checkpoint-every checks and on exit, so the command can be interrupted
(Ctrl-C) and re-run at any time.`,
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.Float64("rate", config.DefaultRate, "Maximum lookups per minute")
	f.Int64("limit", 0, "Stop once the checkpoint has this many checks in total (0 = unlimited)")
	f.Int64("checkpoint-every", config.DefaultCheckpointEvery, "Checks between checkpoint writes")
	f.String("metrics-addr", "", "Serve /metrics and /progress on this address (e.g. :9109)")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registries := cfg.RegistryTable()
	if _, err := registries.Endpoint(cfg.Registry); err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Debug: cfg.Debug,
		File:  logging.ScopeFile(cfg.OutputDir, cfg.Registry),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	source, err := candidates.LoadFile(cfg.Patterns)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w (run `rxavail generate` first)", err)
		}
		return err
	}
	logger.Info("Loaded vocabulary", "path", source.Path(), "candidates", source.Len(),
		"fingerprint", fmt.Sprintf("%016x", source.Fingerprint()))

	scopeLock, err := lock.Acquire(cfg.OutputDir, cfg.Registry)
	if err != nil {
		return err
	}
	defer scopeLock.Release()

	store, closeStore, err := openCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, err := rxio.OpenResultSink(cfg.OutputDir, cfg.Registry)
	if err != nil {
		return err
	}
	defer sink.Close()

	limiter, err := core.NewRateLimiter(cfg.Rate)
	if err != nil {
		return err
	}

	client.InitHTTPClient(client.DefaultConfig())
	checker, err := core.NewChecker(core.CheckerConfig{
		Registry:        cfg.Registry,
		Limit:           cfg.Limit,
		CheckpointEvery: cfg.CheckpointEvery,
		Source:          source,
		Client:          rdap.NewClient(registries),
		Pacer:           limiter,
		Store:           store,
		Sink:            sink,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Starting check", "registry", cfg.Registry, "rate_per_minute", cfg.Rate,
		"interval", limiter.Interval(), "limit", cfg.Limit, "backend", store.Backend(),
		"available", sink.AvailablePath(), "taken", sink.TakenPath())

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	g.Go(func() error {
		defer stopServing()
		_, err := checker.Run(gctx)
		return err
	})
	if cfg.Metrics.Addr != "" {
		metrics.EnableMetrics()
		srv := metrics.NewServer(cfg.Metrics.Addr, func() any { return checker.Progress() }, logger)
		g.Go(func() error { return srv.Run(serveCtx) })
	}
	return g.Wait()
}
