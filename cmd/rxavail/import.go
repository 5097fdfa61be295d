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
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/x-stp/rxavail/internal/store"
	"github.com/x-stp/rxavail/internal/util"
)

// Flags specific to the import command
var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an available-domains partition into PostgreSQL",
	Long: `Reads available_<registry>.txt (or --file) and inserts each domain into the
available_domains table with its label, length and phonetic pattern. Domains
already present are skipped, so importing the same file again is harmless.
The schema is created or upgraded first.`,
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFile, "file", "", "Partition to import (default: <output-dir>/available_<registry>.txt)")
	f.String("database-url", "", "PostgreSQL connection string (or DATABASE_URL / RXAVAIL_DATABASE_URL)")
	f.Int("batch-size", store.DefaultBatchSize, "Rows per transaction")
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := consoleLogger(cfg)
	ctx := cmd.Context()

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return errors.New("database URL required: use --database-url or set DATABASE_URL")
	}

	path := importFile
	if path == "" {
		path = util.ScopedPath(cfg.OutputDir, "available", cfg.Registry, ".txt")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	db, err := store.Open(ctx, dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	logger.Info("Importing", "file", path, "tld", cfg.Registry, "batch_size", cfg.Import.BatchSize)
	stats, err := db.Import(ctx, f, cfg.Registry, cfg.Import.BatchSize)
	if err != nil {
		return err
	}
	total, err := db.Count(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	logger.Info("Import done",
		"read", humanize.Comma(stats.Read),
		"inserted", humanize.Comma(stats.Inserted),
		"duplicates", humanize.Comma(stats.Duplicates),
		"skipped", humanize.Comma(stats.Skipped),
		"stored_for_tld", humanize.Comma(total))
	return nil
}
