/*
Package store loads checker results into PostgreSQL.

The schema is managed with goose migrations embedded in the binary. Rows are
keyed by domain; importing the same partition twice inserts nothing new.
*/
package store

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
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultBatchSize is the number of rows inserted per transaction.
const DefaultBatchSize = 1000

// ErrInvalidBatchSize is returned for a non-positive batch size.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// AvailableDomain is one row of available_domains.
type AvailableDomain struct {
	ID        uuid.UUID `db:"id"`
	Domain    string    `db:"domain"`
	Word      string    `db:"word"`
	TLD       string    `db:"tld"`
	Length    int       `db:"length"`
	Pattern   string    `db:"pattern"`
	CheckedAt time.Time `db:"checked_at"`
}

const insertAvailable = `INSERT INTO available_domains (id, domain, word, tld, length, pattern, checked_at)
VALUES (:id, :domain, :word, :tld, :length, :pattern, :checked_at)
ON CONFLICT (domain) DO NOTHING`

// ImportStats summarizes an Import.
type ImportStats struct {
	// Read counts non-blank lines.
	Read int64
	// Inserted counts new rows.
	Inserted int64
	// Duplicates counts valid lines whose domain was already stored.
	Duplicates int64
	// Skipped counts malformed lines and lines of another TLD.
	Skipped int64
}

// Store wraps the database connection.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to dsn through the pgx driver and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return New(db, logger), nil
}

// New wraps an existing connection.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Migrate applies every pending migration.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	// Goose needs the *sql.DB that sqlx.DB wraps
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Import reads an available partition from r and inserts every line whose
// TLD is tld. Each batch of batchSize rows is committed in its own transaction.
func (s *Store) Import(ctx context.Context, r io.Reader, tld string, batchSize int) (ImportStats, error) {
	var stats ImportStats
	if batchSize <= 0 {
		return stats, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize)
	}

	checkedAt := s.now().UTC()
	batch := make([]AvailableDomain, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := s.insertBatch(ctx, batch)
		if err != nil {
			return err
		}
		stats.Inserted += inserted
		stats.Duplicates += int64(len(batch)) - inserted
		batch = batch[:0]
		s.logger.Info("Imported batch", "tld", tld, "read", stats.Read, "inserted", stats.Inserted)
		return nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Read++

		word, ok := ParseDomainLine(line, tld)
		if !ok {
			stats.Skipped++
			continue
		}
		batch = append(batch, AvailableDomain{
			ID:        uuid.New(),
			Domain:    word + "." + tld,
			Word:      word,
			TLD:       tld,
			Length:    len(word),
			Pattern:   DetectPattern(word),
			CheckedAt: checkedAt,
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read domains: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) insertBatch(ctx context.Context, batch []AvailableDomain) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, insertAvailable, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inserted rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return n, nil
}

// Count returns the number of stored domains of a TLD.
func (s *Store) Count(ctx context.Context, tld string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM available_domains WHERE tld = $1`, tld); err != nil {
		return 0, fmt.Errorf("failed to count domains: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
