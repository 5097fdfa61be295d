// Package logging builds the slog loggers used by the commands: a colored
// console handler and, for checker runs, a durable per-scope log file.
package logging

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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/x-stp/rxavail/internal/util"
)

// Options configures New.
type Options struct {
	// Debug lowers the level of every handler to Debug.
	Debug bool
	// Console receives the colored stream. Defaults to os.Stderr.
	Console io.Writer
	// NoColor disables ANSI colors on the console.
	NoColor bool
	// File, when set, mirrors every record to this path in slog text format.
	File string
}

// Level returns the configured minimum level.
func (o Options) Level() slog.Level {
	if o.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// New returns a logger and a function that flushes and closes its file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := opts.Level()

	handlers := []slog.Handler{
		tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    opts.NoColor,
		}),
	}
	closeFn := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = func() error {
			return errors.Join(f.Sync(), f.Close())
		}
	}

	return slog.New(NewTee(handlers...)), closeFn, nil
}

// ScopeFile returns the log file path of a registry scope, check_<scope>.log.
func ScopeFile(dir, scope string) string {
	return util.ScopedPath(dir, "check", scope, ".log")
}

// Tee is an [slog.Handler] that hands every record to each of its handlers.
type Tee struct {
	handlers []slog.Handler
}

// NewTee returns a Tee over handlers.
func NewTee(handlers ...slog.Handler) *Tee {
	return &Tee{handlers: handlers}
}

// Enabled reports whether any handler accepts level.
func (t *Tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of the record to every handler that accepts its level.
func (t *Tee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("tee handler: %w", err)
	}
	return nil
}

// WithAttrs returns a Tee whose handlers all carry attrs.
func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &Tee{handlers: out}
}

// WithGroup returns a Tee whose handlers all open group name.
func (t *Tee) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}
	return &Tee{handlers: out}
}
