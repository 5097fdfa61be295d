package io

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
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/x-stp/rxavail/internal/util"
)

var (
	// ErrPartitionClosed is returned when appending to a closed partition.
	ErrPartitionClosed = errors.New("result partition closed")

	// ErrInvalidLine is returned for empty entries or entries containing a line break.
	ErrInvalidLine = errors.New("invalid result line")
)

// PartitionMetrics holds counters for a partition.
type PartitionMetrics struct {
	LinesWritten  atomic.Int64
	BytesWritten  atomic.Int64
	ErrorCount    atomic.Int64
	LastWriteTime atomic.Int64 // Unix timestamp in nanoseconds
}

// Partition is an append-only, line-oriented result file. Each Append is a
// single write of the full line followed by fsync, so a line is either fully
// on disk when Append returns or the call reported an error.
type Partition struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	closed  bool
	metrics PartitionMetrics
}

// OpenPartition opens path for appending, creating it and its directory.
func OpenPartition(path string) (*Partition, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open partition %s: %w", path, err)
	}
	return &Partition{file: f, path: path}, nil
}

// Path returns the partition's file path.
func (p *Partition) Path() string { return p.path }

// Metrics returns the partition counters.
func (p *Partition) Metrics() *PartitionMetrics { return &p.metrics }

// Append writes entry and a trailing newline, then syncs the file.
func (p *Partition) Append(entry string) error {
	if entry == "" || strings.ContainsAny(entry, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidLine, entry)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPartitionClosed
	}

	line := entry + "\n"
	n, err := p.file.WriteString(line)
	if err == nil {
		err = p.file.Sync()
	}
	if err != nil {
		p.metrics.ErrorCount.Add(1)
		return fmt.Errorf("failed to append to %s: %w", p.path, err)
	}

	p.metrics.LinesWritten.Add(1)
	p.metrics.BytesWritten.Add(int64(n))
	p.metrics.LastWriteTime.Store(time.Now().UnixNano())
	return nil
}

// Close releases the file. Further appends fail with ErrPartitionClosed.
func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.file.Close()
}

// Partition names used in file names and metric labels.
const (
	AvailablePartition = "available"
	TakenPartition     = "taken"
)

// ResultSink routes classified domains to the available_<scope>.txt and
// taken_<scope>.txt partitions of a directory.
type ResultSink struct {
	available *Partition
	taken     *Partition
}

// OpenResultSink opens both partitions of scope in dir.
func OpenResultSink(dir, scope string) (*ResultSink, error) {
	available, err := OpenPartition(util.ScopedPath(dir, AvailablePartition, scope, ".txt"))
	if err != nil {
		return nil, err
	}
	taken, err := OpenPartition(util.ScopedPath(dir, TakenPartition, scope, ".txt"))
	if err != nil {
		_ = available.Close()
		return nil, err
	}
	return &ResultSink{available: available, taken: taken}, nil
}

// AppendAvailable records a domain classified as available.
func (s *ResultSink) AppendAvailable(domain string) error {
	return s.available.Append(domain)
}

// AppendTaken records a domain classified as taken.
func (s *ResultSink) AppendTaken(domain string) error {
	return s.taken.Append(domain)
}

// AvailablePath returns the available partition's file path.
func (s *ResultSink) AvailablePath() string { return s.available.Path() }

// TakenPath returns the taken partition's file path.
func (s *ResultSink) TakenPath() string { return s.taken.Path() }

// Close closes both partitions.
func (s *ResultSink) Close() error {
	return errors.Join(s.available.Close(), s.taken.Close())
}
