package core

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
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/x-stp/rxavail/internal/candidates"
	"github.com/x-stp/rxavail/internal/checkpoint"
	"github.com/x-stp/rxavail/internal/io"
	"github.com/x-stp/rxavail/internal/metrics"
	"github.com/x-stp/rxavail/internal/rdap"
)

// State is the lifecycle phase of a Checker.
type State int32

const (
	StateIdle State = iota
	StateResuming
	StateRunning
	StateInterrupted
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResuming:
		return "resuming"
	case StateRunning:
		return "running"
	case StateInterrupted:
		return "interrupted"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrAlreadyRunning is returned when Run is called on a running Checker.
	ErrAlreadyRunning = errors.New("checker already running")
	// ErrInvalidConfig is returned by NewChecker for missing collaborators or bad bounds.
	ErrInvalidConfig = errors.New("invalid checker config")
)

// RegistryClient classifies a single domain. The error return is reserved
// for conditions that make every further lookup pointless, such as an
// unconfigured registry; per-domain failures come back as Unresolved results.
type RegistryClient interface {
	Lookup(ctx context.Context, domain, registry string) (rdap.Result, error)
	Registries() rdap.Registries
}

// Sink receives classified domains. Appends must be durable on return.
type Sink interface {
	AppendAvailable(domain string) error
	AppendTaken(domain string) error
}

// Pacer blocks until the next lookup may be issued.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// CheckerConfig wires a Checker.
type CheckerConfig struct {
	// Registry is the scope: the registry id queried and the key of the
	// checkpoint and partitions.
	Registry string
	// Limit stops the run once the checkpoint's cumulative Checked reaches it.
	// 0 means no cap.
	Limit int64
	// CheckpointEvery is the persist period, counted in checks.
	CheckpointEvery int64

	Source  candidates.Source
	Client  RegistryClient
	Pacer   Pacer
	Store   checkpoint.Store
	Sink    Sink
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// StopReason says why the checking loop ended.
type StopReason string

const (
	StopExhausted StopReason = "exhausted"
	StopLimit     StopReason = "limit"
	StopCancelled StopReason = "cancelled"
	StopFailed    StopReason = "failed"
)

// Summary describes a finished Run.
type Summary struct {
	State      State
	Reason     StopReason
	Checkpoint checkpoint.State
	// Processed is the number of candidates handled by this Run alone.
	Processed int64
	Total     int
	Elapsed   time.Duration
}

// Checker walks a candidate source in order, classifies each candidate with
// a registry client under a rate budget, and records progress in a
// checkpoint so that an interrupted run resumes exactly where it stopped.
//
// Every candidate before Checkpoint.LastIndex has been classified exactly
// once across all runs and, if Available or Taken, appended to the sink
// exactly once. A crash between two persists replays at most
// CheckpointEvery candidates, which can duplicate partition lines but never
// skips a candidate.
//
// Concurrency: one Run at a time. State and Progress may be called from any goroutine.
type Checker struct {
	cfg     CheckerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	state    atomic.Int32
	running  atomic.Bool
	progress atomic.Pointer[checkpoint.State]
}

// NewChecker validates cfg and returns an idle Checker. An unknown registry
// fails here with rdap.ErrUnknownRegistry, before any network activity.
func NewChecker(cfg CheckerConfig) (*Checker, error) {
	switch {
	case cfg.Source == nil, cfg.Client == nil, cfg.Pacer == nil, cfg.Store == nil, cfg.Sink == nil:
		return nil, fmt.Errorf("%w: source, client, pacer, store and sink are required", ErrInvalidConfig)
	case cfg.Limit < 0:
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidConfig, cfg.Limit)
	case cfg.CheckpointEvery < 0:
		return nil, fmt.Errorf("%w: negative checkpoint period %d", ErrInvalidConfig, cfg.CheckpointEvery)
	}
	if cfg.CheckpointEvery == 0 {
		cfg.CheckpointEvery = DefaultCheckpointEvery
	}
	if cfg.Registry == "" {
		cfg.Registry = DefaultRegistry
	}
	cfg.Registry = strings.ToLower(cfg.Registry)
	if _, err := cfg.Client.Registries().Endpoint(cfg.Registry); err != nil {
		return nil, err
	}

	c := &Checker{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = metrics.GetMetrics()
	}
	c.logger = c.logger.With("registry", cfg.Registry)
	return c, nil
}

// State returns the current lifecycle phase.
func (c *Checker) State() State {
	return State(c.state.Load())
}

// Progress returns a snapshot of the in-memory checkpoint. It is the zero
// State until Run has loaded the checkpoint.
func (c *Checker) Progress() checkpoint.State {
	if p := c.progress.Load(); p != nil {
		return *p
	}
	return checkpoint.State{}
}

// Run loads the scope's checkpoint and checks candidates from LastIndex
// until the source is exhausted, the limit is reached, ctx is cancelled, or
// a sink or store write fails. A lookup that has started always completes
// and is accounted before cancellation is honoured. The checkpoint is
// persisted once more on every exit path after a successful load.
//
// Cancellation is not an error: Run returns a Summary in StateInterrupted and
// a nil error. Failures that stop the run are returned wrapped.
func (c *Checker) Run(ctx context.Context) (Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRunning
	}
	defer c.running.Store(false)

	started := time.Now()
	scope := c.cfg.Registry
	total := c.cfg.Source.Len()
	sum := Summary{Total: total}

	c.transition(StateResuming)
	st, err := c.cfg.Store.Load(ctx, scope)
	if err != nil {
		sum.State, sum.Reason = StateInterrupted, StopFailed
		c.transition(StateInterrupted, "error", err)
		return sum, fmt.Errorf("failed to load checkpoint for %s: %w", scope, err)
	}
	if st.LastIndex > int64(total) {
		sum.State, sum.Reason, sum.Checkpoint = StateInterrupted, StopFailed, st
		c.transition(StateInterrupted, "last_index", st.LastIndex, "total", total)
		return sum, fmt.Errorf("%w: checkpoint last_index %d is beyond the %d loaded candidates",
			candidates.ErrIndexOutOfRange, st.LastIndex, total)
	}
	c.publish(st)
	c.logger.Info(fmt.Sprintf("Loaded %s candidates", humanize.Comma(int64(total))))
	c.logger.Info(fmt.Sprintf("Resuming from index %s (%.1f%%)", humanize.Comma(st.LastIndex), percent(st.LastIndex, total)),
		"checked", st.Checked, "backend", c.cfg.Store.Backend())

	c.transition(StateRunning)
	processed, reason, runErr := c.loop(ctx, &st, total)

	final := StateCompleted
	if reason == StopCancelled || reason == StopFailed {
		final = StateInterrupted
	}
	if reason == StopCancelled {
		c.logger.Info("Interrupted. Saving checkpoint...")
	}
	if err := c.persist(ctx, &st); err != nil {
		runErr = errors.Join(runErr, err)
		final, reason = StateInterrupted, StopFailed
	}
	c.transition(final, "reason", string(reason))

	sum.State = final
	sum.Reason = reason
	sum.Checkpoint = st
	sum.Processed = processed
	sum.Elapsed = time.Since(started)
	c.logSummary(sum)
	return sum, runErr
}

func (c *Checker) loop(ctx context.Context, st *checkpoint.State, total int) (int64, StopReason, error) {
	var processed int64
	for rec := range c.cfg.Source.Slice(int(st.LastIndex)) {
		if c.cfg.Limit > 0 && st.Checked >= c.cfg.Limit {
			c.logger.Info(fmt.Sprintf("Reached limit of %s checks", humanize.Comma(c.cfg.Limit)))
			return processed, StopLimit, nil
		}
		if ctx.Err() != nil {
			return processed, StopCancelled, nil
		}

		waitStart := time.Now()
		if err := c.cfg.Pacer.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return processed, StopCancelled, nil
			}
			return processed, StopFailed, fmt.Errorf("rate limiter: %w", err)
		}
		c.metrics.ObserveRateLimitWait(c.cfg.Registry, time.Since(waitStart))
		if ctx.Err() != nil {
			return processed, StopCancelled, nil
		}

		if err := c.check(ctx, rec, st); err != nil {
			return processed, StopFailed, err
		}
		processed++
		c.publish(*st)

		if st.Checked%c.cfg.CheckpointEvery == 0 {
			if err := c.persist(ctx, st); err != nil {
				return processed, StopFailed, err
			}
			c.logProgress(st, total)
		}
	}
	c.logger.Info("All candidates checked")
	return processed, StopExhausted, nil
}

// check runs one lookup and applies its outcome. The lookup is detached from
// ctx cancellation and bounded by the client's own timeout.
func (c *Checker) check(ctx context.Context, rec candidates.Record, st *checkpoint.State) error {
	scope := c.cfg.Registry
	domain := rdap.DomainName(rec.Value, scope)

	lookupStart := time.Now()
	res, err := c.cfg.Client.Lookup(context.WithoutCancel(ctx), domain, scope)
	if err != nil {
		return fmt.Errorf("lookup of %s: %w", domain, err)
	}
	c.metrics.ObserveLookup(scope, res.Outcome.String(), time.Since(lookupStart))

	switch res.Outcome {
	case rdap.Available:
		if err := c.cfg.Sink.AppendAvailable(domain); err != nil {
			return fmt.Errorf("failed to record %s: %w", domain, err)
		}
		c.metrics.IncPartitionWrite(scope, io.AvailablePartition)
		st.Available++
		c.logger.Info("AVAILABLE", "domain", domain, "index", rec.Index)
	case rdap.Taken:
		if err := c.cfg.Sink.AppendTaken(domain); err != nil {
			return fmt.Errorf("failed to record %s: %w", domain, err)
		}
		c.metrics.IncPartitionWrite(scope, io.TakenPartition)
		st.Taken++
		c.logger.Debug("taken", "domain", domain, "index", rec.Index)
	default:
		st.Errors++
		c.logger.Debug("lookup unresolved", "domain", domain, "index", rec.Index, "status", res.Status, "error", res.Err)
	}

	st.Checked++
	st.LastIndex = int64(rec.Index) + 1
	return nil
}

// persist writes st on a context detached from cancellation so that the
// final write of an interrupted run still happens.
func (c *Checker) persist(ctx context.Context, st *checkpoint.State) error {
	if err := c.cfg.Store.Persist(context.WithoutCancel(ctx), c.cfg.Registry, st); err != nil {
		return fmt.Errorf("failed to persist checkpoint for %s: %w", c.cfg.Registry, err)
	}
	c.publish(*st)
	c.metrics.IncCheckpointPersist(c.cfg.Registry, c.cfg.Store.Backend())
	c.metrics.SetProgress(c.cfg.Registry, st.LastIndex)
	return nil
}

func (c *Checker) publish(st checkpoint.State) {
	c.progress.Store(&st)
}

func (c *Checker) transition(to State, attrs ...any) {
	from := State(c.state.Swap(int32(to)))
	c.logger.Info("State transition", append([]any{"from", from.String(), "to", to.String()}, attrs...)...)
}

func (c *Checker) logProgress(st *checkpoint.State, total int) {
	c.logger.Info(fmt.Sprintf("Progress: %s/%s (%.1f%%) | Available: %s (%.1f%%) | Errors: %s",
		humanize.Comma(st.LastIndex), humanize.Comma(int64(total)), percent(st.LastIndex, total),
		humanize.Comma(st.Available), st.AvailabilityRate(),
		humanize.Comma(st.Errors)))
}

func (c *Checker) logSummary(sum Summary) {
	st := sum.Checkpoint
	rate := "N/A"
	if st.Checked > 0 {
		rate = fmt.Sprintf("%.1f%%", st.AvailabilityRate())
	}
	c.logger.Info(fmt.Sprintf("Final stats for .%s", c.cfg.Registry),
		"state", sum.State.String(),
		"reason", string(sum.Reason),
		"checked", humanize.Comma(st.Checked),
		"available", humanize.Comma(st.Available),
		"taken", humanize.Comma(st.Taken),
		"errors", humanize.Comma(st.Errors),
		"availability_rate", rate,
		"this_run", humanize.Comma(sum.Processed),
		"elapsed", sum.Elapsed.Round(time.Second).String(),
	)
}

func percent(n int64, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
