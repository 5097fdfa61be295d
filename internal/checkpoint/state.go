/*
Package checkpoint persists checker progress per registry scope.

A checkpoint is the only mutable state of a run. It is loaded once when a run
starts, mutated in memory by the checker, and written back periodically and on
exit. Stores must make each write atomic: after a crash, Load returns either the
previous record or the new one. A record that cannot be parsed is reported as
ErrCheckpointCorrupt and never replaced by a fresh one implicitly.
*/
package checkpoint

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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCheckpointCorrupt is returned when a persisted record is malformed or
	// violates the counter invariants.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
	// ErrInvalidState is returned by Persist for a state that would load as corrupt.
	ErrInvalidState = errors.New("invalid checkpoint state")
)

// State is the progress of one registry scope.
type State struct {
	// LastIndex is the index of the next unprocessed candidate. It is the sole
	// resume authority.
	LastIndex int64 `json:"last_index"`
	Checked   int64 `json:"checked"`
	Available int64 `json:"available"`
	Taken     int64 `json:"taken"`
	Errors    int64 `json:"errors"`
	// StartedAt is set once, when the scope is first checked.
	StartedAt time.Time `json:"started_at"`
	// UpdatedAt is refreshed on every persist.
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a zeroed state started at now.
func New(now time.Time) State {
	return State{StartedAt: now}
}

// Validate checks the invariants every persisted state must hold.
func (s State) Validate() error {
	switch {
	case s.LastIndex < 0, s.Checked < 0, s.Available < 0, s.Taken < 0, s.Errors < 0:
		return fmt.Errorf("negative counter in %+v", s)
	case s.Checked != s.Available+s.Taken+s.Errors:
		return fmt.Errorf("checked %d != available %d + taken %d + errors %d", s.Checked, s.Available, s.Taken, s.Errors)
	case s.StartedAt.IsZero():
		return errors.New("missing started_at")
	}
	return nil
}

// AvailabilityRate is the share of checked candidates that were available, in percent.
func (s State) AvailabilityRate() float64 {
	if s.Checked == 0 {
		return 0
	}
	return float64(s.Available) / float64(s.Checked) * 100
}

// Store loads and persists State keyed by scope.
type Store interface {
	// Load returns the stored state, or New(now) when the scope has none.
	Load(ctx context.Context, scope string) (State, error)
	// Persist sets state.UpdatedAt and atomically overwrites the scope's record.
	Persist(ctx context.Context, scope string, state *State) error
	// Reset deletes the scope's record. Only operators call this.
	Reset(ctx context.Context, scope string) error
	// Backend names the storage technology, for logs and metrics.
	Backend() string
}

// Encode renders a state as indented JSON, the on-disk and in-Redis format.
func Encode(s State) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Decode parses and validates a persisted record. Any failure wraps ErrCheckpointCorrupt.
func Decode(data []byte) (State, error) {
	var s State
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
	}
	if dec.More() {
		return State{}, fmt.Errorf("%w: trailing data after record", ErrCheckpointCorrupt)
	}
	if err := s.Validate(); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCheckpointCorrupt, err)
	}
	return s, nil
}

// prepare stamps and validates a state before it is written.
func prepare(state *State, now time.Time) ([]byte, error) {
	state.UpdatedAt = now
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return Encode(*state)
}
