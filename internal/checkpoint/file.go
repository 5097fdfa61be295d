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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/x-stp/rxavail/internal/util"
)

// FileStore keeps one JSON document per scope, checkpoint_<scope>.json, in Dir.
// Writes go to a temp file that is fsynced and renamed over the previous record.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Path returns the checkpoint file of a scope.
func (s *FileStore) Path(scope string) string {
	return util.ScopedPath(s.dir, "checkpoint", scope, ".json")
}

// Backend implements Store.
func (s *FileStore) Backend() string { return "file" }

// Load implements Store.
func (s *FileStore) Load(_ context.Context, scope string) (State, error) {
	path := s.Path(scope)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(s.now()), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	st, err := Decode(data)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", path, err)
	}
	return st, nil
}

// Persist implements Store.
func (s *FileStore) Persist(_ context.Context, scope string, state *State) error {
	data, err := prepare(state, s.now())
	if err != nil {
		return err
	}
	path := s.Path(scope)
	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("failed to persist checkpoint %s: %w", path, err)
	}
	return nil
}

// Reset implements Store. Resetting a scope without a checkpoint is not an error.
func (s *FileStore) Reset(_ context.Context, scope string) error {
	path := s.Path(scope)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint %s: %w", path, err)
	}
	return nil
}
