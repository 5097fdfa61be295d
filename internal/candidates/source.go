/*
Package candidates exposes the ordered vocabulary of labels that the checker walks.
Each label has a stable 0-based index; checkpoints store positions in this sequence,
so a Source must present the same order on every run.

It also contains the phonetic generator that produces the default vocabulary file.
*/
package candidates

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
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
)

// ErrIndexOutOfRange is returned by At for an index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("candidate index out of range")

// Record is one candidate label and its position in the vocabulary.
type Record struct {
	Index int
	Value string
}

// Source is a read-only, stably indexed sequence of candidates.
type Source interface {
	// Len returns the number of candidates.
	Len() int
	// At returns the candidate at index or ErrIndexOutOfRange.
	At(index int) (Record, error)
	// Slice yields candidates from index `from` in ascending order. Calling it
	// again with the same argument yields the same sequence.
	Slice(from int) iter.Seq[Record]
}

// SliceSource is an in-memory Source.
type SliceSource struct {
	values []string
}

// NewSliceSource copies values into a new SliceSource.
func NewSliceSource(values []string) *SliceSource {
	return &SliceSource{values: append([]string(nil), values...)}
}

// Len implements Source.
func (s *SliceSource) Len() int { return len(s.values) }

// At implements Source.
func (s *SliceSource) At(index int) (Record, error) {
	if index < 0 || index >= len(s.values) {
		return Record{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.values))
	}
	return Record{Index: index, Value: s.values[index]}, nil
}

// Slice implements Source. A negative from is treated as 0 and a from past the
// end yields nothing.
func (s *SliceSource) Slice(from int) iter.Seq[Record] {
	from = max(from, 0)
	return func(yield func(Record) bool) {
		for i := from; i < len(s.values); i++ {
			if !yield(Record{Index: i, Value: s.values[i]}) {
				return
			}
		}
	}
}

// Fingerprint is an xxh3 hash over the ordered vocabulary. It is logged so
// operators can tell vocabularies apart.
func (s *SliceSource) Fingerprint() uint64 {
	h := xxh3.New()
	for _, v := range s.values {
		h.WriteString(v)
		h.WriteString("\n")
	}
	return h.Sum64()
}

// FileSource is a SliceSource loaded from a newline-delimited vocabulary file.
type FileSource struct {
	*SliceSource
	path string
}

// LoadFile reads one candidate per line. Surrounding whitespace is trimmed and
// blank lines are skipped, so indexes count only non-empty entries.
func LoadFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candidates file %q: %w", path, err)
	}
	defer f.Close()

	var values []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		values = append(values, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed reading candidates file %q: %w", path, err)
	}

	return &FileSource{SliceSource: &SliceSource{values: values}, path: path}, nil
}

// Path returns the file the source was loaded from.
func (f *FileSource) Path() string { return f.path }
