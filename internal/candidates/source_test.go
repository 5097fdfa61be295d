package candidates

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s Source, from int) []Record {
	var out []Record
	for r := range s.Slice(from) {
		out = append(out, r)
	}
	return out
}

func TestSliceSourceAt(t *testing.T) {
	t.Parallel()

	s := NewSliceSource([]string{"abcd", "efgh", "ijkl"})
	require.Equal(t, 3, s.Len())

	r, err := s.At(1)
	require.NoError(t, err)
	assert.Equal(t, Record{Index: 1, Value: "efgh"}, r)

	_, err = s.At(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.At(-1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSliceIsRestartableAndOrdered(t *testing.T) {
	t.Parallel()

	s := NewSliceSource([]string{"a", "b", "c", "d"})

	first := collect(s, 1)
	second := collect(s, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, []Record{{1, "b"}, {2, "c"}, {3, "d"}}, first)

	assert.Empty(t, collect(s, 4))
	assert.Empty(t, collect(s, 10))
	assert.Len(t, collect(s, -5), 4)
}

func TestSliceStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	s := NewSliceSource([]string{"a", "b", "c"})
	var seen []string
	for r := range s.Slice(0) {
		seen = append(seen, r.Value)
		if r.Index == 1 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestLoadFileTrimsAndSkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "patterns.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcd\n\n  efgh \r\nijkl"), 0644))

	fs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, fs.Path())
	assert.Equal(t, []Record{{0, "abcd"}, {1, "efgh"}, {2, "ijkl"}}, collect(fs, 0))
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFingerprintDependsOnOrder(t *testing.T) {
	t.Parallel()

	a := NewSliceSource([]string{"abcd", "efgh"})
	b := NewSliceSource([]string{"abcd", "efgh"})
	c := NewSliceSource([]string{"efgh", "abcd"})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestFingerprintIgnoresFileFormatting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "patterns.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcd\n\n  efgh \n"), 0o644))
	fs, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, NewSliceSource([]string{"abcd", "efgh"}).Fingerprint(), fs.Fingerprint())
	assert.NotEqual(t, NewSliceSource([]string{"abcd"}).Fingerprint(), fs.Fingerprint())
}

func TestNewSliceSourceCopiesInput(t *testing.T) {
	t.Parallel()

	in := []string{"a", "b"}
	s := NewSliceSource(in)
	in[0] = "z"

	r, err := s.At(0)
	require.NoError(t, err)
	assert.Equal(t, "a", r.Value)
	assert.False(t, slices.Contains(s.values, "z"))
}
