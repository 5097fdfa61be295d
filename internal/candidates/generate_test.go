package candidates

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPronounceable(t *testing.T) {
	t.Parallel()

	good := []string{"zova", "bira", "blaze", "bolta", "zenova", "crivo"}
	bad := []string{
		"baav",  // double a
		"kabvi", // bv
		"strak", // three consonants
		"beaio", // three vowels
		"jrava", // jr
	}
	for _, w := range good {
		assert.True(t, IsPronounceable(w), w)
	}
	for _, w := range bad {
		assert.False(t, IsPronounceable(w), w)
	}
}

func TestCVCVFamilyIsComplete(t *testing.T) {
	t.Parallel()

	f, ok := FamilyByName("cvcv")
	require.True(t, ok)

	var words []string
	for w := range f.Words {
		words = append(words, w)
	}
	// CVCV never places two consonants or two vowels side by side, so no filter applies.
	assert.Len(t, words, len(Consonants)*len(Vowels)*len(Consonants)*len(Vowels))
	assert.Equal(t, "baba", words[0])
	assert.Equal(t, "zuzu", words[len(words)-1])
}

func TestFamilyWordsStopsEarly(t *testing.T) {
	t.Parallel()

	f, ok := FamilyByName("CVCVCV")
	require.True(t, ok)

	n := 0
	for range f.Words {
		n++
		if n == 10 {
			break
		}
	}
	assert.Equal(t, 10, n)
}

func TestGenerateDedupesAndSorts(t *testing.T) {
	t.Parallel()

	cvcv, _ := FamilyByName("CVCV")
	cvccv, _ := FamilyByName("CVCCV")
	vocab := Generate([]Family{cvcv, cvccv, cvcv})

	require.Len(t, vocab.Counts, 3)
	assert.Equal(t, "CVCV", vocab.Counts[0].Family)
	assert.Equal(t, 0, vocab.Counts[2].Count, "repeated family adds nothing new")
	assert.Equal(t, vocab.Counts[0].Count+vocab.Counts[1].Count, len(vocab.Words))

	assert.True(t, slices.IsSorted(vocab.Words))
	assert.Len(t, slices.Compact(slices.Clone(vocab.Words)), len(vocab.Words))
	for _, w := range vocab.Words {
		assert.True(t, IsPronounceable(w), w)
	}
}

func TestVocabularyWriteTo(t *testing.T) {
	t.Parallel()

	v := Vocabulary{Words: []string{"abcd", "efgh"}}
	var buf bytes.Buffer
	n, err := v.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "abcd\nefgh\n", buf.String())
}

func TestFamilyByNameUnknown(t *testing.T) {
	t.Parallel()

	_, ok := FamilyByName("VVVV")
	assert.False(t, ok)
	for _, f := range Families {
		assert.Equal(t, strings.ToUpper(f.Name), f.Name)
	}
}
