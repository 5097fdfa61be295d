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
	"fmt"
	"io"
	"slices"
	"strings"
)

// Letter classes. q and x are left out; they rarely show up in brandable words.
const (
	Consonants = "bcdfghjklmnprstvwz"
	Vowels     = "aeiou"
)

var (
	startClusters = []string{
		"bl", "br", "ch", "cl", "cr", "dr", "fl", "fr", "gl", "gr",
		"pl", "pr", "sc", "sh", "sk", "sl", "sm", "sn", "sp", "st",
		"sw", "th", "tr", "tw", "wh", "wr",
	}

	// midClusters are the ending clusters that also read naturally between two vowels.
	midClusters = []string{
		"ld", "lf", "lk", "lm", "lp", "lt", "mp", "nd", "ng", "nk",
		"nt", "rb", "rd", "rg", "rk", "rm", "rn", "rp", "rt",
	}

	badBigrams = []string{
		"aa", "ii", "uu",
		"bv", "fv", "gj", "hj", "kj", "pv", "vb", "vf", "vp",
		"jr", "rj", "wj", "jw", "zj", "jz",
	}
)

// Family is one word shape, e.g. CVCV, built as the cartesian product of its slots.
type Family struct {
	Name  string
	slots [][]string
}

func letters(s string) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i : i+1]
	}
	return out
}

// Families lists the generated shapes in generation order.
var Families = func() []Family {
	c, v := letters(Consonants), letters(Vowels)
	return []Family{
		{Name: "CVCV", slots: [][]string{c, v, c, v}},
		{Name: "CVCVC", slots: [][]string{c, v, c, v, c}},
		{Name: "CCVCV", slots: [][]string{startClusters, v, c, v}},
		{Name: "CVCCV", slots: [][]string{c, v, midClusters, v}},
		{Name: "CVCVCV", slots: [][]string{c, v, c, v, c, v}},
		{Name: "CCVCVC", slots: [][]string{startClusters, v, c, v, c}},
	}
}()

// FamilyByName finds a family case-insensitively.
func FamilyByName(name string) (Family, bool) {
	for _, f := range Families {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Family{}, false
}

// Words yields every pronounceable word of the family, first slot varying slowest.
func (f Family) Words(yield func(string) bool) {
	buf := make([]byte, 0, 8)
	var walk func(depth int) bool
	walk = func(depth int) bool {
		if depth == len(f.slots) {
			w := string(buf)
			return !IsPronounceable(w) || yield(w)
		}
		mark := len(buf)
		for _, part := range f.slots[depth] {
			buf = append(buf[:mark], part...)
			if !walk(depth + 1) {
				return false
			}
		}
		return true
	}
	walk(0)
}

// IsPronounceable rejects awkward bigrams and runs of three consonants or three vowels.
func IsPronounceable(word string) bool {
	word = strings.ToLower(word)
	for _, bad := range badBigrams {
		if strings.Contains(word, bad) {
			return false
		}
	}

	consonantRun, vowelRun := 0, 0
	for _, r := range word {
		switch {
		case strings.ContainsRune(Consonants, r):
			consonantRun++
			vowelRun = 0
		case strings.ContainsRune(Vowels, r):
			vowelRun++
			consonantRun = 0
		default:
			consonantRun, vowelRun = 0, 0
		}
		if consonantRun >= 3 || vowelRun >= 3 {
			return false
		}
	}
	return true
}

// FamilyCount is the number of new unique words a family contributed.
type FamilyCount struct {
	Family string
	Count  int
}

// Vocabulary is the deduplicated, sorted output of Generate.
type Vocabulary struct {
	Words  []string
	Counts []FamilyCount
}

// Generate builds the vocabulary from the given families (all when empty).
// A word produced by several families is credited to the first one.
func Generate(families []Family) Vocabulary {
	if len(families) == 0 {
		families = Families
	}

	seen := make(map[string]struct{})
	var vocab Vocabulary
	for _, f := range families {
		n := 0
		for w := range f.Words {
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			vocab.Words = append(vocab.Words, w)
			n++
		}
		vocab.Counts = append(vocab.Counts, FamilyCount{Family: f.Name, Count: n})
	}
	slices.Sort(vocab.Words)
	return vocab
}

// WriteTo writes one word per line.
func (v Vocabulary) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, word := range v.Words {
		n, err := fmt.Fprintln(w, word)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
