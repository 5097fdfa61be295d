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
	"strings"
)

const (
	vowels     = "aeiou"
	consonants = "bcdfghjklmnprstvwz"
)

// digraphs are consonant pairs that sound as one consonant.
var digraphs = map[string]bool{
	"ch": true, "sh": true, "th": true, "wh": true,
	"wr": true, "ck": true, "ng": true, "nk": true,
}

// DetectPattern returns the phonetic shape of word: C for a consonant or
// consonant digraph, V for a vowel, ? for anything else, with runs of the
// same symbol merged. "shabo" is CVCV, "brako" is CVCV too.
func DetectPattern(word string) string {
	word = strings.ToLower(word)
	var b strings.Builder
	var last byte
	emit := func(sym byte) {
		if sym != last {
			b.WriteByte(sym)
			last = sym
		}
	}

	for i := 0; i < len(word); {
		if i+1 < len(word) && digraphs[word[i:i+2]] {
			emit('C')
			i += 2
			continue
		}
		switch c := word[i]; {
		case strings.IndexByte(vowels, c) >= 0:
			emit('V')
		case strings.IndexByte(consonants, c) >= 0:
			emit('C')
		default:
			emit('?')
		}
		i++
	}
	return b.String()
}

// ParseDomainLine splits a partition line into label and TLD. It reports
// false for blank lines, lines without a dot, and lines whose TLD is not tld.
func ParseDomainLine(line, tld string) (word string, ok bool) {
	domain := strings.TrimSpace(line)
	if domain == "" {
		return "", false
	}
	i := strings.LastIndexByte(domain, '.')
	if i <= 0 || i == len(domain)-1 {
		return "", false
	}
	if domain[i+1:] != tld {
		return "", false
	}
	return domain[:i], true
}
