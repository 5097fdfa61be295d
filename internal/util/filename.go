package util

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
	"path/filepath"
	"strings"
)

// maxScopeLength bounds the scope portion of generated file names.
const maxScopeLength = 100

// SanitizeFilename creates a filesystem-safe name fragment from a registry scope
// or other operator-supplied string. Path separators and shell-hostile characters
// become underscores, surrounding dots and spaces are dropped, and the result is
// capped in length. An empty result is returned as "_".
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, strings.ToLower(strings.TrimSpace(input)))
	replaced = strings.Trim(replaced, ".")
	if len(replaced) > maxScopeLength {
		replaced = replaced[:maxScopeLength]
	}
	if replaced == "" {
		return "_"
	}
	return replaced
}

// ScopedPath returns dir/<prefix>_<scope><ext>, the naming scheme shared by
// checkpoints, result partitions, logs and lock files.
func ScopedPath(dir, prefix, scope, ext string) string {
	return filepath.Join(dir, prefix+"_"+SanitizeFilename(scope)+ext)
}
