//go:build !linux

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

// Advisory locking is only implemented via flock on Linux. Elsewhere Acquire
// always succeeds and exclusivity is the operator's responsibility.

package lock

// Lock is a no-op scope lock.
type Lock struct{}

// Acquire always succeeds.
func Acquire(_, _ string) (*Lock, error) {
	return &Lock{}, nil
}

// Release is a no-op.
func (l *Lock) Release() error { return nil }
