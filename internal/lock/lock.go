/*
Package lock gives a process exclusive ownership of a registry scope.

Two checkers writing the same checkpoint and partitions would break the
exactly-once accounting, so a run takes an advisory lock on <dir>/lock_<scope>.lock
before loading its checkpoint and holds it until exit.
*/
package lock

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
	"errors"

	"github.com/x-stp/rxavail/internal/util"
)

// ErrLocked means another process holds the scope.
var ErrLocked = errors.New("scope is locked by another process")

// Path returns the lock file of a scope.
func Path(dir, scope string) string {
	return util.ScopedPath(dir, "lock", scope, ".lock")
}
