package core

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

// Defaults for a checker run. Configuration overrides all of them.
const (
	// DefaultRegistry is the registry scope checked when none is given.
	DefaultRegistry = "ai"

	// DefaultRatePerMinute is the lookup budget of a run.
	DefaultRatePerMinute = 30

	// DefaultCheckpointEvery is how many checks pass between checkpoint writes
	// and progress log lines. A crash loses at most this many checks.
	DefaultCheckpointEvery = 100
)
