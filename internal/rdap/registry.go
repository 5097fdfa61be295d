/*
Package rdap performs single registry lookups over RDAP and maps the answer onto
the three outcomes the checker cares about: available, taken, or unresolved.
*/
package rdap

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
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnknownRegistry means the registry id has no configured endpoint.
var ErrUnknownRegistry = errors.New("unknown registry")

// Registries maps a registry id (the TLD, lower case) to its RDAP domain
// endpoint. The domain name is appended verbatim, so endpoints end in "/".
type Registries map[string]string

// DefaultRegistries returns the built-in endpoint table.
func DefaultRegistries() Registries {
	return Registries{
		"ai":  "https://rdap.identitydigital.services/rdap/domain/",
		"io":  "https://rdap.identitydigital.services/rdap/domain/",
		"com": "https://rdap.verisign.com/com/v1/domain/",
		"net": "https://rdap.verisign.com/net/v1/domain/",
	}
}

// Merge returns a copy of r with overrides applied on top. Ids are lower-cased.
func (r Registries) Merge(overrides map[string]string) Registries {
	out := make(Registries, len(r)+len(overrides))
	for id, ep := range r {
		out[strings.ToLower(id)] = ep
	}
	for id, ep := range overrides {
		out[strings.ToLower(strings.TrimSpace(id))] = strings.TrimSpace(ep)
	}
	return out
}

// Endpoint resolves a registry id or fails with ErrUnknownRegistry.
func (r Registries) Endpoint(registry string) (string, error) {
	ep, ok := r[strings.ToLower(registry)]
	if !ok || ep == "" {
		return "", fmt.Errorf("%w: %q (configured: %s)", ErrUnknownRegistry, registry, strings.Join(r.Names(), ", "))
	}
	return ep, nil
}

// Names returns the configured registry ids, sorted.
func (r Registries) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// DomainName joins a candidate label and a registry id into a domain name.
func DomainName(label, registry string) string {
	return label + "." + strings.ToLower(registry)
}
