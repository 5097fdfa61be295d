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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/x-stp/rxavail/internal/client"
)

const (
	// LookupTimeout is the fixed budget of one lookup.
	LookupTimeout = 10 * time.Second
	// AcceptHeader is the RDAP media type (RFC 7480).
	AcceptHeader = "application/rdap+json"

	// maxDrainBytes caps how much of a response body is read before closing,
	// enough for keep-alive reuse without pulling large RDAP documents.
	maxDrainBytes = 64 * 1024
)

var (
	// ErrLookupTransport covers timeouts and network failures.
	ErrLookupTransport = errors.New("rdap transport error")
	// ErrLookupUnexpectedStatus covers any status other than 200 and 404.
	ErrLookupUnexpectedStatus = errors.New("rdap unexpected status")
)

// Outcome is the classification of one lookup.
type Outcome int

const (
	Unresolved Outcome = iota
	Available
	Taken
)

func (o Outcome) String() string {
	switch o {
	case Available:
		return "available"
	case Taken:
		return "taken"
	default:
		return "unresolved"
	}
}

// Result is what one lookup produced. Err is set only for Unresolved and wraps
// ErrLookupTransport or ErrLookupUnexpectedStatus. Status is 0 when no response arrived.
type Result struct {
	Outcome Outcome
	Status  int
	Err     error
}

// Client looks domains up against a registry table.
type Client struct {
	httpClient *http.Client
	registries Registries
	timeout    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides LookupTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a Client over the given registry table.
func NewClient(registries Registries, opts ...Option) *Client {
	c := &Client{
		registries: registries,
		timeout:    LookupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = client.GetHTTPClient()
	}
	return c
}

// Registries returns the table the client resolves against.
func (c *Client) Registries() Registries { return c.registries }

// Lookup issues one GET for domain against the registry's endpoint. It never
// retries. The returned error is non-nil only when the registry is not
// configured, in which case no request was sent; every per-domain failure is
// reported as an Unresolved Result instead.
func (c *Client) Lookup(ctx context.Context, domain, registry string) (Result, error) {
	endpoint, err := c.registries.Endpoint(registry)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+domain, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: building request for %s: %v", ErrLookupTransport, domain, err)}, nil
	}
	req.Header.Set("Accept", AcceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %s: %w", ErrLookupTransport, domain, err)}, nil
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	return Classify(resp.StatusCode), nil
}

// Classify maps an RDAP response status onto an Outcome.
func Classify(status int) Result {
	switch status {
	case http.StatusNotFound:
		return Result{Outcome: Available, Status: status}
	case http.StatusOK:
		return Result{Outcome: Taken, Status: status}
	default:
		return Result{Status: status, Err: fmt.Errorf("%w: %d", ErrLookupUnexpectedStatus, status)}
	}
}
