package client

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

/*
Package client provides the shared HTTP client used for registry lookups.

The package manages one global client that is configured once and then retrieved by
the RDAP layer. Lookups are sequential and paced, so the pool is small; what matters
is that connections to the registry are reused and every request is bounded in time.
*/

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	// RequestTimeout bounds a whole lookup: dial, TLS, headers and body.
	RequestTimeout = 10 * time.Second
	// MaxIdleConnsPerHost caps idle connections kept to the registry host.
	MaxIdleConnsPerHost = 4
)

var (
	defaultDialTimeout      = 5 * time.Second
	defaultKeepAliveTimeout = 60 * time.Second
	defaultIdleConnTimeout  = 90 * time.Second
	defaultMaxIdleConns     = 16
	defaultMaxConnsPerHost  = 4

	// sharedClient is lazily initialized on first use or when explicitly configured.
	sharedClient      *http.Client
	sharedClientLock  sync.RWMutex
	clientInitialized bool
)

// Config holds transport tuning for the shared client. Zero fields take defaults.
type Config struct {
	DialTimeout         time.Duration
	KeepAliveTimeout    time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	// RequestTimeout is the overall per-request budget.
	RequestTimeout time.Duration
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:         defaultDialTimeout,
		KeepAliveTimeout:    defaultKeepAliveTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		RequestTimeout:      RequestTimeout,
	}
}

// InitHTTPClient initializes or reconfigures the shared client. A nil config
// means DefaultConfig. Idle connections of a replaced client are closed.
func InitHTTPClient(config *Config) {
	sharedClientLock.Lock()
	defer sharedClientLock.Unlock()

	if config == nil {
		config = DefaultConfig()
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = defaultDialTimeout
	}
	if config.KeepAliveTimeout == 0 {
		config.KeepAliveTimeout = defaultKeepAliveTimeout
	}
	if config.IdleConnTimeout == 0 {
		config.IdleConnTimeout = defaultIdleConnTimeout
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = defaultMaxIdleConns
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = MaxIdleConnsPerHost
	}
	if config.MaxConnsPerHost == 0 {
		config.MaxConnsPerHost = defaultMaxConnsPerHost
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = RequestTimeout
	}

	if sharedClient != nil {
		if oldTransport, ok := sharedClient.Transport.(*http.Transport); ok && oldTransport != nil {
			oldTransport.CloseIdleConnections()
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAliveTimeout,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.DialTimeout,
		ResponseHeaderTimeout: config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	sharedClient = &http.Client{
		Transport: transport,
		Timeout:   config.RequestTimeout,
	}

	clientInitialized = true
}

// GetHTTPClient returns the shared client, initializing it with defaults if needed.
func GetHTTPClient() *http.Client {
	sharedClientLock.RLock()
	if !clientInitialized {
		sharedClientLock.RUnlock()
		InitHTTPClient(nil)
		sharedClientLock.RLock()
	}
	client := sharedClient
	sharedClientLock.RUnlock()
	return client
}
