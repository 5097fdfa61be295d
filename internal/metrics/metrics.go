/*
Package metrics exposes checker progress to Prometheus.

Collection is off until EnableMetrics is called; every recording helper is a
no-op before that, so library code can record unconditionally.
*/
package metrics

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
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry          = prometheus.NewRegistry()
	defaultRegisterer = promauto.With(registry)
	metricsEnabled    atomic.Bool
)

// Metrics contains all the Prometheus metrics for the application
type Metrics struct {
	// Lookup metrics
	LookupsTotal   *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec

	// Pacing
	RateLimitWait *prometheus.HistogramVec

	// Persistence metrics
	CheckpointPersists *prometheus.CounterVec
	PartitionWrites    *prometheus.CounterVec

	// Progress
	ProgressIndex *prometheus.GaugeVec
}

// Global instance of metrics
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

// EnableMetrics enables metrics collection
func EnableMetrics() {
	metricsEnabled.Store(true)
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// Gatherer returns the registry every metric is registered with.
func Gatherer() prometheus.Gatherer {
	return registry
}

func newMetrics() *Metrics {
	// Lookups are bounded by a 10s timeout; waits by the pacing interval (2s at 30/min).
	buckets := []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	return &Metrics{
		LookupsTotal: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxavail_lookups_total",
				Help: "Total number of RDAP lookups by outcome",
			},
			[]string{"registry", "outcome"},
		),
		LookupDuration: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxavail_lookup_duration_seconds",
				Help:    "Time spent on a single RDAP lookup",
				Buckets: buckets,
			},
			[]string{"registry"},
		),
		RateLimitWait: defaultRegisterer.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rxavail_rate_limit_wait_seconds",
				Help:    "Time spent waiting for the rate limiter",
				Buckets: buckets,
			},
			[]string{"registry"},
		),
		CheckpointPersists: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxavail_checkpoint_persists_total",
				Help: "Total number of checkpoint writes",
			},
			[]string{"registry", "backend"},
		),
		PartitionWrites: defaultRegisterer.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rxavail_partition_writes_total",
				Help: "Total number of lines appended to result partitions",
			},
			[]string{"registry", "partition"},
		),
		ProgressIndex: defaultRegisterer.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rxavail_progress_index",
				Help: "Index of the next unprocessed candidate",
			},
			[]string{"registry"},
		),
	}
}

// ObserveLookup records one classified lookup.
func (m *Metrics) ObserveLookup(registry, outcome string, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	m.LookupsTotal.WithLabelValues(registry, outcome).Inc()
	m.LookupDuration.WithLabelValues(registry).Observe(d.Seconds())
}

// ObserveRateLimitWait records how long an Acquire blocked.
func (m *Metrics) ObserveRateLimitWait(registry string, d time.Duration) {
	if !IsMetricsEnabled() {
		return
	}
	m.RateLimitWait.WithLabelValues(registry).Observe(d.Seconds())
}

// IncCheckpointPersist counts a successful checkpoint write.
func (m *Metrics) IncCheckpointPersist(registry, backend string) {
	if !IsMetricsEnabled() {
		return
	}
	m.CheckpointPersists.WithLabelValues(registry, backend).Inc()
}

// IncPartitionWrite counts a line appended to a result partition.
func (m *Metrics) IncPartitionWrite(registry, partition string) {
	if !IsMetricsEnabled() {
		return
	}
	m.PartitionWrites.WithLabelValues(registry, partition).Inc()
}

// SetProgress publishes the resume index of a registry scope.
func (m *Metrics) SetProgress(registry string, index int64) {
	if !IsMetricsEnabled() {
		return
	}
	m.ProgressIndex.WithLabelValues(registry).Set(float64(index))
}

// ProgressFunc returns a JSON-serializable snapshot of live progress.
type ProgressFunc func() any

// Server exposes /metrics and /progress over HTTP.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds a server listening on addr. progress may be nil, in
// which case /progress answers 404.
func NewServer(addr string, progress ProgressFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(progress),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter returns the handler serving /metrics and /progress.
func NewRouter(progress ProgressFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/progress", func(w http.ResponseWriter, req *http.Request) {
		if progress == nil {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(progress())
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Starting metrics server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down metrics server")
	return s.srv.Shutdown(shutdownCtx)
}
