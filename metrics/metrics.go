// Package metrics exposes Prometheus counters for the execution path
// and a small /metrics + /healthz listener.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set groups the coordinator's counters so paper and live runs inside
// one process register against separate registries.
type Set struct {
	Placements   *prometheus.CounterVec // by terminal result
	Rejections   *prometheus.CounterVec // by gate reason
	CircuitTrips prometheus.Counter
	SinkRetries  prometheus.Counter

	registry *prometheus.Registry
}

// NewSet builds and registers the counter set on a fresh registry.
func NewSet() *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakemill_placements_total",
			Help: "placements by terminal result",
		}, []string{"result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakemill_rejections_total",
			Help: "risk gate rejections by reason",
		}, []string{"reason"}),
		CircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakemill_circuit_trips_total",
			Help: "risk circuit trips",
		}),
		SinkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakemill_sink_retries_total",
			Help: "settlement sink retry attempts",
		}),
		registry: reg,
	}

	reg.MustRegister(s.Placements, s.Rejections, s.CircuitTrips, s.SinkRetries)
	return s
}

// HealthFunc reports process health for /healthz.
type HealthFunc func(ctx context.Context) error

// Serve starts a lightweight HTTP listener for /metrics and /healthz in
// a goroutine and returns the server for shutdown.
func (s *Set) Serve(port string, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if healthFn != nil {
			if err := healthFn(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
