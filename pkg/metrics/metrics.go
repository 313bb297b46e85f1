// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for chproxy.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for chproxy.
type Metrics struct {
	// Connection metrics
	ActiveConnections  *prometheus.GaugeVec
	TotalConnections   *prometheus.CounterVec
	ConnectionErrors   *prometheus.CounterVec
	ConnectionDuration *prometheus.HistogramVec

	// Backend metrics
	BackendRequestsTotal     *prometheus.CounterVec
	BackendErrors            *prometheus.CounterVec
	BackendDuration          *prometheus.HistogramVec
	BackendActiveConnections *prometheus.GaugeVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitedConnections *prometheus.CounterVec

	// Resource metrics
	GoroutinesActive *prometheus.GaugeVec
	MemoryAllocated  *prometheus.GaugeVec

	// Handshake decoding metrics
	HandshakesStarted   *prometheus.CounterVec
	HandshakesCompleted *prometheus.CounterVec
	HandoffsTotal       *prometheus.CounterVec
	ProtocolVersion     *prometheus.HistogramVec
	ChunkedPacketsTotal *prometheus.CounterVec
	ProtocolErrorsTotal *prometheus.CounterVec
	BlockedConnections  *prometheus.CounterVec
}

// New creates a new Metrics instance with all counters, gauges, and histograms.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "chproxy"
	}

	return &Metrics{
		ActiveConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Number of currently active client connections",
			},
			[]string{"type"},
		),
		TotalConnections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of connections accepted",
			},
			[]string{"status"},
		),
		ConnectionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_errors_total",
				Help:      "Total number of connection errors",
			},
			[]string{"error_type"},
		),
		ConnectionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_duration_seconds",
				Help:      "Connection duration in seconds",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300, 600},
			},
			[]string{"type"},
		),
		BackendRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_dials_total",
				Help:      "Total number of backend dial attempts",
			},
			[]string{"backend", "status"},
		),
		BackendErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "Total number of backend errors",
			},
			[]string{"backend", "error_type"},
		),
		BackendDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_dial_duration_seconds",
				Help:      "Backend dial duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		BackendActiveConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_active_connections",
				Help:      "Number of active backend connections",
			},
			[]string{"backend"},
		),
		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"backend"},
		),
		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"backend"},
		),
		RateLimitedConnections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_connections_total",
				Help:      "Total number of connections rejected by the rate limiter",
			},
			[]string{"limiter_type"},
		),
		GoroutinesActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of active goroutines by component",
			},
			[]string{"component"},
		),
		MemoryAllocated: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_allocated_bytes",
				Help:      "Memory allocated in bytes",
			},
			[]string{"type"},
		),
		HandshakesStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshakes_started_total",
				Help:      "Total number of handshakes observed starting",
			},
			[]string{"direction"},
		),
		HandshakesCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handshakes_completed_total",
				Help:      "Total number of handshakes that reached Done",
			},
			[]string{"direction"},
		),
		HandoffsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handoffs_total",
				Help:      "Total number of directions handed off to byte-for-byte passthrough",
			},
			[]string{"direction", "reason"},
		),
		ProtocolVersion: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "negotiated_protocol_version",
				Help:      "Negotiated tcp_protocol_version of decoded handshakes",
				Buckets:   []float64{54058, 54372, 54401, 54458, 54461, 54462, 54470},
			},
			[]string{},
		),
		ChunkedPacketsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunked_packets_total",
				Help:      "Total number of chunked-protocol packets identified",
			},
			[]string{"direction", "packet_type"},
		),
		ProtocolErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "protocol_errors_total",
				Help:      "Total number of protocol errors observed during handshake decoding",
			},
			[]string{"direction", "kind"},
		),
		BlockedConnections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocked_connections_total",
				Help:      "Total number of connections handed off due to a blocklist match",
			},
			[]string{},
		),
	}
}

// ObserveConnection tracks a connection lifecycle: active-connection gauge,
// duration histogram, and a success/error total, all keyed by connType. Used
// by server/tcp.Server.handleConn to wrap the client-facing half of a
// connection.
func (m *Metrics) ObserveConnection(connType string, f func() error) error {
	m.ActiveConnections.WithLabelValues(connType).Inc()
	defer m.ActiveConnections.WithLabelValues(connType).Dec()

	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		m.ConnectionDuration.WithLabelValues(connType).Observe(duration)
	}()

	err := f()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TotalConnections.WithLabelValues(status).Inc()

	return err
}
