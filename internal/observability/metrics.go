package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	activations  *prometheus.CounterVec
	entitlements *prometheus.CounterVec
	connections  *prometheus.CounterVec
	swept        prometheus.Counter
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by route and error code.",
		}, []string{"path", "method", "code"}),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realty_activations_total",
			Help: "Accounts materialized, by role and activation path.",
		}, []string{"role", "path"}),
		entitlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realty_entitlement_updates_total",
			Help: "Access pass grants and extensions, by outcome.",
		}, []string{"kind", "outcome"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "realty_connection_transitions_total",
			Help: "Connection request state transitions.",
		}, []string{"status"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "realty_pending_registrations_swept_total",
			Help: "Stale pending registrations removed by the sweeper.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.errors, m.activations, m.entitlements, m.connections, m.swept,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordActivation counts a materialized account.
func (m *Metrics) RecordActivation(role, path string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(role, path).Inc()
}

// RecordEntitlement counts an access pass update attempt.
func (m *Metrics) RecordEntitlement(kind, outcome string) {
	if m == nil {
		return
	}
	m.entitlements.WithLabelValues(kind, outcome).Inc()
}

// RecordConnection counts connection requests entering status.
func (m *Metrics) RecordConnection(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.connections.WithLabelValues(status).Add(float64(n))
}

// RecordSwept counts removed pending registrations.
func (m *Metrics) RecordSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// SweptCounter returns the pending sweep counter.
func (m *Metrics) SweptCounter() prometheus.Counter {
	return m.swept
}
