package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics records backend request outcomes for the gateway client.
type RequestMetrics struct {
	duration  *prometheus.HistogramVec
	requests  *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewRequestMetrics registers the gateway metrics on the provided registerer.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	if reg == nil {
		return &RequestMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_requests_total",
		Help: "Backend requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credential_refreshes_total",
		Help: "Credential refresh attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, requests, refreshes)
	return &RequestMetrics{
		duration:  duration,
		requests:  requests,
		refreshes: refreshes,
	}
}

// ObserveDuration records how long the named operation took.
func (m *RequestMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncRequest counts one completed request.
func (m *RequestMetrics) IncRequest(operation, outcome string) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncRefresh counts one credential refresh attempt.
func (m *RequestMetrics) IncRefresh(outcome string) {
	if m == nil || m.refreshes == nil {
		return
	}
	m.refreshes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
