// Package metrics exposes Prometheus instrumentation for clip operations
// and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cliphub"

// Operation results recorded on the clip operation counter.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// Metrics holds the collectors for one process. Each instance owns its
// registry so tests can create as many as they like. All methods are safe
// to call on a nil *Metrics.
type Metrics struct {
	registry           *prometheus.Registry
	clipOps            *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New creates a Metrics instance with Go runtime and process collectors
// registered alongside the ClipHub collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		clipOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clip_operations_total",
			Help:      "Clip operations by kind and result.",
		}, []string{"op", "result"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clip_validation_failures_total",
			Help:      "Rejected clip content by reason.",
		}, []string{"reason"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.clipOps,
		m.validationFailures,
		m.requestDuration,
	)
	return m
}

// Registry returns the registry backing this instance.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A nil
// *Metrics serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ClipOp records the outcome of a clip operation.
func (m *Metrics) ClipOp(op, result string) {
	if m == nil {
		return
	}
	m.clipOps.WithLabelValues(op, result).Inc()
}

// ValidationFailure records rejected content.
func (m *Metrics) ValidationFailure(reason string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(reason).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
