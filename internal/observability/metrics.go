package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the prometheus collectors the service exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	inFlight        prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec

	notificationsEmitted *prometheus.CounterVec
	handlerFailures      *prometheus.CounterVec
	llmRequests          *prometheus.CounterVec
	overdueFlagged       prometheus.Counter
}

// NewMetrics creates the collectors on a private registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Error responses by error code.",
		}, []string{"method", "path", "code"}),
		notificationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Notifications stored, by type.",
		}, []string{"type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Event handler failures swallowed by the dispatcher.",
		}, []string{"event"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Chat completion calls by outcome.",
		}, []string{"outcome"}),
		overdueFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickets_overdue_flagged_total",
			Help: "Tickets flagged by the overdue scan.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inFlight,
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.notificationsEmitted,
		m.handlerFailures,
		m.llmRequests,
		m.overdueFlagged,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RequestStarted increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// RecordRequest observes a finished request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestsTotal.WithLabelValues(method, path, code).Inc()
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordError counts an error response by its error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, path, code).Inc()
}

// NotificationEmitted counts a stored notification by type.
func (m *Metrics) NotificationEmitted(kind string) {
	if m == nil {
		return
	}
	m.notificationsEmitted.WithLabelValues(kind).Inc()
}

// HandlerFailed counts an event handler error by event name.
func (m *Metrics) HandlerFailed(event string) {
	if m == nil {
		return
	}
	m.handlerFailures.WithLabelValues(event).Inc()
}

// LLMRequest counts a provider call by outcome: ok, error or rate_limited.
func (m *Metrics) LLMRequest(outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(outcome).Inc()
}

// OverdueFlagged adds n tickets flagged by an overdue scan.
func (m *Metrics) OverdueFlagged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.overdueFlagged.Add(float64(n))
}
