// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the remote store client and the workflow actions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	remoteCalls  *prometheus.CounterVec
	actions      *prometheus.CounterVec
}

// New creates the metrics set on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signoff_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_remote_calls_total",
			Help: "Remote tabular store calls by table, operation and outcome",
		}, []string{"table", "operation", "outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signoff_actions_total",
			Help: "Workflow actions by trigger and outcome",
		}, []string{"trigger", "outcome"}),
	}

	registry.MustRegister(m.httpRequests, m.httpDuration, m.remoteCalls, m.actions)
	return m
}

// ObserveRequest records one handled HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveRemoteCall records one call against the remote store
func (m *Metrics) ObserveRemoteCall(table, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteCalls.WithLabelValues(table, operation, outcome).Inc()
}

// ObserveAction records one executed workflow action
func (m *Metrics) ObserveAction(trigger string, err error) {
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	m.actions.WithLabelValues(trigger, outcome).Inc()
}

// Handler returns the scrape endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
