package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service registry and its meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	Decisions         *prometheus.CounterVec
	StoreConflicts    *prometheus.CounterVec
}

// NewMetrics creates a private registry with the arc_contract meters plus the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arc_contract_operation_duration_seconds",
			Help:    "Duration of lifecycle and storage operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_contract_operation_total",
			Help: "Total number of lifecycle and storage operations.",
		}, []string{"operation", "status"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_contract_errors_total",
			Help: "Operation failures by error kind.",
		}, []string{"operation", "kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_contract_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arc_contract_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_contract_policy_decisions_total",
			Help: "Exploitation checks by decision effect.",
		}, []string{"effect"}),
		StoreConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arc_contract_store_conflicts_total",
			Help: "Optimistic write conflicts by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.OperationDuration,
		m.OperationTotal,
		m.ErrorsTotal,
		m.HTTPRequests,
		m.HTTPDuration,
		m.Decisions,
		m.StoreConflicts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordDecision counts one exploitation check. Safe on a nil receiver.
func (m *Metrics) RecordDecision(effect string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(effect).Inc()
}

// RecordConflict counts one optimistic concurrency retry. Safe on a nil receiver.
func (m *Metrics) RecordConflict(operation string) {
	if m == nil {
		return
	}
	m.StoreConflicts.WithLabelValues(operation).Inc()
}
