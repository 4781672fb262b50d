// Package metrics provides the station's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the station exposes.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ErrorsTotal *prometheus.CounterVec

	// Governance-domain metrics.
	PolicyEvaluationsTotal *prometheus.CounterVec
	RequestStatusTotal     *prometheus.CounterVec
	SchedulerBatchSize     prometheus.Histogram
	SchedulerJobsTotal     *prometheus.CounterVec
	TransferTerminalTotal  *prometheus.CounterVec

	DatabaseQueriesTotal  *prometheus.CounterVec
	DatabaseQueryDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// A nil registerer skips registration, useful in package tests that build
// several instances in the same process.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"service", "method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"service", "method", "route"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors by kind.",
		}, []string{"service", "kind", "operation"}),
		PolicyEvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_evaluations_total",
			Help: "Total number of policy rule evaluations by outcome.",
		}, []string{"rule_kind", "outcome"}),
		RequestStatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "station_request_status_total",
			Help: "Total number of requests reaching a given status.",
		}, []string{"operation_type", "status"}),
		SchedulerBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_batch_size",
			Help:    "Number of due jobs processed per scheduler tick.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		SchedulerJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_jobs_total",
			Help: "Total number of scheduler jobs executed by job type and outcome.",
		}, []string{"job_type", "outcome"}),
		TransferTerminalTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_terminal_total",
			Help: "Total number of transfers reaching a terminal state.",
		}, []string{"state"}),
		DatabaseQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries by operation and status.",
		}, []string{"operation", "status"}),
		DatabaseQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.PolicyEvaluationsTotal,
			m.RequestStatusTotal,
			m.SchedulerBatchSize,
			m.SchedulerJobsTotal,
			m.TransferTerminalTotal,
			m.DatabaseQueriesTotal,
			m.DatabaseQueryDuration,
		)
	}

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, route, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, route).Observe(duration.Seconds())
}

// RecordPolicyEvaluation records one rule-tree node evaluation outcome.
func (m *Metrics) RecordPolicyEvaluation(ruleKind, outcome string) {
	m.PolicyEvaluationsTotal.WithLabelValues(ruleKind, outcome).Inc()
}

// RecordRequestStatus records a request transitioning into status.
func (m *Metrics) RecordRequestStatus(operationType, status string) {
	m.RequestStatusTotal.WithLabelValues(operationType, status).Inc()
}

// RecordSchedulerTick records one scheduler pass over due jobs.
func (m *Metrics) RecordSchedulerTick(jobType string, batchSize int, outcome string) {
	m.SchedulerBatchSize.Observe(float64(batchSize))
	m.SchedulerJobsTotal.WithLabelValues(jobType, outcome).Inc()
}

// RecordTransferTerminal records a transfer reaching a terminal state.
func (m *Metrics) RecordTransferTerminal(state string) {
	m.TransferTerminalTotal.WithLabelValues(state).Inc()
}

// RecordDatabaseQuery records one database round trip.
func (m *Metrics) RecordDatabaseQuery(operation, status string, duration time.Duration) {
	m.DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
