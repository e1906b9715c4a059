package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the collectors exported by the service. Each instance owns
// its registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	filterRequests   *prometheus.CounterVec
	filterResultSize prometheus.Histogram
	migrationSteps   *prometheus.CounterVec
	writes           *prometheus.CounterVec
	rpcRequests      *prometheus.CounterVec
	rpcLatency       *prometheus.HistogramVec
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		filterRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_filter_requests_total",
				Help: "Filter requests by number of active criteria",
			},
			[]string{"active_criteria"},
		),
		filterResultSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "users_filter_result_size",
				Help:    "Number of users returned by a filter request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		migrationSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schema_migration_step_transitions_total",
				Help: "Migration step state transitions",
			},
			[]string{"version", "state"},
		),
		writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_writes_total",
				Help: "User writes by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		rpcRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grpc_requests_total",
				Help: "Total gRPC requests",
			},
			[]string{"method", "code"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grpc_request_duration_seconds",
				Help:    "gRPC request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.filterRequests, m.filterResultSize, m.migrationSteps, m.writes, m.rpcRequests, m.rpcLatency,
	)
	return m
}

// ObserveFilter records one filter request.
func (m *Metrics) ObserveFilter(activeCriteria, results int) {
	if m == nil {
		return
	}
	m.filterRequests.WithLabelValues(strconv.Itoa(activeCriteria)).Inc()
	m.filterResultSize.Observe(float64(results))
}

// ObserveMigrationStep records a step entering state.
func (m *Metrics) ObserveMigrationStep(version int, state string) {
	if m == nil {
		return
	}
	m.migrationSteps.WithLabelValues(strconv.Itoa(version), state).Inc()
}

// ObserveWrite records a create, update or delete and its outcome.
func (m *Metrics) ObserveWrite(op, outcome string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(op, outcome).Inc()
}

// ObserveRPC records a finished gRPC call.
func (m *Metrics) ObserveRPC(method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, code).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(seconds)
}
