// Package metrics exposes Prometheus counters for mutations, session changes
// and HTTP traffic.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without checking it at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector for the whole application.
type Metrics struct {
	mutationsTotal   *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	sessionChanges   *prometheus.CounterVec
	viewComputations prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the metrics and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "halal_mutations_total",
				Help: "Mutations attempted, by action and outcome",
			},
			[]string{"action", "outcome"}, // outcome: ok, not_authenticated, validation, in_flight, timeout, store
		),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "halal_mutation_duration_seconds",
				Help:    "Time from submit to fold for mutations that reached the store",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"action"},
		),
		sessionChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "halal_session_changes_total",
				Help: "Session state transitions observed by the gate",
			},
			[]string{"status"},
		),
		viewComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "halal_view_computations_total",
			Help: "Discovery view models computed",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "halal_http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "halal_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "route"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.mutationsTotal.Describe(ch)
	m.mutationDuration.Describe(ch)
	m.sessionChanges.Describe(ch)
	m.viewComputations.Describe(ch)
	m.httpRequests.Describe(ch)
	m.httpDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.mutationsTotal.Collect(ch)
	m.mutationDuration.Collect(ch)
	m.sessionChanges.Collect(ch)
	m.viewComputations.Collect(ch)
	m.httpRequests.Collect(ch)
	m.httpDuration.Collect(ch)
}

// RecordMutation counts one mutation attempt.
func (m *Metrics) RecordMutation(action, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordMutationDuration observes how long a store round trip took.
func (m *Metrics) RecordMutationDuration(action string, d time.Duration) {
	if m == nil {
		return
	}
	m.mutationDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordSessionChange counts a gate transition.
func (m *Metrics) RecordSessionChange(status string) {
	if m == nil {
		return
	}
	m.sessionChanges.WithLabelValues(status).Inc()
}

// RecordViewComputation counts one discovery view computation.
func (m *Metrics) RecordViewComputation() {
	if m == nil {
		return
	}
	m.viewComputations.Inc()
}

// RecordHTTPRequest counts a served request and its latency.
func (m *Metrics) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
