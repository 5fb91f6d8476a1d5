package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics holds the registry counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	registrations *prometheus.CounterVec
	votes         *prometheus.CounterVec
	eventsDeleted prometheus.Counter
	syncWarnings  prometheus.Counter
	storeErrors   *prometheus.CounterVec
}

// New creates the counters on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "registrations_total",
			Help:      "Guest registrations by outcome.",
		}, []string{"outcome"}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "votes_total",
			Help:      "Votes cast by outcome.",
		}, []string{"outcome"}),
		eventsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "events_deleted_total",
			Help:      "Events deleted together with their guests and polls.",
		}),
		syncWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "max_votes_sync_warnings_total",
			Help:      "Registrations whose maxVotes fan-out partially failed.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventreg",
			Name:      "store_errors_total",
			Help:      "Document store failures by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.registrations,
		m.votes,
		m.eventsDeleted,
		m.syncWarnings,
		m.storeErrors,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Vote(outcome string) {
	if m == nil {
		return
	}
	m.votes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventDeleted() {
	if m == nil {
		return
	}
	m.eventsDeleted.Inc()
}

func (m *Metrics) SyncWarning() {
	if m == nil {
		return
	}
	m.syncWarnings.Inc()
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(op).Inc()
}

// Registry exposes the underlying prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
