// README: Prometheus collectors for inventory, matching and the request event stream.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// which keeps unit tests free of registry setup.
type Metrics struct {
	inventoryMutations *prometheus.CounterVec
	inventoryRejected  *prometheus.CounterVec
	matchRuns          prometheus.Counter
	matchesPersisted   prometheus.Histogram
	eventsPublished    *prometheus.CounterVec
	subscribersDropped prometheus.Counter
	subscribers        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inventoryMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlink",
			Name:      "inventory_mutations_total",
			Help:      "Inventory lines mutated, by action.",
		}, []string{"action"}),
		inventoryRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlink",
			Name:      "inventory_rejected_total",
			Help:      "Inventory operations rejected before mutation, by reason.",
		}, []string{"reason"}),
		matchRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bloodlink",
			Name:      "match_runs_total",
			Help:      "Completed matching runs.",
		}),
		matchesPersisted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bloodlink",
			Name:      "matches_per_run",
			Help:      "Number of donor matches persisted per run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloodlink",
			Name:      "request_events_published_total",
			Help:      "Request lifecycle events published, by type.",
		}, []string{"type"}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bloodlink",
			Name:      "stream_subscribers_dropped_total",
			Help:      "Subscribers removed after a failed delivery.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bloodlink",
			Name:      "stream_subscribers",
			Help:      "Currently connected stream subscribers.",
		}),
	}
	reg.MustRegister(
		m.inventoryMutations,
		m.inventoryRejected,
		m.matchRuns,
		m.matchesPersisted,
		m.eventsPublished,
		m.subscribersDropped,
		m.subscribers,
	)
	return m
}

func (m *Metrics) InventoryMutated(action string, lines int) {
	if m == nil {
		return
	}
	m.inventoryMutations.WithLabelValues(action).Add(float64(lines))
}

func (m *Metrics) InventoryRejected(reason string) {
	if m == nil {
		return
	}
	m.inventoryRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) MatchRun(persisted int) {
	if m == nil {
		return
	}
	m.matchRuns.Inc()
	m.matchesPersisted.Observe(float64(persisted))
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved(dropped bool) {
	if m == nil {
		return
	}
	m.subscribers.Dec()
	if dropped {
		m.subscribersDropped.Inc()
	}
}
