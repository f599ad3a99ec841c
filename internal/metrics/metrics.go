// Package metrics exposes Prometheus collectors for the reconciliation
// pipeline. A nil *Metrics is a valid no-op recorder, so callers never
// guard their instrumentation sites.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "driftwatch"

// Metrics holds every collector the pipeline reports into.
type Metrics struct {
	cycleDuration   prometheus.Histogram
	cyclesTotal     *prometheus.CounterVec
	fetchedItems    *prometheus.GaugeVec
	fetchFailures   *prometheus.CounterVec
	candidates      *prometheus.CounterVec
	guardDiscards   prometheus.Counter
	actionsRaised   prometheus.Counter
	actionsResolved *prometheus.CounterVec
	noticesPosted   prometheus.Counter
	pendingActions  prometheus.Gauge
	suppressedKeys  prometheus.Gauge
}

// New builds a Metrics instance registered against reg. A nil registerer
// falls back to the default registry. Registration conflicts panic, which
// surfaces double-construction bugs at startup rather than at scrape time.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one reconciliation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles run, by outcome.",
		}, []string{"outcome"}),
		fetchedItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetched_items",
			Help:      "Items collected from a catalog in the latest cycle.",
		}, []string{"catalog"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Catalog fetches that failed outright.",
		}, []string{"catalog"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Divergence candidates emitted by detection, by kind.",
		}, []string{"kind"}),
		guardDiscards: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_discards_total",
			Help:      "Divergences discarded as probable listing mismatches.",
		}),
		actionsRaised: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_raised_total",
			Help:      "Pending actions raised for review.",
		}),
		actionsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_resolved_total",
			Help:      "Pending actions resolved, by outcome.",
		}, []string{"outcome"}),
		noticesPosted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_posted_total",
			Help:      "Plain-text catalog churn lines posted.",
		}),
		pendingActions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_actions",
			Help:      "Pending actions currently awaiting review.",
		}),
		suppressedKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "suppressed_keys",
			Help:      "Item keys inside an active suppression window.",
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
	m.cyclesTotal.WithLabelValues(outcome).Inc()
}

// SetFetchedItems records how many items a catalog fetch returned.
func (m *Metrics) SetFetchedItems(catalog string, count int) {
	if m == nil {
		return
	}
	m.fetchedItems.WithLabelValues(catalog).Set(float64(count))
}

// IncFetchFailure counts a catalog fetch that returned nothing usable.
func (m *Metrics) IncFetchFailure(catalog string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(catalog).Inc()
}

// AddCandidates counts detection output for one kind.
func (m *Metrics) AddCandidates(kind string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.candidates.WithLabelValues(kind).Add(float64(count))
}

// AddGuardDiscards counts mismatch-guard discards.
func (m *Metrics) AddGuardDiscards(count int) {
	if m == nil || count == 0 {
		return
	}
	m.guardDiscards.Add(float64(count))
}

// IncActionRaised counts a pending action entering review.
func (m *Metrics) IncActionRaised() {
	if m == nil {
		return
	}
	m.actionsRaised.Inc()
}

// IncActionResolved counts a resolution with its outcome label.
func (m *Metrics) IncActionResolved(outcome string) {
	if m == nil {
		return
	}
	m.actionsResolved.WithLabelValues(outcome).Inc()
}

// AddNotices counts posted churn lines.
func (m *Metrics) AddNotices(count int) {
	if m == nil || count == 0 {
		return
	}
	m.noticesPosted.Add(float64(count))
}

// SetPendingActions records the current review backlog size.
func (m *Metrics) SetPendingActions(count int) {
	if m == nil {
		return
	}
	m.pendingActions.Set(float64(count))
}

// SetSuppressedKeys records the active suppression count.
func (m *Metrics) SetSuppressedKeys(count int) {
	if m == nil {
		return
	}
	m.suppressedKeys.Set(float64(count))
}
