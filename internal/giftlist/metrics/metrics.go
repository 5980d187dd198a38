package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers item lifecycle changes and the recompute path.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	ItemsCreated      prometheus.Counter
	RouteErrors       prometheus.Counter
	RecomputeDuration prometheus.Histogram
	SnapshotFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_item_state_transitions_total",
			Help: "Item state transitions, by target state",
		}, []string{"to"}),
		ItemsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_items_created_total",
			Help: "Items added to gift lists",
		}),
		RouteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_item_route_errors_total",
			Help: "Items rejected because the sale order had no delivery route",
		}),
		RecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "giftlist_recompute_duration_seconds",
			Help:    "Duration of item state recomputation including document reads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SnapshotFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_recompute_snapshot_failures_total",
			Help: "Recomputes that kept the stored state because a document read failed",
		}),
	}
}

func (m *Metrics) IncTransition(to string) {
	m.Transitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncItemsCreated() {
	m.ItemsCreated.Inc()
}

func (m *Metrics) IncRouteErrors() {
	m.RouteErrors.Inc()
}

// ObserveRecompute records a recompute that started at start.
func (m *Metrics) ObserveRecompute(start time.Time) {
	m.RecomputeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncSnapshotFailures() {
	m.SnapshotFailures.Inc()
}
