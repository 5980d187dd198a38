package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks which reconciliation strategies actually resolve documents.
type Metrics struct {
	Matches        *prometheus.CounterVec
	Unmatched      *prometheus.CounterVec
	StrategyErrors *prometheus.CounterVec
	Deferred       *prometheus.CounterVec
	PaymentMatches *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Matches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_matches_total",
			Help: "Documents resolved to an item, by pipeline and winning strategy",
		}, []string{"pipeline", "strategy"}),
		Unmatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_unmatched_total",
			Help: "Documents no strategy could resolve, by pipeline",
		}, []string{"pipeline"}),
		StrategyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_strategy_errors_total",
			Help: "Strategy lookups that failed and were skipped",
		}, []string{"pipeline", "strategy"}),
		Deferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_deferred_total",
			Help: "Matched documents left unlinked because the item is not ready for them",
		}, []string{"pipeline"}),
		PaymentMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reconcile_payment_matches_total",
			Help: "Register orders matched to items, by payment kind and strategy",
		}, []string{"kind", "strategy"}),
	}
}

func (m *Metrics) IncMatch(pipeline, strategy string) {
	m.Matches.WithLabelValues(pipeline, strategy).Inc()
}

func (m *Metrics) IncUnmatched(pipeline string) {
	m.Unmatched.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) IncStrategyError(pipeline, strategy string) {
	m.StrategyErrors.WithLabelValues(pipeline, strategy).Inc()
}

func (m *Metrics) IncDeferred(pipeline string) {
	m.Deferred.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) IncPaymentMatch(kind, strategy string) {
	m.PaymentMatches.WithLabelValues(kind, strategy).Inc()
}
