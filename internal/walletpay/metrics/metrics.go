package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks wallet movements and register order settlements.
type Metrics struct {
	Movements   *prometheus.CounterVec
	Amount      *prometheus.CounterVec
	Settlements *prometheus.CounterVec
	LockWait    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Movements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "walletpay_movements_total",
			Help: "Ledger entries appended, by direction (credit or debit)",
		}, []string{"direction"}),
		Amount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "walletpay_amount_total",
			Help: "Sum of ledger amounts appended, by direction",
		}, []string{"direction"}),
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "walletpay_settlements_total",
			Help: "Register orders settled, by outcome",
		}, []string{"outcome"}),
		LockWait: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletpay_lock_wait_seconds",
			Help:    "Time spent waiting for the per-wallet settlement lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) ObserveMovement(direction string, amount float64) {
	m.Movements.WithLabelValues(direction).Inc()
	m.Amount.WithLabelValues(direction).Add(amount)
}

func (m *Metrics) IncSettlement(outcome string) {
	m.Settlements.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLockWait(seconds float64) {
	m.LockWait.Observe(seconds)
}
