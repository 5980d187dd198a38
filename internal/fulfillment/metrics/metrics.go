package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the documents fulfillment creates on behalf of items.
type Metrics struct {
	Procurements      *prometheus.CounterVec
	DeliveriesCreated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Procurements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulfillment_procurements_total",
			Help: "Items procured, by branch (stock, purchase, no_vendor)",
		}, []string{"branch"}),
		DeliveriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fulfillment_deliveries_created_total",
			Help: "Outgoing deliveries created for paid items",
		}),
	}
}

func (m *Metrics) IncProcurement(branch string) {
	m.Procurements.WithLabelValues(branch).Inc()
}

func (m *Metrics) IncDeliveriesCreated() {
	m.DeliveriesCreated.Inc()
}
