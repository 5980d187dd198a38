package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the workflow action log and its outbox relay.
type Metrics struct {
	Recorded            *prometheus.CounterVec
	Dropped             prometheus.Counter
	PersistFailures     prometheus.Counter
	CircuitBreakerState prometheus.Gauge
	RelayPublished      prometheus.Counter
	RelayFailures       prometheus.Counter
	RelayLag            prometheus.Histogram
	WebhookRejected     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_workflow_actions_recorded_total",
			Help: "Workflow actions persisted, by document type",
		}, []string{"document_type"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_workflow_actions_dropped_total",
			Help: "Workflow actions dropped while the circuit breaker was open",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_workflow_actions_persist_failures_total",
			Help: "Workflow actions that failed to persist",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "giftlist_workflow_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open)",
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_workflow_relay_published_total",
			Help: "Outbox rows produced to Kafka",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "giftlist_workflow_relay_failures_total",
			Help: "Relay batches that failed to produce or mark",
		}),
		RelayLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "giftlist_workflow_relay_lag_seconds",
			Help:    "Age of outbox rows when produced",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
		WebhookRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_workflow_webhook_rejected_total",
			Help: "Webhook calls rejected, by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncRecorded(documentType string) {
	m.Recorded.WithLabelValues(documentType).Inc()
}

func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}

// ObservePublished records one produced row and how long it waited in the outbox.
func (m *Metrics) ObservePublished(createdAt time.Time) {
	m.RelayPublished.Inc()
	m.RelayLag.Observe(time.Since(createdAt).Seconds())
}

func (m *Metrics) IncRelayFailures() {
	m.RelayFailures.Inc()
}

func (m *Metrics) IncWebhookRejected(reason string) {
	m.WebhookRejected.WithLabelValues(reason).Inc()
}
