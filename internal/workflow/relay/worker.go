// Package relay moves workflow outbox rows to Kafka.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"giftlist/internal/platform/kafka"
	"giftlist/internal/workflow/metrics"
	"giftlist/internal/workflow/store"
)

type Outbox interface {
	Pending(ctx context.Context, limit int) ([]store.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Worker polls the outbox on an interval. Rows are marked published only
// after the broker acknowledged the whole batch, so delivery is at least once.
type Worker struct {
	outbox    Outbox
	publisher Publisher
	topic     string
	interval  time.Duration
	batch     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

func NewWorker(outbox Outbox, publisher Publisher, topic string, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		publisher: publisher,
		topic:     topic,
		interval:  2 * time.Second,
		batch:     100,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled. Batch failures are logged and retried
// on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := w.RelayOnce(ctx)
				if err != nil {
					if w.metrics != nil {
						w.metrics.IncRelayFailures()
					}
					w.logger.WarnContext(ctx, "workflow relay batch failed", "error", err)
					break
				}
				if n < w.batch {
					break
				}
			}
		}
	}
}

// RelayOnce produces one batch and returns how many rows it published.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.Pending(ctx, w.batch)
	if err != nil || len(entries) == 0 {
		return 0, err
	}
	msgs := make([]kafka.Message, len(entries))
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		msgs[i] = kafka.Message{
			Topic:   w.topic,
			Key:     []byte(e.ActionID.String()),
			Value:   e.Payload,
			Headers: map[string]string{"event_type": e.EventType},
		}
		ids[i] = e.ID
	}
	if err := w.publisher.Publish(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := w.outbox.MarkPublished(ctx, ids, w.now()); err != nil {
		return 0, err
	}
	if w.metrics != nil {
		for _, e := range entries {
			w.metrics.ObservePublished(e.CreatedAt)
		}
	}
	return len(entries), nil
}
