package reconcile

import (
	"context"
	"log/slog"

	"giftlist/internal/reconcile/metrics"
	id "giftlist/pkg/domain"
)

// Strategy resolves a document to at most one item. A strategy that cannot
// decide returns ok=false; an error means the lookup itself failed.
type Strategy[D any] struct {
	Name  string
	Match func(ctx context.Context, doc D) (itemID id.ItemID, ok bool, err error)
}

// Pipeline runs its strategies in order and stops at the first match.
// Failing strategies are logged and skipped.
type Pipeline[D any] struct {
	name       string
	strategies []Strategy[D]
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewPipeline[D any](name string, logger *slog.Logger, m *metrics.Metrics, strategies ...Strategy[D]) *Pipeline[D] {
	return &Pipeline[D]{
		name:       name,
		strategies: strategies,
		logger:     logger,
		metrics:    m,
	}
}

// Name identifies the pipeline in logs and metrics.
func (p *Pipeline[D]) Name() string {
	return p.name
}

// Resolve returns the matched item and the name of the strategy that found it.
func (p *Pipeline[D]) Resolve(ctx context.Context, doc D) (id.ItemID, string, bool) {
	for _, s := range p.strategies {
		itemID, ok, err := s.Match(ctx, doc)
		if err != nil {
			if p.metrics != nil {
				p.metrics.IncStrategyError(p.name, s.Name)
			}
			p.logger.WarnContext(ctx, "reconcile strategy failed",
				"pipeline", p.name,
				"strategy", s.Name,
				"error", err,
			)
			continue
		}
		if ok {
			if p.metrics != nil {
				p.metrics.IncMatch(p.name, s.Name)
			}
			return itemID, s.Name, true
		}
	}
	if p.metrics != nil {
		p.metrics.IncUnmatched(p.name)
	}
	return id.ItemID{}, "", false
}
