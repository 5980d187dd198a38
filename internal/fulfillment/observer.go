package fulfillment

import (
	"context"

	"giftlist/internal/giftlist/models"
)

// ItemStateChanged reserves the received unit for the list when an item
// reaches received through any path, not only the receipt webhook.
func (s *Service) ItemStateChanged(ctx context.Context, it *models.Item, from models.State) error {
	if it.State != models.StateReceived || !it.Refs.Holding.IsNil() || it.IsCancelled {
		return nil
	}
	s.logger.DebugContext(ctx, "holding received item", "item_id", it.ID, "from", from)
	_, err := s.EnsureHolding(ctx, it.ID)
	return err
}
