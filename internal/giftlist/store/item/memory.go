package item

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

// InMemory stores items in a map for tests and local runs.
//
// Error contract:
//   - ErrNotFound when the item does not exist
//   - ErrConflict when another item already claims the sale line
type InMemory struct {
	mu    sync.RWMutex
	items map[id.ItemID]*models.Item
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.ItemID]*models.Item)}
}

func (s *InMemory) Create(_ context.Context, it *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; ok {
		return fmt.Errorf("item %s: %w", it.ID, sentinel.ErrConflict)
	}
	if err := s.checkSaleLineLocked(it); err != nil {
		return err
	}
	c := *it
	s.items[it.ID] = &c
	return nil
}

func (s *InMemory) Update(_ context.Context, it *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; !ok {
		return fmt.Errorf("item %s: %w", it.ID, sentinel.ErrNotFound)
	}
	if err := s.checkSaleLineLocked(it); err != nil {
		return err
	}
	c := *it
	s.items[it.ID] = &c
	return nil
}

func (s *InMemory) checkSaleLineLocked(it *models.Item) error {
	if it.Refs.SaleLine.IsNil() {
		return nil
	}
	for _, other := range s.items {
		if other.ID != it.ID && other.Refs.SaleLine == it.Refs.SaleLine {
			return fmt.Errorf("sale line %s already linked: %w", it.Refs.SaleLine, sentinel.ErrConflict)
		}
	}
	return nil
}

func (s *InMemory) Delete(_ context.Context, itemID id.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	delete(s.items, itemID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	c := *it
	return &c, nil
}

// Find returns matching items ordered by sequence, then creation time.
func (s *InMemory) Find(_ context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Item
	for _, it := range s.items {
		if filter.Matches(it) {
			c := *it
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, compareItems)
	return out, nil
}

func compareItems(a, b *models.Item) int {
	if a.Sequence != b.Sequence {
		return a.Sequence - b.Sequence
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}
