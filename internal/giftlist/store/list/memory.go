package list

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

// InMemory stores lists in a map for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	lists map[id.ListID]*models.List
}

func NewInMemory() *InMemory {
	return &InMemory{lists: make(map[id.ListID]*models.List)}
}

func (s *InMemory) Create(_ context.Context, l *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[l.ID]; ok {
		return fmt.Errorf("list %s: %w", l.ID, sentinel.ErrConflict)
	}
	c := *l
	s.lists[l.ID] = &c
	return nil
}

func (s *InMemory) Update(_ context.Context, l *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[l.ID]; !ok {
		return fmt.Errorf("list %s: %w", l.ID, sentinel.ErrNotFound)
	}
	c := *l
	s.lists[l.ID] = &c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, listID id.ListID) (*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[listID]
	if !ok {
		return nil, fmt.Errorf("list %s: %w", listID, sentinel.ErrNotFound)
	}
	c := *l
	return &c, nil
}

// Find returns matching lists, oldest first.
func (s *InMemory) Find(_ context.Context, f models.ListFilter) ([]*models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.List
	for _, l := range s.lists {
		if f.Matches(l) {
			c := *l
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.List) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}
