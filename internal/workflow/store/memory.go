package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"giftlist/internal/workflow/models"
)

// OutboxEntry is an action waiting to be produced to the broker.
type OutboxEntry struct {
	ID        uuid.UUID
	ActionID  uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// InMemory keeps actions and their outbox rows in memory.
type InMemory struct {
	mu        sync.RWMutex
	actions   []models.Action
	outbox    []OutboxEntry
	published map[uuid.UUID]time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{published: make(map[uuid.UUID]time.Time)}
}

func (s *InMemory) Append(_ context.Context, action models.Action) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal workflow action: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	s.outbox = append(s.outbox, OutboxEntry{
		ID:        uuid.New(),
		ActionID:  uuid.UUID(action.ID),
		EventType: string(action.ActionType),
		Payload:   payload,
		CreatedAt: action.CreatedAt,
	})
	return nil
}

// List returns matching actions, newest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]models.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Action
	for i := len(s.actions) - 1; i >= 0; i-- {
		if filter.Matches(s.actions[i]) {
			out = append(out, s.actions[i])
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Pending returns up to limit unpublished outbox rows, oldest first.
func (s *InMemory) Pending(_ context.Context, limit int) ([]OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboxEntry
	for _, e := range s.outbox {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if slices.Contains(ids, e.ID) {
			s.published[e.ID] = at
		}
	}
	return nil
}
