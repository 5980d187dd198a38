// Package store persists wallets and their ledger.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftlist/internal/walletpay/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/platform/tx"
)

// InMemory keeps wallets in maps. Apply is serialized per wallet through a
// sharded lock so concurrent settlements on different wallets do not queue.
type InMemory struct {
	mu        sync.RWMutex
	wallets   map[id.WalletID]*models.Wallet
	byPartner map[id.PartnerID]id.WalletID
	entries   []models.LedgerEntry
	locks     *tx.Sharded
}

func NewInMemory() *InMemory {
	return &InMemory{
		wallets:   make(map[id.WalletID]*models.Wallet),
		byPartner: make(map[id.PartnerID]id.WalletID),
		locks:     tx.NewSharded(),
	}
}

func (s *InMemory) EnsureForPartner(_ context.Context, partner id.PartnerID, program string, now time.Time) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if walletID, ok := s.byPartner[partner]; ok {
		w := *s.wallets[walletID]
		return &w, nil
	}
	w := &models.Wallet{
		ID:        id.WalletID(uuid.New()),
		Partner:   partner,
		Program:   program,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.wallets[w.ID] = w
	s.byPartner[partner] = w.ID
	created := *w
	return &created, nil
}

func (s *InMemory) ByPartner(_ context.Context, partner id.PartnerID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walletID, ok := s.byPartner[partner]
	if !ok {
		return nil, fmt.Errorf("wallet for partner %s: %w", partner, sentinel.ErrNotFound)
	}
	w := *s.wallets[walletID]
	return &w, nil
}

func (s *InMemory) ByID(_ context.Context, walletID id.WalletID) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s: %w", walletID, sentinel.ErrNotFound)
	}
	out := *w
	return &out, nil
}

// Apply appends the entry and moves the balance by its delta. A balance
// that would go negative is refused with sentinel.ErrInvalidState.
func (s *InMemory) Apply(ctx context.Context, entry models.LedgerEntry) (*models.Wallet, error) {
	var out models.Wallet
	err := s.locks.RunInTx(ctx, "wallet:"+entry.WalletID.String(), func(ctx context.Context) error {
		current, err := s.ByID(ctx, entry.WalletID)
		if err != nil {
			return err
		}
		balance := current.Balance.Add(entry.Delta())
		if balance.IsNegative() {
			return fmt.Errorf("wallet %s balance %s cannot cover %s: %w",
				entry.WalletID, current.Balance.StringFixed(2), entry.Used.StringFixed(2), sentinel.ErrInvalidState)
		}
		if entry.ID.IsNil() {
			entry.ID = id.LedgerEntryID(uuid.New())
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		w := s.wallets[entry.WalletID]
		w.Balance = balance
		w.UpdatedAt = entry.CreatedAt
		s.entries = append(s.entries, entry)
		out = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *InMemory) Entries(_ context.Context, walletID id.WalletID) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if e.WalletID == walletID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemory) EntriesForOrders(_ context.Context, orders []id.PosOrderID) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if !e.PosOrder.IsNil() && slices.Contains(orders, e.PosOrder) {
			out = append(out, e)
		}
	}
	return out, nil
}
