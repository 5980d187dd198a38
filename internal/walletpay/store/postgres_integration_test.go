//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"giftlist/internal/walletpay/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "wallet_ledger", "wallets"))
}

func (s *PostgresStoreSuite) TestEnsureAndApply() {
	ctx := context.Background()
	partner := id.PartnerID(uuid.New())

	w, err := s.store.EnsureForPartner(ctx, partner, "eWallet", now)
	s.Require().NoError(err)
	again, err := s.store.EnsureForPartner(ctx, partner, "eWallet", now)
	s.Require().NoError(err)
	s.Equal(w.ID, again.ID)

	order := id.PosOrderID(uuid.New())
	_, err = s.store.Apply(ctx, models.LedgerEntry{WalletID: w.ID, Issued: decimal.NewFromInt(100), Description: "top-up", CreatedAt: now})
	s.Require().NoError(err)
	after, err := s.store.Apply(ctx, models.LedgerEntry{WalletID: w.ID, PosOrder: order, Used: decimal.RequireFromString("35.50"), Description: "settlement", CreatedAt: now})
	s.Require().NoError(err)
	s.True(after.Balance.Equal(decimal.RequireFromString("64.50")))

	_, err = s.store.Apply(ctx, models.LedgerEntry{WalletID: w.ID, Used: decimal.NewFromInt(65), Description: "too much", CreatedAt: now})
	s.True(errors.Is(err, sentinel.ErrInvalidState))

	entries, err := s.store.EntriesForOrders(ctx, []id.PosOrderID{order})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(order, entries[0].PosOrder)
	s.True(entries[0].Item.IsNil())
}

func (s *PostgresStoreSuite) TestConcurrentApplySerializesOnRowLock() {
	ctx := context.Background()
	w, err := s.store.EnsureForPartner(ctx, id.PartnerID(uuid.New()), "eWallet", now)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.store.Apply(ctx, models.LedgerEntry{WalletID: w.ID, Issued: decimal.NewFromInt(5), Description: "credit", CreatedAt: now})
		}()
	}
	wg.Wait()

	got, err := s.store.ByID(ctx, w.ID)
	s.Require().NoError(err)
	s.True(got.Balance.Equal(decimal.NewFromInt(100)), got.Balance.String())
	entries, err := s.store.Entries(ctx, w.ID)
	s.Require().NoError(err)
	s.Len(entries, 20)
}
