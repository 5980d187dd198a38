//go:build integration

package item

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"giftlist/internal/giftlist/models"
	liststore "giftlist/internal/giftlist/store/list"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
	list     *models.List
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "gift_list_items", "gift_lists"))

	l, err := models.NewList(id.ListID(uuid.New()), "Baby Ana", id.PartnerID(uuid.New()),
		models.ListTypeBirth, nil, id.OperatorID{}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(liststore.NewPostgres(s.postgres.DB).Create(ctx, l))
	s.list = l
}

func (s *PostgresStoreSuite) newItem() *models.Item {
	it, err := models.NewItem(id.ItemID(uuid.New()), s.list.ID, id.ProductID(uuid.New()),
		"Stroller", decimal.RequireFromString("399.90"), decimal.NewFromInt(10), 10,
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return it
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	it := s.newItem()
	it.Refs.SaleOrder = id.SaleOrderID(uuid.New())
	it.Refs.SaleLine = id.SaleLineID(uuid.New())
	it.State = models.StateOrdered
	s.Require().NoError(s.store.Create(ctx, it))

	got, err := s.store.FindByID(ctx, it.ID)
	s.Require().NoError(err)
	s.True(it.PriceUnit.Equal(got.PriceUnit))
	s.Equal(it.Refs, got.Refs)
	s.Equal(models.StateOrdered, got.State)
	s.Nil(got.CancelledAt)

	s.Run("sale line uniqueness is enforced", func() {
		dup := s.newItem()
		dup.Refs.SaleLine = it.Refs.SaleLine
		s.Require().ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("cancellation persists", func() {
		it.ApplyCancellation(models.CancelOther, "changed mind", time.Now().UTC())
		it.State = models.StateCancelled
		s.Require().NoError(s.store.Update(ctx, it))

		got, err := s.store.FindByID(ctx, it.ID)
		s.Require().NoError(err)
		s.True(got.IsCancelled)
		s.Equal(models.CancelOther, got.CancelReason)
		s.Equal("changed mind", got.CancelDetail)
		s.NotNil(got.CancelledAt)
	})
}

func (s *PostgresStoreSuite) TestFind() {
	ctx := context.Background()
	payment := id.PosOrderID(uuid.New())
	a := s.newItem()
	a.Refs.FinalPayment = payment
	b := s.newItem()
	b.Sequence = 1
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))

	all, err := s.store.Find(ctx, models.ItemFilter{ListIDs: []id.ListID{s.list.ID}})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(b.ID, all[0].ID)

	paid, err := s.store.Find(ctx, models.ItemFilter{PaymentOrder: payment, DeliveryUnset: true})
	s.Require().NoError(err)
	s.Require().Len(paid, 1)
	s.Equal(a.ID, paid[0].ID)

	s.Require().NoError(s.store.Delete(ctx, b.ID))
	s.Require().ErrorIs(s.store.Delete(ctx, b.ID), sentinel.ErrNotFound)
}
