//go:build integration

package list

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "gift_list_items", "gift_lists"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	expected := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	l, err := models.NewList(id.ListID(uuid.New()), "Baby Ana", id.PartnerID(uuid.New()),
		models.ListTypeBirth, &expected, id.OperatorID(uuid.New()), now)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(ctx, l))

	got, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.Name, got.Name)
	s.True(got.WalletID.IsNil())
	s.Require().NotNil(got.ExpectedDate)
	s.True(expected.Equal(got.ExpectedDate.UTC()))

	l.WalletID = id.WalletID(uuid.New())
	s.Require().NoError(s.store.Update(ctx, l))

	found, err := s.store.Find(ctx, models.ListFilter{Wallet: l.WalletID, States: []models.ListState{models.ListActive}})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(l.ID, found[0].ID)

	_, err = s.store.FindByID(ctx, id.ListID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
