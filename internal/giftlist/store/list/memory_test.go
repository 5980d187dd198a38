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
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newList(name string, beneficiary id.PartnerID, at time.Time) *models.List {
	l, err := models.NewList(id.ListID(uuid.New()), name, beneficiary, models.ListTypeBirth, nil, id.OperatorID{}, at)
	s.Require().NoError(err)
	return l
}

func (s *InMemoryStoreSuite) TestCRUD() {
	beneficiary := id.PartnerID(uuid.New())
	l := s.newList("Baby Ana", beneficiary, time.Now())

	s.Require().NoError(s.store.Create(s.ctx, l))
	s.Require().ErrorIs(s.store.Create(s.ctx, l), sentinel.ErrConflict)

	l.WalletID = id.WalletID(uuid.New())
	s.Require().NoError(s.store.Update(s.ctx, l))

	got, err := s.store.FindByID(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.WalletID, got.WalletID)

	_, err = s.store.FindByID(s.ctx, id.ListID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestFind() {
	beneficiary := id.PartnerID(uuid.New())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := s.newList("First", beneficiary, base)
	second := s.newList("Second", beneficiary, base.Add(time.Hour))
	s.Require().NoError(second.Deactivate(base))
	unrelated := s.newList("Other", id.PartnerID(uuid.New()), base)
	for _, l := range []*models.List{second, first, unrelated} {
		s.Require().NoError(s.store.Create(s.ctx, l))
	}

	s.Run("beneficiary scope, oldest first", func() {
		got, err := s.store.Find(s.ctx, models.ListFilter{Beneficiary: beneficiary})
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(first.ID, got[0].ID)
		s.Equal(second.ID, got[1].ID)
	})

	s.Run("state filter", func() {
		got, err := s.store.Find(s.ctx, models.ListFilter{
			Beneficiary: beneficiary,
			States:      []models.ListState{models.ListInactive},
		})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(second.ID, got[0].ID)
	})
}
