package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks WalletProvider,Refunder,ActionRecorder,StateObserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"giftlist/internal/erp"
	"giftlist/internal/erp/memory"
	"giftlist/internal/giftlist/models"
	"giftlist/internal/giftlist/service/mocks"
	itemstore "giftlist/internal/giftlist/store/item"
	liststore "giftlist/internal/giftlist/store/list"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	sim      *memory.Simulator
	items    *itemstore.InMemory
	lists    *liststore.InMemory
	wallets  *mocks.MockWalletProvider
	refunder *mocks.MockRefunder
	recorder *mocks.MockActionRecorder
	svc      *Service

	ctx     context.Context
	now     time.Time
	wallet  id.WalletID
	mu      sync.Mutex
	actions []wfmodels.Action

	beneficiary *erp.Partner
	stroller    *erp.Product
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.sim = memory.New()
	s.items = itemstore.NewInMemory()
	s.lists = liststore.NewInMemory()
	s.wallets = mocks.NewMockWalletProvider(s.ctrl)
	s.refunder = mocks.NewMockRefunder(s.ctrl)
	s.recorder = mocks.NewMockActionRecorder(s.ctrl)
	s.now = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = testutil.FixedTime(s.now)
	s.wallet = id.WalletID(uuid.New())
	s.actions = nil

	s.wallets.EXPECT().EnsureForPartner(gomock.Any(), gomock.Any()).Return(s.wallet, nil).AnyTimes()
	s.recorder.EXPECT().Record(gomock.Any(), gomock.Any()).Do(func(_ context.Context, a wfmodels.Action) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.actions = append(s.actions, a)
	}).AnyTimes()

	s.beneficiary = s.sim.AddPartner("Ana Lopez")
	s.stroller = s.sim.AddProduct("Stroller", decimal.NewFromInt(400), decimal.NewFromInt(250))
	s.svc = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithWallets(s.wallets),
		WithRefunder(s.refunder),
		WithRecorder(s.recorder),
	}
	return New(s.items, s.lists, s.sim, append(base, opts...)...)
}

func (s *ServiceSuite) createList(name string) *models.List {
	l, err := s.svc.CreateList(s.ctx, CreateListRequest{Name: name, Beneficiary: s.beneficiary.ID})
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) addItem(listID id.ListID) *models.Item {
	it, err := s.svc.AddItem(s.ctx, AddItemRequest{ListID: listID, ProductID: s.stroller.ID})
	s.Require().NoError(err)
	return it
}

func (s *ServiceSuite) link(itemID id.ItemID, fn func(r *models.DocumentRefs)) *models.Item {
	it, err := s.svc.LinkDocuments(s.ctx, itemID, func(it *models.Item) (bool, error) {
		fn(&it.Refs)
		return true, nil
	})
	s.Require().NoError(err)
	return it
}

func (s *ServiceSuite) actionsOf(t wfmodels.ActionType) []wfmodels.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wfmodels.Action
	for _, a := range s.actions {
		if a.ActionType == t {
			out = append(out, a)
		}
	}
	return out
}

func (s *ServiceSuite) TestAddItem() {
	list := s.createList("Baby Ana")

	s.Run("captures the catalog price and a confirmed sale order", func() {
		it := s.addItem(list.ID)

		s.Equal(models.StateWished, it.State)
		s.True(it.PriceUnit.Equal(decimal.NewFromInt(400)))
		s.Equal(10, it.Sequence)
		s.False(it.Refs.SaleOrder.IsNil())

		order, err := s.sim.Sales().Order(s.ctx, it.Refs.SaleOrder)
		s.Require().NoError(err)
		s.Equal(erp.SaleSale, order.State)
		s.Equal(s.beneficiary.ID, order.Partner)
		s.Equal(list.Name, order.Origin)
		s.True(order.HasLine(it.Refs.SaleLine))
	})

	s.Run("explicit price overrides the catalog", func() {
		price := decimal.NewFromInt(350)
		it, err := s.svc.AddItem(s.ctx, AddItemRequest{ListID: list.ID, ProductID: s.stroller.ID, PriceUnit: &price, Discount: decimal.NewFromInt(10)})
		s.Require().NoError(err)
		s.True(it.PriceFinal().Equal(decimal.NewFromInt(315)))
	})

	s.Run("missing route leaves nothing stored", func() {
		crib := s.sim.AddProduct("Crib", decimal.NewFromInt(300), decimal.NewFromInt(200))
		s.sim.FailRoute(crib.ID)
		before, err := s.svc.ListItems(s.ctx, list.ID)
		s.Require().NoError(err)

		_, err = s.svc.AddItem(s.ctx, AddItemRequest{ListID: list.ID, ProductID: crib.ID})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
		s.Contains(dErrors.MessageOf(err), "No delivery route configured for product 'Crib'")

		after, err := s.svc.ListItems(s.ctx, list.ID)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})

	s.Run("inactive list rejects items", func() {
		_, err := s.svc.DeactivateList(s.ctx, list.ID)
		s.Require().NoError(err)
		_, err = s.svc.AddItem(s.ctx, AddItemRequest{ListID: list.ID, ProductID: s.stroller.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})

	s.Run("unknown list", func() {
		_, err := s.svc.AddItem(s.ctx, AddItemRequest{ListID: id.ListID(uuid.New()), ProductID: s.stroller.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdateItem() {
	list := s.createList("Baby Ana")
	it := s.addItem(list.ID)

	s.Run("fields outside the whitelist are rejected", func() {
		seq := 3
		_, err := s.svc.UpdateItem(s.ctx, it.ID, ItemPatch{Fields: []string{"sequence", "price_unit"}, Sequence: &seq})
		s.Require().Error(err)
		s.Equal("Cannot edit item fields: price_unit. Cancel and create new.", dErrors.MessageOf(err))

		got, err := s.svc.GetItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(10, got.Sequence)
	})

	s.Run("sequence and paid_by are writable", func() {
		seq := 3
		payer := id.PartnerID(uuid.New())
		updated, err := s.svc.UpdateItem(s.ctx, it.ID, ItemPatch{Fields: []string{"sequence", "paid_by"}, Sequence: &seq, PaidBy: &payer})
		s.Require().NoError(err)
		s.Equal(3, updated.Sequence)
		s.Equal(payer, updated.PaidBy)
	})
}

func (s *ServiceSuite) TestCancelItem() {
	list := s.createList("Baby Ana")

	s.Run("other needs a detail", func() {
		it := s.addItem(list.ID)
		_, err := s.svc.CancelItem(s.ctx, it.ID, models.CancelOther, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("returned is not an operator reason", func() {
		it := s.addItem(list.ID)
		_, err := s.svc.CancelItem(s.ctx, it.ID, models.CancelReturned, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("cancelling twice records one cancellation", func() {
		it := s.addItem(list.ID)
		s.actions = nil

		cancelled, err := s.svc.CancelItem(s.ctx, it.ID, models.CancelOpinion, "")
		s.Require().NoError(err)
		s.Equal(models.StateCancelled, cancelled.State)
		s.Equal(models.CancelOpinion, cancelled.CancelReason)
		s.Require().NotNil(cancelled.CancelledAt)
		s.Equal(s.now, *cancelled.CancelledAt)

		again, err := s.svc.CancelItem(s.ctx, it.ID, models.CancelPrice, "")
		s.Require().NoError(err)
		s.Equal(models.CancelOpinion, again.CancelReason)
		s.Len(s.actionsOf(wfmodels.ActionCancellation), 1)
		s.Len(s.actionsOf(wfmodels.ActionStateChange), 1)
	})

	s.Run("paid items cannot be cancelled", func() {
		it := s.addItem(list.ID)
		paid := s.link(it.ID, func(r *models.DocumentRefs) { r.FinalPayment = id.PosOrderID(uuid.New()) })
		s.Require().Equal(models.StatePaid, paid.State)

		_, err := s.svc.CancelItem(s.ctx, it.ID, models.CancelOpinion, "")
		s.Require().Error(err)
		s.Equal("Cannot cancel paid item.", dErrors.MessageOf(err))
	})
}

func (s *ServiceSuite) TestReturnItem() {
	list := s.createList("Baby Ana")

	s.Run("refunds once and cancels as returned", func() {
		it := s.addItem(list.ID)
		down := id.PosOrderID(uuid.New())
		final := id.PosOrderID(uuid.New())
		s.link(it.ID, func(r *models.DocumentRefs) {
			r.DownPayment = down
			r.FinalPayment = final
		})

		s.refunder.EXPECT().
			Refund(gomock.Any(), s.wallet, it.ID, []id.PosOrderID{down, final}, "Gift List Return: Stroller").
			Return(decimal.NewFromInt(400), nil).
			Times(1)

		returned, err := s.svc.ReturnItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateCancelled, returned.State)
		s.Equal(models.CancelReturned, returned.CancelReason)
		s.Require().NotNil(returned.RefundedAt)

		refunds := s.actionsOf(wfmodels.ActionPaymentRefunded)
		s.Require().Len(refunds, 1)
		s.True(refunds[0].Amount.Equal(decimal.NewFromInt(400)))

		again, err := s.svc.ReturnItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(returned.RefundedAt, again.RefundedAt)
	})

	s.Run("a failed refund leaves the item returnable", func() {
		it := s.addItem(list.ID)
		final := id.PosOrderID(uuid.New())
		s.link(it.ID, func(r *models.DocumentRefs) { r.FinalPayment = final })

		gomock.InOrder(
			s.refunder.EXPECT().
				Refund(gomock.Any(), s.wallet, it.ID, []id.PosOrderID{final}, gomock.Any()).
				Return(decimal.Zero, errors.New("connection reset")),
			s.refunder.EXPECT().
				Refund(gomock.Any(), s.wallet, it.ID, []id.PosOrderID{final}, gomock.Any()).
				Return(decimal.NewFromInt(400), nil),
		)

		_, err := s.svc.ReturnItem(s.ctx, it.ID)
		s.Require().Error(err)
		current, err := s.svc.GetItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Nil(current.RefundedAt)
		s.Equal(models.StatePaid, current.State)

		returned, err := s.svc.ReturnItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateCancelled, returned.State)
		s.NotNil(returned.RefundedAt)
	})

	s.Run("concurrent returns refund once", func() {
		it := s.addItem(list.ID)
		final := id.PosOrderID(uuid.New())
		s.link(it.ID, func(r *models.DocumentRefs) { r.FinalPayment = final })

		s.refunder.EXPECT().
			Refund(gomock.Any(), s.wallet, it.ID, []id.PosOrderID{final}, gomock.Any()).
			Return(decimal.NewFromInt(400), nil).
			Times(1)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.svc.ReturnItem(s.ctx, it.ID)
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			s.NoError(err)
		}

		returned, err := s.svc.GetItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateCancelled, returned.State)
	})

	s.Run("wished items cannot be returned", func() {
		it := s.addItem(list.ID)
		_, err := s.svc.ReturnItem(s.ctx, it.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})
}

func (s *ServiceSuite) TestDeleteItem() {
	list := s.createList("Baby Ana")

	s.Run("wished items can be deleted", func() {
		it := s.addItem(list.ID)
		s.Require().NoError(s.svc.DeleteItem(s.ctx, it.ID))
		_, err := s.svc.GetItem(s.ctx, it.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("ordered items must be cancelled first", func() {
		it := s.addItem(list.ID)
		s.link(it.ID, func(r *models.DocumentRefs) { r.DownPayment = id.PosOrderID(uuid.New()) })

		err := s.svc.DeleteItem(s.ctx, it.ID)
		s.Require().Error(err)
		s.Equal("Cannot delete ordered item. Cancel it first.", dErrors.MessageOf(err))

		_, err = s.svc.CancelItem(s.ctx, it.ID, models.CancelDuplicate, "")
		s.Require().NoError(err)
		s.Require().NoError(s.svc.DeleteItem(s.ctx, it.ID))
	})
}

func (s *ServiceSuite) TestRecompute() {
	observer := mocks.NewMockStateObserver(s.ctrl)
	s.svc = s.newService(WithObserver(observer))
	list := s.createList("Baby Ana")
	it := s.addItem(list.ID)

	order, err := s.sim.Sales().Order(s.ctx, it.Refs.SaleOrder)
	s.Require().NoError(err)
	delivery := order.DeliveryIDs[0]

	s.Run("linking a delivery moves the item to out_created", func() {
		observer.EXPECT().ItemStateChanged(gomock.Any(), gomock.Any(), models.StateWished).Return(nil)
		linked := s.link(it.ID, func(r *models.DocumentRefs) { r.Delivery = delivery })
		s.Equal(models.StateOutCreated, linked.State)
	})

	s.Run("validating the delivery is picked up by recompute", func() {
		_, err := s.sim.Stock().Validate(s.ctx, delivery)
		s.Require().NoError(err)

		st, rule, err := s.svc.DeriveState(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateDelivered, st)
		s.Equal("delivery_done", rule)

		observer.EXPECT().ItemStateChanged(gomock.Any(), gomock.Any(), models.StateOutCreated).Return(nil)
		got, err := s.svc.Recompute(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateDelivered, got.State)
	})

	s.Run("recompute without change is silent", func() {
		s.actions = nil
		got, err := s.svc.Recompute(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(models.StateDelivered, got.State)
		s.Empty(s.actionsOf(wfmodels.ActionStateChange))
	})

	s.Run("unreadable documents keep the stored state", func() {
		other := s.addItem(list.ID)
		kept := s.link(other.ID, func(r *models.DocumentRefs) { r.Purchase = id.PurchaseOrderID(uuid.New()) })
		s.Equal(models.StateWished, kept.State)

		_, _, err := s.svc.DeriveState(s.ctx, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown item", func() {
		_, err := s.svc.Recompute(s.ctx, id.ItemID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListLifecycle() {
	s.Run("create links the beneficiary wallet", func() {
		l := s.createList("Baby Ana")
		s.Equal(models.ListActive, l.State)
		s.Equal(s.wallet, l.WalletID)
		s.Len(s.actionsOf(wfmodels.ActionCreation), 1)
	})

	s.Run("unknown beneficiary", func() {
		_, err := s.svc.CreateList(s.ctx, CreateListRequest{Name: "Nobody", Beneficiary: id.PartnerID(uuid.New())})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty name", func() {
		_, err := s.svc.CreateList(s.ctx, CreateListRequest{Name: "  ", Beneficiary: s.beneficiary.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("completing with ordered items needs confirmation", func() {
		l := s.createList("Wedding")
		it := s.addItem(l.ID)
		s.link(it.ID, func(r *models.DocumentRefs) { r.DownPayment = id.PosOrderID(uuid.New()) })

		_, err := s.svc.CompleteList(s.ctx, l.ID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

		done, err := s.svc.CompleteList(s.ctx, l.ID, true)
		s.Require().NoError(err)
		s.Equal(models.ListCompleted, done.State)

		_, err = s.svc.ActivateList(s.ctx, l.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})

	s.Run("inactive lists reject edits until reactivated", func() {
		l := s.createList("Shower")
		_, err := s.svc.DeactivateList(s.ctx, l.ID)
		s.Require().NoError(err)

		name := "Baby shower"
		_, err = s.svc.UpdateList(s.ctx, l.ID, ListPatch{Name: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

		_, err = s.svc.ActivateList(s.ctx, l.ID)
		s.Require().NoError(err)
		updated, err := s.svc.UpdateList(s.ctx, l.ID, ListPatch{Name: &name})
		s.Require().NoError(err)
		s.Equal("Baby shower", updated.Name)
	})
}

func (s *ServiceSuite) TestSummary() {
	expected := s.now.AddDate(0, 0, 70)
	l, err := s.svc.CreateList(s.ctx, CreateListRequest{Name: "Baby Ana", Beneficiary: s.beneficiary.ID, ExpectedDate: &expected})
	s.Require().NoError(err)
	sibling := s.createList("Baby Ana (grandparents)")
	closed := s.createList("Old list")

	ordered := s.addItem(l.ID)
	s.link(ordered.ID, func(r *models.DocumentRefs) { r.DownPayment = id.PosOrderID(uuid.New()) })
	s.addItem(l.ID)
	siblingItem := s.addItem(sibling.ID)
	s.link(siblingItem.ID, func(r *models.DocumentRefs) { r.DownPayment = id.PosOrderID(uuid.New()) })
	closedItem := s.addItem(closed.ID)
	s.link(closedItem.ID, func(r *models.DocumentRefs) { r.DownPayment = id.PosOrderID(uuid.New()) })
	_, err = s.svc.CompleteList(s.ctx, closed.ID, true)
	s.Require().NoError(err)

	s.wallets.EXPECT().Balance(gomock.Any(), s.wallet).Return(decimal.NewFromInt(500), nil)

	sum, err := s.svc.Summary(s.ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(2, sum.ItemCount)
	s.True(sum.Amounts.Total.Equal(decimal.NewFromInt(800)))
	s.True(sum.Amounts.Ordered.Equal(decimal.NewFromInt(400)))
	s.True(sum.Amounts.Paid.IsZero())
	// two ordered items across active siblings, the completed list is ignored
	s.True(sum.Wallet.Committed.Equal(decimal.NewFromInt(200)), sum.Wallet.Committed.String())
	s.True(sum.Wallet.Available.Equal(decimal.NewFromInt(300)))
	s.Equal(70, sum.Progress.DaysRemaining)
	s.Equal(30, sum.Progress.WeeksProgress)
	s.False(sum.Progress.IsOverdue)
}
