package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"giftlist/internal/erp"
	"giftlist/internal/erp/memory"
	"giftlist/internal/fulfillment"
	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	itemstore "giftlist/internal/giftlist/store/item"
	liststore "giftlist/internal/giftlist/store/list"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/testutil"
)

type captureRecorder struct {
	mu      sync.Mutex
	actions []wfmodels.Action
}

func (r *captureRecorder) Record(_ context.Context, a wfmodels.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func (r *captureRecorder) of(t wfmodels.ActionType) []wfmodels.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []wfmodels.Action
	for _, a := range r.actions {
		if a.ActionType == t {
			out = append(out, a)
		}
	}
	return out
}

type ReconcileSuite struct {
	suite.Suite
	ctx      context.Context
	sim      *memory.Simulator
	gifts    *giftsvc.Service
	fulfil   *fulfillment.Service
	recorder *captureRecorder
	svc      *Service

	beneficiary *erp.Partner
	vendor      *erp.Partner
	stroller    *erp.Product
	list        *models.List
}

func TestReconcileSuite(t *testing.T) {
	suite.Run(t, new(ReconcileSuite))
}

func (s *ReconcileSuite) SetupTest() {
	s.ctx = testutil.FixedTime(time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC))
	s.sim = memory.New()
	s.recorder = &captureRecorder{}
	s.gifts = giftsvc.New(itemstore.NewInMemory(), liststore.NewInMemory(), s.sim, giftsvc.WithRecorder(s.recorder))
	s.fulfil = fulfillment.New(s.gifts, s.sim, fulfillment.WithRecorder(s.recorder))
	s.svc = New(s.gifts, s.sim, WithRecorder(s.recorder), WithHolder(s.fulfil))

	s.beneficiary = s.sim.AddPartner("Ana Lopez")
	s.vendor = s.sim.AddPartner("Baby Supplies SL")
	s.stroller = s.sim.AddProduct("Stroller", decimal.NewFromInt(400), decimal.NewFromInt(250),
		erp.VendorPrice{Vendor: s.vendor.ID, Price: decimal.NewFromInt(240)})

	var err error
	s.list, err = s.gifts.CreateList(s.ctx, giftsvc.CreateListRequest{Name: "Baby Ana", Beneficiary: s.beneficiary.ID})
	s.Require().NoError(err)
}

func (s *ReconcileSuite) addItem() *models.Item {
	it, err := s.gifts.AddItem(s.ctx, giftsvc.AddItemRequest{ListID: s.list.ID, ProductID: s.stroller.ID})
	s.Require().NoError(err)
	return it
}

func (s *ReconcileSuite) markFinalPaid(itemID id.ItemID) *models.Item {
	it, err := s.gifts.LinkDocuments(s.ctx, itemID, func(it *models.Item) (bool, error) {
		it.Refs.FinalPayment = id.PosOrderID(uuid.New())
		return true, nil
	})
	s.Require().NoError(err)
	return it
}

func (s *ReconcileSuite) saleDelivery(it *models.Item) *erp.Transfer {
	order, err := s.sim.Sales().Order(s.ctx, it.Refs.SaleOrder)
	s.Require().NoError(err)
	s.Require().Len(order.DeliveryIDs, 1)
	t, err := s.sim.Stock().Transfer(s.ctx, order.DeliveryIDs[0])
	s.Require().NoError(err)
	return t
}

func (s *ReconcileSuite) outgoing(origin string, partner id.PartnerID) *erp.Transfer {
	return s.sim.CreateDocumentTransfer(erp.TransferSpec{
		Type:           erp.TransferOutgoing,
		Origin:         origin,
		Partner:        partner,
		SourceLocation: "WH/Pending Delivery",
		DestLocation:   "Partners/Customers",
		Moves:          []erp.Move{{Product: s.stroller.ID, Qty: decimal.NewFromInt(1)}},
	})
}

func (s *ReconcileSuite) TestLinkDelivery() {
	s.Run("sale order delivery waits for the final payment", func() {
		it := s.addItem()
		delivery := s.saleDelivery(it)

		res, err := s.svc.LinkTransfer(s.ctx, delivery.ID)
		s.Require().NoError(err)
		s.Equal(OutcomeDeferred, res.Outcome)
		s.Equal(it.ID, res.ItemID)

		stored, err := s.gifts.GetItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.True(stored.Refs.Delivery.IsNil())
		s.Equal(models.StateWished, stored.State)
	})

	s.Run("sale line links a paid item and labels the transfer", func() {
		it := s.addItem()
		s.markFinalPaid(it.ID)
		delivery := s.saleDelivery(it)

		res, err := s.svc.LinkTransfer(s.ctx, delivery.ID)
		s.Require().NoError(err)
		s.Equal(OutcomeLinked, res.Outcome)
		s.Equal("sale_line", res.Strategy)
		s.Equal(models.StateOutCreated, res.State)

		t, err := s.sim.Stock().Transfer(s.ctx, delivery.ID)
		s.Require().NoError(err)
		s.Equal(s.beneficiary.ID, t.Partner)
		for _, m := range t.Moves {
			s.Equal(s.beneficiary.ID, m.Partner)
		}

		again, err := s.svc.LinkTransfer(s.ctx, delivery.ID)
		s.Require().NoError(err)
		s.Equal(OutcomeAlreadyLinked, again.Outcome)
	})

	s.Run("unmatched transfer is not an error", func() {
		other := s.sim.AddProduct("Bottle", decimal.NewFromInt(10), decimal.NewFromInt(5))
		t := s.sim.CreateDocumentTransfer(erp.TransferSpec{
			Type:  erp.TransferOutgoing,
			Moves: []erp.Move{{Product: other.ID, Qty: decimal.NewFromInt(1)}},
		})

		res, err := s.svc.LinkTransfer(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(OutcomeNotFound, res.Outcome)
		s.False(res.Matched())
	})

	s.Run("unknown transfer", func() {
		_, err := s.svc.LinkTransfer(s.ctx, id.TransferID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReconcileSuite) TestDeliveryFallbacks() {
	first := s.addItem()
	s.markFinalPaid(first.ID)

	s.Run("loosely typed origin resolves the sale order", func() {
		order, err := s.sim.Sales().Order(s.ctx, first.Refs.SaleOrder)
		s.Require().NoError(err)
		s.Require().Equal("S00001", order.Name)

		res, err := s.svc.LinkTransfer(s.ctx, s.outgoing("so1", id.PartnerID{}).ID)
		s.Require().NoError(err)
		s.Equal(OutcomeLinked, res.Outcome)
		s.Equal("origin", res.Strategy)
		s.Equal(first.ID, res.ItemID)
	})

	s.Run("product and beneficiary", func() {
		it := s.addItem()
		s.markFinalPaid(it.ID)

		res, err := s.svc.LinkTransfer(s.ctx, s.outgoing("manual", s.beneficiary.ID).ID)
		s.Require().NoError(err)
		s.Equal("product_partner", res.Strategy)
		s.Equal(it.ID, res.ItemID)
	})

	s.Run("product alone as last resort", func() {
		it := s.addItem()
		s.markFinalPaid(it.ID)

		res, err := s.svc.LinkTransfer(s.ctx, s.outgoing("manual", id.PartnerID{}).ID)
		s.Require().NoError(err)
		s.Equal("product_only", res.Strategy)
		s.Equal(it.ID, res.ItemID)
	})
}

func (s *ReconcileSuite) TestNormalizeName() {
	cases := []struct {
		origin string
		want   string
		ok     bool
	}{
		{"S00012", "S00012", true},
		{"SO12", "S00012", true},
		{"s0012", "S00012", true},
		{"Return of SO7", "S00007", true},
		{"GIFT: Baby Ana", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeName(saleNamePattern, "S", tc.origin)
		s.Equal(tc.ok, ok, tc.origin)
		s.Equal(tc.want, got, tc.origin)
	}

	got, ok := normalizeName(purchaseNamePattern, "PO", "po003")
	s.True(ok)
	s.Equal("PO00003", got)
}

func (s *ReconcileSuite) TestReceiptFlow() {
	it := s.addItem()
	it, err := s.fulfil.EnsureProcurement(s.ctx, it.ID)
	s.Require().NoError(err)
	s.Require().False(it.Refs.Purchase.IsNil())

	po, err := s.sim.Purchase().Confirm(s.ctx, it.Refs.Purchase)
	s.Require().NoError(err)

	s.Run("confirmation links the receipt", func() {
		items, err := s.svc.OnPurchaseChanged(s.ctx, po.ID)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(po.ReceiptIDs[0], items[0].Refs.Receipt)
		s.Equal(models.StatePending, items[0].State)
		s.Len(s.recorder.of(wfmodels.ActionPOConfirmed), 1)
	})

	s.Run("not done yet", func() {
		_, err := s.svc.OnTransferValidated(s.ctx, po.ReceiptIDs[0])
		s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
	})

	s.Run("validation reserves the goods for the list", func() {
		_, err := s.sim.Stock().Validate(s.ctx, po.ReceiptIDs[0])
		s.Require().NoError(err)

		res, err := s.svc.OnTransferValidated(s.ctx, po.ReceiptIDs[0])
		s.Require().NoError(err)
		s.Equal(models.StateReceived, res.State)

		stored, err := s.gifts.GetItem(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Require().False(stored.Refs.Holding.IsNil())

		holding, err := s.sim.Stock().Transfer(s.ctx, stored.Refs.Holding)
		s.Require().NoError(err)
		s.Equal(erp.TransferInternal, holding.Type)
		s.Equal(erp.TransferAssigned, holding.State)
		s.Equal("GIFT: Baby Ana", holding.Origin)
		s.Equal(s.beneficiary.ID, holding.Partner)
		s.Len(s.recorder.of(wfmodels.ActionReceiptValidated), 1)
	})
}

func (s *ReconcileSuite) TestHoldingFlow() {
	s.sim.SetQty(s.stroller.ID, "WH/Stock", decimal.NewFromInt(1))
	it := s.addItem()
	it, err := s.fulfil.EnsureProcurement(s.ctx, it.ID)
	s.Require().NoError(err)
	s.Require().Equal(models.StateReserved, it.State)
	holdingID := it.Refs.Holding

	s.Run("holding found by origin when the ref is missing", func() {
		detached := s.sim.CreateDocumentTransfer(erp.TransferSpec{
			Type:           erp.TransferInternal,
			Origin:         s.list.Origin(),
			Partner:        s.beneficiary.ID,
			SourceLocation: "WH/Stock",
			DestLocation:   "WH/Pending Delivery",
			Moves:          []erp.Move{{Product: s.stroller.ID, Qty: decimal.NewFromInt(1)}},
		})
		other := s.addItem()

		res, err := s.svc.LinkTransfer(s.ctx, detached.ID)
		s.Require().NoError(err)
		s.Equal("origin_list", res.Strategy)
		s.Equal(other.ID, res.ItemID)
	})

	s.Run("validated holding without payment stays pending", func() {
		_, err := s.sim.Stock().Validate(s.ctx, holdingID)
		s.Require().NoError(err)

		res, err := s.svc.OnTransferValidated(s.ctx, holdingID)
		s.Require().NoError(err)
		s.Equal("holding_ref", res.Strategy)
		s.Equal(models.StatePending, res.State)
		s.Len(s.recorder.of(wfmodels.ActionInternalTransferValidated), 1)
	})

	s.Run("final payment then links the sale delivery", func() {
		s.markFinalPaid(it.ID)

		res, err := s.svc.LinkDelivery(s.ctx, it.ID)
		s.Require().NoError(err)
		s.Equal(OutcomeLinked, res.Outcome)
		s.Equal("sale_order", res.Strategy)
		s.Equal(models.StateOutCreated, res.State)
	})
}

func (s *ReconcileSuite) TestLinkDeliveryDefersUnheldItems() {
	it := s.addItem()
	s.markFinalPaid(it.ID)

	res, err := s.svc.LinkDelivery(s.ctx, it.ID)
	s.Require().NoError(err)
	s.Equal(OutcomeDeferred, res.Outcome)
}

func (s *ReconcileSuite) TestConsolidatePartnerRef() {
	po, err := s.sim.Purchase().CreateOrder(s.ctx, erp.PurchaseSpec{
		Vendor: s.vendor.ID,
		Lines:  []erp.PurchaseLine{{Product: s.stroller.ID, Qty: decimal.NewFromInt(1)}},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.sim.Purchase().SetPartnerRef(s.ctx, po.ID, "zeta DN-9 alpha"))
	for _, ref := range []string{"DN-9", "DN-3", "DN-3"} {
		s.sim.CreateDocumentTransfer(erp.TransferSpec{
			Type:       erp.TransferIncoming,
			Purchase:   po.ID,
			PartnerRef: ref,
			Moves:      []erp.Move{{Product: s.stroller.ID, Qty: decimal.NewFromInt(1)}},
		})
	}

	ref, err := s.svc.ConsolidatePartnerRef(s.ctx, po.ID)
	s.Require().NoError(err)
	s.Equal("alpha zeta DN-3 DN-9", ref)

	stored, err := s.sim.Purchase().Order(s.ctx, po.ID)
	s.Require().NoError(err)
	s.Equal("alpha zeta DN-3 DN-9", stored.PartnerRef)

	again, err := s.svc.ConsolidatePartnerRef(s.ctx, po.ID)
	s.Require().NoError(err)
	s.Equal(ref, again)
}
