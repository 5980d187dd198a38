// Package fulfillment gets goods moving for paid items: it reserves stock or
// orders from a vendor, and creates the customer delivery.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/erp"
	"giftlist/internal/fulfillment/metrics"
	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
)

var (
	tracer = otel.Tracer("giftlist/fulfillment")
	one    = decimal.NewFromInt(1)
)

type Items interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	GetList(ctx context.Context, listID id.ListID) (*models.List, error)
	LinkDocuments(ctx context.Context, itemID id.ItemID, fn giftsvc.Mutation) (*models.Item, error)
}

type ActionRecorder interface {
	Record(ctx context.Context, action wfmodels.Action)
}

// Locations name where goods wait and where they go.
type Locations struct {
	Stock    string
	Pending  string
	Customer string
}

type Service struct {
	items     Items
	erp       erp.Adapter
	locations Locations
	recorder  ActionRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRecorder(r ActionRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithLocations(l Locations) Option {
	return func(s *Service) {
		s.locations = l
	}
}

func New(items Items, adapter erp.Adapter, opts ...Option) *Service {
	s := &Service{
		items:  items,
		erp:    adapter,
		logger: slog.Default(),
		locations: Locations{
			Stock:    "WH/Stock",
			Pending:  "WH/Pending Delivery",
			Customer: "Partners/Customers",
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, action wfmodels.Action) {
	if s.recorder != nil {
		s.recorder.Record(ctx, action)
	}
}

// OnDownpayment links the down payment and procures the item: from stock
// when a unit is free, else from the first vendor. Calling it again for an
// item that already has a down payment does nothing.
func (s *Service) OnDownpayment(ctx context.Context, itemID id.ItemID, order *erp.PosOrder) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.on_downpayment")
	defer span.End()
	span.SetAttributes(
		attribute.String("item_id", itemID.String()),
		attribute.String("pos_order", order.Name),
	)

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Refs.DownPayment.IsNil() {
		return it, nil
	}
	it, err = s.procure(ctx, it, func(refs *models.DocumentRefs) bool {
		if !refs.DownPayment.IsNil() {
			return false
		}
		refs.DownPayment = order.ID
		return true
	})
	if err != nil {
		return nil, err
	}
	amount := order.AmountTotal
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocPosOrder,
		DocumentRef:  order.Name,
		ResID:        uuid.UUID(order.ID),
		ActionType:   wfmodels.ActionPaymentReceived,
		StateTo:      string(it.State),
		Partner:      order.Partner,
		Amount:       &amount,
		Note:         "Down payment for " + it.ProductName,
	})
	return it, nil
}

// EnsureProcurement procures an item paid in full without a down payment.
// Items that already have a holding transfer or a purchase order are left alone.
func (s *Service) EnsureProcurement(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.ensure_procurement")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return s.procure(ctx, it, nil)
}

// procure runs the stock or vendor branch and applies payment, if any, in
// the same write.
func (s *Service) procure(ctx context.Context, it *models.Item, payment func(*models.DocumentRefs) bool) (*models.Item, error) {
	if !it.Refs.Holding.IsNil() || !it.Refs.Purchase.IsNil() {
		return s.link(ctx, it.ID, payment)
	}
	list, err := s.items.GetList(ctx, it.ListID)
	if err != nil {
		return nil, err
	}

	free, err := s.erp.Stock().FreeQty(ctx, it.ProductID, s.locations.Stock)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read stock")
	}
	if free.GreaterThanOrEqual(one) {
		t, err := s.hold(ctx, it, list)
		if err != nil {
			return nil, err
		}
		s.count("stock")
		return s.link(ctx, it.ID, func(refs *models.DocumentRefs) bool {
			refs.Holding = t.ID
			if payment != nil {
				payment(refs)
			}
			return true
		})
	}

	product, err := s.erp.Catalog().Product(ctx, it.ProductID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "product %s not found", it.ProductID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read product")
	}
	if len(product.Vendors) == 0 {
		s.count("no_vendor")
		s.logger.WarnContext(ctx, "no stock and no vendor for product",
			"item_id", it.ID,
			"product", product.Name,
		)
		return s.link(ctx, it.ID, payment)
	}

	vendor := product.Vendors[0]
	price := vendor.Price
	if price.IsZero() {
		price = product.StandardPrice
	}
	po, err := s.erp.Purchase().CreateOrder(ctx, erp.PurchaseSpec{
		Vendor: vendor.Vendor,
		Origin: list.Origin(),
		Lines: []erp.PurchaseLine{{
			Product:   product.ID,
			Qty:       one,
			PriceUnit: price,
		}},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create purchase order")
	}
	s.count("purchase")
	s.logger.InfoContext(ctx, "purchase order created",
		"item_id", it.ID,
		"purchase_order", po.Name,
		"price", price.StringFixed(2),
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocPurchaseOrder,
		DocumentRef:  po.Name,
		ResID:        uuid.UUID(po.ID),
		ActionType:   wfmodels.ActionPOCreated,
		StateTo:      string(po.State),
		Partner:      vendor.Vendor,
		Amount:       &price,
		Note:         "For " + it.ProductName + " on " + list.Name,
	})
	return s.link(ctx, it.ID, func(refs *models.DocumentRefs) bool {
		refs.Purchase = po.ID
		if payment != nil {
			payment(refs)
		}
		return true
	})
}

func (s *Service) link(ctx context.Context, itemID id.ItemID, apply func(*models.DocumentRefs) bool) (*models.Item, error) {
	return s.items.LinkDocuments(ctx, itemID, func(it *models.Item) (bool, error) {
		if apply == nil {
			return false, nil
		}
		return apply(&it.Refs), nil
	})
}

func (s *Service) count(branch string) {
	if s.metrics != nil {
		s.metrics.IncProcurement(branch)
	}
}

// EnsureHolding moves a received unit from stock to the pending-delivery
// location on the item's behalf.
func (s *Service) EnsureHolding(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Refs.Holding.IsNil() {
		return it, nil
	}
	list, err := s.items.GetList(ctx, it.ListID)
	if err != nil {
		return nil, err
	}
	t, err := s.hold(ctx, it, list)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, itemID, func(refs *models.DocumentRefs) bool {
		if !refs.Holding.IsNil() {
			return false
		}
		refs.Holding = t.ID
		return true
	})
}

// hold creates, confirms and assigns the internal stock to pending transfer.
func (s *Service) hold(ctx context.Context, it *models.Item, list *models.List) (*erp.Transfer, error) {
	t, err := s.erp.Stock().CreateTransfer(ctx, erp.TransferSpec{
		Type:           erp.TransferInternal,
		Origin:         list.Origin(),
		Partner:        list.Beneficiary,
		SourceLocation: s.locations.Stock,
		DestLocation:   s.locations.Pending,
		Moves:          []erp.Move{{Product: it.ProductID, Qty: one}},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create pending transfer")
	}
	if t, err = s.confirmAndAssign(ctx, t.ID); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "pending transfer created",
		"item_id", it.ID,
		"transfer", t.Name,
		"state", t.State,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocTransfer,
		DocumentRef:  t.Name,
		ResID:        uuid.UUID(t.ID),
		ActionType:   wfmodels.ActionTransferCreated,
		StateTo:      string(t.State),
		Partner:      list.Beneficiary,
		Note:         "Pending delivery for " + it.ProductName,
	})
	return t, nil
}

func (s *Service) confirmAndAssign(ctx context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	if _, err := s.erp.Stock().Confirm(ctx, transferID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm transfer")
	}
	t, err := s.erp.Stock().Assign(ctx, transferID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve transfer")
	}
	return t, nil
}

// CreateDelivery ships a paid item from the pending location to the customer.
func (s *Service) CreateDelivery(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "fulfillment.create_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.State != models.StatePaid {
		return nil, dErrors.Newf(dErrors.CodeFailedPrecondition,
			"Cannot create delivery for %s item. The item must be paid.", it.State)
	}
	if !it.Refs.Delivery.IsNil() {
		return nil, dErrors.New(dErrors.CodeFailedPrecondition, "Item already has a delivery.")
	}
	list, err := s.items.GetList(ctx, it.ListID)
	if err != nil {
		return nil, err
	}

	origin := list.Origin()
	if !it.Refs.SaleOrder.IsNil() {
		if order, err := s.erp.Sales().Order(ctx, it.Refs.SaleOrder); err == nil {
			origin = order.Name
		}
	}
	t, err := s.erp.Stock().CreateTransfer(ctx, erp.TransferSpec{
		Type:           erp.TransferOutgoing,
		Origin:         origin,
		Partner:        list.Beneficiary,
		Sale:           it.Refs.SaleOrder,
		SourceLocation: s.locations.Pending,
		DestLocation:   s.locations.Customer,
		Moves: []erp.Move{{
			Product:  it.ProductID,
			Qty:      one,
			SaleLine: it.Refs.SaleLine,
		}},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create delivery")
	}
	if t, err = s.confirmAndAssign(ctx, t.ID); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncDeliveriesCreated()
	}

	it, err = s.link(ctx, itemID, func(refs *models.DocumentRefs) bool {
		if !refs.Delivery.IsNil() {
			return false
		}
		refs.Delivery = t.ID
		return true
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "delivery created",
		"item_id", itemID,
		"transfer", t.Name,
		"state", it.State,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocTransfer,
		DocumentRef:  t.Name,
		ResID:        uuid.UUID(t.ID),
		ActionType:   wfmodels.ActionTransferCreated,
		StateTo:      string(t.State),
		Partner:      list.Beneficiary,
		Note:         "Delivery for " + it.ProductName,
	})
	return it, nil
}
