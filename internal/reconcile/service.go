// Package reconcile links stock, purchase and register documents created by
// other subsystems back to the gift list items they serve.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	"giftlist/internal/reconcile/metrics"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
)

var tracer = otel.Tracer("giftlist/reconcile")

// Items is the slice of the gift list service reconciliation needs. Only the
// gift list service writes item references.
type Items interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	GetList(ctx context.Context, listID id.ListID) (*models.List, error)
	FindItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error)
	FindLists(ctx context.Context, filter models.ListFilter) ([]*models.List, error)
	LinkDocuments(ctx context.Context, itemID id.ItemID, fn giftsvc.Mutation) (*models.Item, error)
	Recompute(ctx context.Context, itemID id.ItemID) (*models.Item, error)
}

// Holder creates and links the pending-delivery transfer once an item's
// goods are in stock.
type Holder interface {
	EnsureHolding(ctx context.Context, itemID id.ItemID) (*models.Item, error)
}

type ActionRecorder interface {
	Record(ctx context.Context, action wfmodels.Action)
}

// Outcome says what a link attempt did.
type Outcome string

const (
	OutcomeLinked        Outcome = "linked"
	OutcomeAlreadyLinked Outcome = "already_linked"
	OutcomeNotFound      Outcome = "not_found"
	// OutcomeDeferred means an item matched but is not ready for the document yet.
	OutcomeDeferred Outcome = "deferred"
)

// LinkResult reports the matched item and the strategy that found it.
type LinkResult struct {
	Outcome  Outcome      `json:"outcome"`
	ItemID   id.ItemID    `json:"item_id"`
	Strategy string       `json:"strategy,omitempty"`
	State    models.State `json:"state,omitempty"`
}

// Matched reports whether an item was identified, linked or not.
func (r *LinkResult) Matched() bool {
	return r != nil && !r.ItemID.IsNil()
}

// Service runs the reconciliation pipelines.
type Service struct {
	items    Items
	erp      erp.Adapter
	holder   Holder
	recorder ActionRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics

	deliveries *Pipeline[*erp.Transfer]
	receipts   *Pipeline[*erp.Transfer]
	holdings   *Pipeline[*erp.Transfer]

	// Payments matches register orders to items.
	Payments *PaymentMatcher
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

func WithHolder(h Holder) Option {
	return func(s *Service) {
		s.holder = h
	}
}

func New(items Items, adapter erp.Adapter, opts ...Option) *Service {
	s := &Service{
		items:  items,
		erp:    adapter,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deliveries = NewPipeline("delivery", s.logger, s.metrics, s.deliveryStrategies()...)
	s.receipts = NewPipeline("receipt", s.logger, s.metrics, s.receiptStrategies()...)
	s.holdings = NewPipeline("holding", s.logger, s.metrics, s.holdingStrategies()...)
	s.Payments = &PaymentMatcher{items: items, erp: adapter, logger: s.logger, metrics: s.metrics}
	return s
}

func (s *Service) record(ctx context.Context, action wfmodels.Action) {
	if s.recorder != nil {
		s.recorder.Record(ctx, action)
	}
}

// LinkTransfer resolves the transfer to an item and stores the matching
// reference. A transfer no strategy can place is not an error.
func (s *Service) LinkTransfer(ctx context.Context, transferID id.TransferID) (*LinkResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile.link_transfer")
	defer span.End()
	span.SetAttributes(attribute.String("transfer_id", transferID.String()))

	t, err := s.transfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, t)
}

func (s *Service) transfer(ctx context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	t, err := s.erp.Stock().Transfer(ctx, transferID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "transfer %s not found", transferID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transfer")
	}
	return t, nil
}

func (s *Service) pipelineFor(t erp.TransferType) *Pipeline[*erp.Transfer] {
	switch t {
	case erp.TransferIncoming:
		return s.receipts
	case erp.TransferInternal:
		return s.holdings
	default:
		return s.deliveries
	}
}

// refFor points at the item reference a transfer of type t fills.
func refFor(t erp.TransferType, refs *models.DocumentRefs) *id.TransferID {
	switch t {
	case erp.TransferIncoming:
		return &refs.Receipt
	case erp.TransferInternal:
		return &refs.Holding
	default:
		return &refs.Delivery
	}
}

func (s *Service) link(ctx context.Context, t *erp.Transfer) (*LinkResult, error) {
	p := s.pipelineFor(t.Type)
	itemID, strategy, ok := p.Resolve(ctx, t)
	if !ok {
		s.logger.InfoContext(ctx, "transfer not matched to any item",
			"transfer", t.Name,
			"type", t.Type,
			"origin", t.Origin,
		)
		return &LinkResult{Outcome: OutcomeNotFound}, nil
	}

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	res := &LinkResult{ItemID: itemID, Strategy: strategy, State: it.State}
	if *refFor(t.Type, &it.Refs) == t.ID {
		res.Outcome = OutcomeAlreadyLinked
		return res, nil
	}
	// The sales subsystem creates a delivery as soon as the order is
	// confirmed. It only belongs to the item once the item is fully paid.
	if t.Type == erp.TransferOutgoing && it.Refs.FinalPayment.IsNil() {
		if s.metrics != nil {
			s.metrics.IncDeferred(p.Name())
		}
		s.logger.InfoContext(ctx, "delivery deferred until final payment",
			"transfer", t.Name,
			"item_id", itemID,
		)
		res.Outcome = OutcomeDeferred
		return res, nil
	}
	return s.attach(ctx, t, it, strategy)
}

// attach writes the reference, pushes the beneficiary onto the transfer and
// records the link.
func (s *Service) attach(ctx context.Context, t *erp.Transfer, it *models.Item, strategy string) (*LinkResult, error) {
	list, err := s.items.GetList(ctx, it.ListID)
	if err != nil {
		return nil, err
	}
	s.propagatePartner(ctx, t, list.Beneficiary)

	updated, err := s.items.LinkDocuments(ctx, it.ID, func(it *models.Item) (bool, error) {
		ref := refFor(t.Type, &it.Refs)
		if *ref == t.ID {
			return false, nil
		}
		*ref = t.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "transfer linked",
		"transfer", t.Name,
		"item_id", it.ID,
		"strategy", strategy,
		"state", updated.State,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocTransfer,
		DocumentRef:  t.Name,
		ResID:        uuid.UUID(t.ID),
		ActionType:   wfmodels.ActionTransferLinked,
		StateTo:      string(t.State),
		Partner:      list.Beneficiary,
		Note:         "Linked to " + it.ProductName + " via " + strategy,
	})
	return &LinkResult{
		Outcome:  OutcomeLinked,
		ItemID:   it.ID,
		Strategy: strategy,
		State:    updated.State,
	}, nil
}

// propagatePartner sets the beneficiary on the transfer and its moves. The
// stock subsystem owns the write, so a failure only costs the label.
func (s *Service) propagatePartner(ctx context.Context, t *erp.Transfer, partner id.PartnerID) {
	if partner.IsNil() {
		return
	}
	needs := t.Partner != partner
	for _, m := range t.Moves {
		if m.Partner != partner {
			needs = true
		}
	}
	if !needs {
		return
	}
	if err := s.erp.Stock().SetPartner(ctx, t.ID, partner); err != nil {
		s.logger.WarnContext(ctx, "could not set transfer partner",
			"transfer", t.Name,
			"error", err,
		)
	}
}

// OnTransferValidated reacts to a transfer reaching done: it links the
// transfer and advances the item to its next document.
func (s *Service) OnTransferValidated(ctx context.Context, transferID id.TransferID) (*LinkResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile.transfer_validated")
	defer span.End()
	span.SetAttributes(attribute.String("transfer_id", transferID.String()))

	t, err := s.transfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t.State != erp.TransferDone {
		return nil, dErrors.Newf(dErrors.CodeFailedPrecondition, "Transfer %s is not done.", t.Name)
	}
	res, err := s.link(ctx, t)
	if err != nil {
		return nil, err
	}

	action := wfmodels.ActionDeliveryValidated
	switch t.Type {
	case erp.TransferIncoming:
		action = wfmodels.ActionReceiptValidated
		if res.Matched() && s.holder != nil {
			if _, err := s.holder.EnsureHolding(ctx, res.ItemID); err != nil {
				return nil, err
			}
		}
	case erp.TransferInternal:
		action = wfmodels.ActionInternalTransferValidated
	}

	var purchase id.PurchaseOrderID
	if res.Matched() {
		it, err := s.items.Recompute(ctx, res.ItemID)
		if err != nil {
			return nil, err
		}
		if t.Type == erp.TransferInternal {
			if _, err := s.LinkDelivery(ctx, res.ItemID); err != nil {
				return nil, err
			}
			if it, err = s.items.GetItem(ctx, res.ItemID); err != nil {
				return nil, err
			}
		}
		res.State = it.State
		purchase = it.Refs.Purchase
	}
	if !t.Purchase.IsNil() {
		purchase = t.Purchase
	}
	if !purchase.IsNil() {
		if _, err := s.ConsolidatePartnerRef(ctx, purchase); err != nil {
			s.logger.WarnContext(ctx, "could not consolidate purchase partner reference",
				"purchase_order_id", purchase,
				"error", err,
			)
		}
	}

	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocTransfer,
		DocumentRef:  t.Name,
		ResID:        uuid.UUID(t.ID),
		ActionType:   action,
		StateTo:      string(t.State),
		Partner:      t.Partner,
	})
	return res, nil
}

// LinkDelivery attaches an existing outgoing transfer to a paid item whose
// goods are already held for it. Items not ready yet are deferred.
func (s *Service) LinkDelivery(ctx context.Context, itemID id.ItemID) (*LinkResult, error) {
	ctx, span := tracer.Start(ctx, "reconcile.link_delivery")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", itemID.String()))

	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	res := &LinkResult{ItemID: itemID, State: it.State}
	if !it.Refs.Delivery.IsNil() {
		res.Outcome = OutcomeAlreadyLinked
		return res, nil
	}
	ready, err := s.readyForDelivery(ctx, it)
	if err != nil {
		return nil, err
	}
	if !ready {
		if s.metrics != nil {
			s.metrics.IncDeferred(s.deliveries.Name())
		}
		res.Outcome = OutcomeDeferred
		return res, nil
	}

	list, err := s.items.GetList(ctx, it.ListID)
	if err != nil {
		return nil, err
	}
	t, strategy, err := s.findDelivery(ctx, it, list)
	if err != nil {
		return nil, err
	}
	if t == nil {
		s.logger.InfoContext(ctx, "no delivery found for item",
			"item_id", itemID,
		)
		res.Outcome = OutcomeNotFound
		return res, nil
	}
	return s.attach(ctx, t, it, strategy)
}

// readyForDelivery requires the final payment and a completed holding transfer.
func (s *Service) readyForDelivery(ctx context.Context, it *models.Item) (bool, error) {
	if it.Refs.FinalPayment.IsNil() || it.Refs.Holding.IsNil() {
		return false, nil
	}
	holding, err := s.transfer(ctx, it.Refs.Holding)
	if err != nil {
		return false, err
	}
	return holding.State == erp.TransferDone, nil
}

var excludeCancelled = []erp.TransferState{erp.TransferCancel}

type deliverySearch struct {
	name   string
	filter erp.TransferFilter
}

// findDelivery looks for an unclaimed outgoing transfer by sale order, then
// by sale order name as origin, then by product and beneficiary.
func (s *Service) findDelivery(ctx context.Context, it *models.Item, list *models.List) (*erp.Transfer, string, error) {
	var searches []deliverySearch
	if !it.Refs.SaleOrder.IsNil() {
		searches = append(searches, deliverySearch{"sale_order", erp.TransferFilter{
			Type: erp.TransferOutgoing, Sale: it.Refs.SaleOrder, ExcludeStates: excludeCancelled,
		}})
		order, err := s.erp.Sales().Order(ctx, it.Refs.SaleOrder)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sale order")
		}
		if order != nil {
			searches = append(searches, deliverySearch{"origin", erp.TransferFilter{
				Type: erp.TransferOutgoing, Origin: order.Name, ExcludeStates: excludeCancelled,
			}})
		}
	}
	searches = append(searches, deliverySearch{"product_partner", erp.TransferFilter{
		Type: erp.TransferOutgoing, Product: it.ProductID, Partner: list.Beneficiary, ExcludeStates: excludeCancelled,
	}})

	for _, search := range searches {
		found, err := s.erp.Stock().FindTransfers(ctx, search.filter)
		if err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to search transfers")
		}
		// Latest first.
		for i := len(found) - 1; i >= 0; i-- {
			claimed, err := s.items.FindItems(ctx, models.ItemFilter{Delivery: found[i].ID})
			if err != nil {
				return nil, "", err
			}
			if len(claimed) == 0 {
				return found[i], search.name, nil
			}
		}
	}
	return nil, "", nil
}
