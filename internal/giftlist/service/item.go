package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/requestcontext"
)

const defaultSequence = 10

type AddItemRequest struct {
	ListID    id.ListID
	ProductID id.ProductID
	// PriceUnit overrides the catalog list price when set.
	PriceUnit *decimal.Decimal
	Discount  decimal.Decimal
	Sequence  int
}

// AddItem creates the item together with a confirmed one-unit sale order for
// the beneficiary. Nothing is stored when the order cannot be confirmed.
func (s *Service) AddItem(ctx context.Context, req AddItemRequest) (*models.Item, error) {
	list, err := s.lists.FindByID(ctx, req.ListID)
	if err != nil {
		return nil, listNotFound(err, req.ListID)
	}
	if err := list.CanAddItems(); err != nil {
		return nil, err
	}
	product, err := s.erp.Catalog().Product(ctx, req.ProductID)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "product %s not found", req.ProductID)
	}
	price := product.ListPrice
	if req.PriceUnit != nil {
		price = *req.PriceUnit
	}
	seq := req.Sequence
	if seq == 0 {
		seq = defaultSequence
	}

	now := requestcontext.Now(ctx)
	it, err := models.NewItem(id.ItemID(uuid.New()), list.ID, product.ID, product.Name, price, req.Discount, seq, now)
	if err != nil {
		return nil, validation(err)
	}

	order, err := s.erp.Sales().CreateOrder(ctx, erp.SaleSpec{
		Partner: list.Beneficiary,
		Origin:  list.Name,
		Lines: []erp.SaleLine{{
			Product:   product.ID,
			Qty:       decimal.NewFromInt(1),
			PriceUnit: price,
			Discount:  req.Discount,
		}},
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create sale order")
	}
	if _, err := s.erp.Sales().ConfirmOrder(ctx, order.ID); err != nil {
		if errors.Is(err, erp.ErrNoRoute) {
			if s.metrics != nil {
				s.metrics.IncRouteErrors()
			}
			return nil, dErrors.Newf(dErrors.CodeFailedPrecondition,
				"No delivery route configured for product '%s'. Configure a route before adding it to a gift list.", product.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to confirm sale order")
	}
	it.Refs.SaleOrder = order.ID
	it.Refs.SaleLine = order.Lines[0].ID
	s.rederive(ctx, it)

	if err := s.items.Create(ctx, it); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save item")
	}
	if s.metrics != nil {
		s.metrics.IncItemsCreated()
	}
	s.logger.InfoContext(ctx, "item added",
		"item_id", it.ID,
		"list_id", it.ListID,
		"sale_order", order.Name,
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocGiftListItem,
		DocumentRef:  it.ProductName,
		ResID:        uuid.UUID(it.ID),
		ActionType:   wfmodels.ActionCreation,
		StateTo:      string(it.State),
		Partner:      list.Beneficiary,
		Note:         "Sale order " + order.Name,
	})
	return it, nil
}

// ItemPatch carries caller-requested field writes. Fields lists every field
// the caller tried to set, including ones outside the whitelist.
type ItemPatch struct {
	Fields   []string
	Sequence *int
	PaidBy   *id.PartnerID
}

func (s *Service) UpdateItem(ctx context.Context, itemID id.ItemID, patch ItemPatch) (*models.Item, error) {
	if err := models.CheckEditable(patch.Fields); err != nil {
		return nil, err
	}
	current, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, itemNotFound(err, itemID)
	}
	list, err := s.lists.FindByID(ctx, current.ListID)
	if err != nil {
		return nil, listNotFound(err, current.ListID)
	}
	if err := list.CanModify(); err != nil {
		return nil, err
	}
	return s.mutate(ctx, itemID, func(it *models.Item) (bool, error) {
		changed := false
		if patch.Sequence != nil && *patch.Sequence != it.Sequence {
			it.Sequence = *patch.Sequence
			changed = true
		}
		if patch.PaidBy != nil && *patch.PaidBy != it.PaidBy {
			it.PaidBy = *patch.PaidBy
			changed = true
		}
		return changed, nil
	})
}

// CancelItem flags the item cancelled. Cancelling a cancelled item is a no-op.
func (s *Service) CancelItem(ctx context.Context, itemID id.ItemID, reason models.CancelReason, detail string) (*models.Item, error) {
	if err := models.ValidateCancelReason(reason, detail); err != nil {
		return nil, err
	}
	return s.cancel(ctx, itemID, reason, detail, (*models.Item).CanCancel)
}

func (s *Service) cancel(ctx context.Context, itemID id.ItemID, reason models.CancelReason, detail string, guard func(*models.Item) error) (*models.Item, error) {
	already := false
	it, err := s.mutate(ctx, itemID, func(it *models.Item) (bool, error) {
		if it.IsCancelled {
			already = true
			return false, nil
		}
		if err := guard(it); err != nil {
			return false, err
		}
		it.ApplyCancellation(reason, detail, requestcontext.Now(ctx))
		return true, nil
	})
	if err != nil || already {
		return it, err
	}
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocGiftListItem,
		DocumentRef:  it.ProductName,
		ResID:        uuid.UUID(it.ID),
		ActionType:   wfmodels.ActionCancellation,
		StateTo:      string(it.State),
		Note:         cancelNote(reason, detail),
	})
	return it, nil
}

func cancelNote(reason models.CancelReason, detail string) string {
	if detail == "" {
		return string(reason)
	}
	return string(reason) + ": " + detail
}

// ReturnItem refunds the wallet for what it paid towards the item, then
// cancels it with reason returned. The refund is claimed on the item before
// any money moves, so a second or concurrent call does nothing.
func (s *Service) ReturnItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	now := requestcontext.Now(ctx)
	claimed := false
	it, err := s.mutate(ctx, itemID, func(it *models.Item) (bool, error) {
		if it.RefundedAt != nil {
			return false, nil
		}
		if err := it.CanReturn(); err != nil {
			return false, err
		}
		it.RefundedAt = &now
		claimed = true
		return true, nil
	})
	if err != nil || !claimed {
		return it, err
	}

	refunded, err := s.refund(ctx, it)
	if err != nil {
		if _, releaseErr := s.mutate(ctx, itemID, func(it *models.Item) (bool, error) {
			if it.RefundedAt == nil {
				return false, nil
			}
			it.RefundedAt = nil
			return true, nil
		}); releaseErr != nil {
			s.logger.ErrorContext(ctx, "failed to release refund claim",
				"item_id", itemID,
				"error", releaseErr,
			)
		}
		return nil, err
	}

	it, err = s.mutate(ctx, itemID, func(it *models.Item) (bool, error) {
		if it.IsCancelled {
			return false, nil
		}
		it.ApplyCancellation(models.CancelReturned, "", now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	list, err := s.lists.FindByID(ctx, it.ListID)
	if err != nil {
		return nil, listNotFound(err, it.ListID)
	}
	s.logger.InfoContext(ctx, "item returned",
		"item_id", it.ID,
		"refunded", refunded.StringFixed(2),
	)
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocGiftListItem,
		DocumentRef:  it.ProductName,
		ResID:        uuid.UUID(it.ID),
		ActionType:   wfmodels.ActionPaymentRefunded,
		StateTo:      string(it.State),
		Partner:      list.Beneficiary,
		Amount:       &refunded,
	})
	return it, nil
}

// refund credits the list's wallet for the item's register orders. Lists
// without a wallet, and items nobody paid for yet, refund nothing.
func (s *Service) refund(ctx context.Context, it *models.Item) (decimal.Decimal, error) {
	if s.refunder == nil {
		return decimal.Zero, nil
	}
	orders := it.Refs.PaymentOrders()
	if len(orders) == 0 {
		return decimal.Zero, nil
	}
	list, err := s.lists.FindByID(ctx, it.ListID)
	if err != nil {
		return decimal.Zero, listNotFound(err, it.ListID)
	}
	if list.WalletID.IsNil() {
		return decimal.Zero, nil
	}
	return s.refunder.Refund(ctx, list.WalletID, it.ID, orders, "Gift List Return: "+it.ProductName)
}

// DeleteItem removes an item that never left wished, or was cancelled.
func (s *Service) DeleteItem(ctx context.Context, itemID id.ItemID) error {
	return s.tx.RunInTx(ctx, "item:"+itemID.String(), func(ctx context.Context) error {
		it, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			return itemNotFound(err, itemID)
		}
		if err := it.CanDelete(); err != nil {
			return err
		}
		if err := s.items.Delete(ctx, itemID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete item")
		}
		return nil
	})
}

func (s *Service) GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	it, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, itemNotFound(err, itemID)
	}
	return it, nil
}

func (s *Service) ListItems(ctx context.Context, listID id.ListID) ([]*models.Item, error) {
	if _, err := s.lists.FindByID(ctx, listID); err != nil {
		return nil, listNotFound(err, listID)
	}
	items, err := s.items.Find(ctx, models.ItemFilter{ListIDs: []id.ListID{listID}})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list items")
	}
	return items, nil
}

// FindItems exposes filtered lookups to the reconciliation and payment flows.
func (s *Service) FindItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	items, err := s.items.Find(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search items")
	}
	return items, nil
}
