package reconcile

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
	pstrings "giftlist/pkg/platform/strings"
)

func (s *Service) purchaseOrder(ctx context.Context, orderID id.PurchaseOrderID) (*erp.PurchaseOrder, error) {
	po, err := s.erp.Purchase().Order(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "purchase order %s not found", orderID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read purchase order")
	}
	return po, nil
}

// OnPurchaseChanged runs after a purchase order is confirmed or sent. It
// links any receipts the order produced and recomputes its items.
func (s *Service) OnPurchaseChanged(ctx context.Context, orderID id.PurchaseOrderID) ([]*models.Item, error) {
	ctx, span := tracer.Start(ctx, "reconcile.purchase_changed")
	defer span.End()
	span.SetAttributes(attribute.String("purchase_order_id", orderID.String()))

	po, err := s.purchaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, receiptID := range po.ReceiptIDs {
		if _, err := s.LinkTransfer(ctx, receiptID); err != nil {
			s.logger.WarnContext(ctx, "could not link purchase receipt",
				"purchase_order", po.Name,
				"transfer_id", receiptID,
				"error", err,
			)
		}
	}

	linked, err := s.items.FindItems(ctx, models.ItemFilter{Purchase: orderID})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Item, 0, len(linked))
	for _, it := range linked {
		updated, err := s.items.Recompute(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, updated)
	}

	var action wfmodels.ActionType
	switch po.State {
	case erp.PurchaseSent:
		action = wfmodels.ActionPOSent
	case erp.PurchasePurchase, erp.PurchaseDone:
		action = wfmodels.ActionPOConfirmed
	}
	if action != "" {
		s.record(ctx, wfmodels.Action{
			DocumentType: wfmodels.DocPurchaseOrder,
			DocumentRef:  po.Name,
			ResID:        uuid.UUID(po.ID),
			ActionType:   action,
			StateTo:      string(po.State),
			Partner:      po.Vendor,
		})
	}
	return out, nil
}

// ConsolidatePartnerRef rebuilds the vendor reference of a purchase order
// from its transfers. Tokens typed by hand (present in no transfer) come
// first, then the transfer references; each group sorted and unique.
func (s *Service) ConsolidatePartnerRef(ctx context.Context, orderID id.PurchaseOrderID) (string, error) {
	po, err := s.purchaseOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	transfers, err := s.erp.Stock().FindTransfers(ctx, erp.TransferFilter{Purchase: orderID})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to search transfers")
	}
	var refs []string
	for _, t := range transfers {
		refs = append(refs, t.PartnerRef)
	}
	fromTransfers := pstrings.Tokens(refs...)
	manual := pstrings.Without(pstrings.Tokens(po.PartnerRef), fromTransfers)
	slices.Sort(manual)
	slices.Sort(fromTransfers)
	ref := strings.Join(append(manual, fromTransfers...), " ")

	if ref == po.PartnerRef {
		return ref, nil
	}
	if err := s.erp.Purchase().SetPartnerRef(ctx, orderID, ref); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update purchase partner reference")
	}
	s.logger.InfoContext(ctx, "purchase partner reference consolidated",
		"purchase_order", po.Name,
		"partner_ref", ref,
	)
	return ref, nil
}
