package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
)

var hundred = decimal.NewFromInt(100)

// CancelReason explains why an item left the list.
type CancelReason string

const (
	CancelOpinion     CancelReason = "opinion"
	CancelDuplicate   CancelReason = "duplicate"
	CancelUnavailable CancelReason = "unavailable"
	CancelPrice       CancelReason = "price"
	CancelReplaced    CancelReason = "replaced"
	CancelError       CancelReason = "error"
	CancelOther       CancelReason = "other"
	// CancelReturned is set by the return flow, never chosen by an operator.
	CancelReturned CancelReason = "returned"
)

func (r CancelReason) IsValid() bool {
	switch r {
	case CancelOpinion, CancelDuplicate, CancelUnavailable, CancelPrice,
		CancelReplaced, CancelError, CancelOther, CancelReturned:
		return true
	}
	return false
}

// DocumentRefs are the single-valued links from an item to documents owned
// by other subsystems. Zero IDs mean "not linked".
type DocumentRefs struct {
	SaleOrder    id.SaleOrderID     `json:"sale_order_id"`
	SaleLine     id.SaleLineID      `json:"sale_line_id"`
	Purchase     id.PurchaseOrderID `json:"purchase_order_id"`
	Receipt      id.TransferID      `json:"receipt_id"`
	Delivery     id.TransferID      `json:"delivery_id"`
	Holding      id.TransferID      `json:"holding_id"`
	DownPayment  id.PosOrderID      `json:"down_payment_id"`
	FinalPayment id.PosOrderID      `json:"final_payment_id"`
}

// PaymentOrders returns the register orders linked to the item, down payment first.
func (r DocumentRefs) PaymentOrders() []id.PosOrderID {
	var out []id.PosOrderID
	if !r.DownPayment.IsNil() {
		out = append(out, r.DownPayment)
	}
	if !r.FinalPayment.IsNil() && r.FinalPayment != r.DownPayment {
		out = append(out, r.FinalPayment)
	}
	return out
}

// Item is a desired product line on a gift list.
//
// Invariants:
//   - ListID and ProductID are set at construction and never change
//   - PriceUnit is captured at add time and frozen
//   - Discount is within [0, 100]
//   - State is derived from Refs and IsCancelled only
//   - CancelReason is set iff IsCancelled; CancelOther requires CancelDetail
type Item struct {
	ID           id.ItemID       `json:"id"`
	ListID       id.ListID       `json:"list_id"`
	ProductID    id.ProductID    `json:"product_id"`
	ProductName  string          `json:"product_name"`
	PriceUnit    decimal.Decimal `json:"price_unit"`
	Discount     decimal.Decimal `json:"discount"`
	Sequence     int             `json:"sequence"`
	State        State           `json:"state"`
	IsCancelled  bool            `json:"is_cancelled"`
	CancelReason CancelReason    `json:"cancel_reason,omitempty"`
	CancelDetail string          `json:"cancel_detail,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	PaidBy       id.PartnerID    `json:"paid_by"`
	Refs         DocumentRefs    `json:"refs"`
	RefundedAt   *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewItem(
	itemID id.ItemID,
	listID id.ListID,
	productID id.ProductID,
	productName string,
	priceUnit decimal.Decimal,
	discount decimal.Decimal,
	sequence int,
	now time.Time,
) (*Item, error) {
	if listID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item requires a list")
	}
	if productID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item requires a product")
	}
	if priceUnit.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "price cannot be negative")
	}
	if discount.IsNegative() || discount.GreaterThan(hundred) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "discount must be between 0 and 100")
	}
	return &Item{
		ID:          itemID,
		ListID:      listID,
		ProductID:   productID,
		ProductName: productName,
		PriceUnit:   priceUnit,
		Discount:    discount,
		Sequence:    sequence,
		State:       StateWished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// PriceFinal is the unit price after discount.
func (i *Item) PriceFinal() decimal.Decimal {
	return i.PriceUnit.Mul(decimal.NewFromInt(1).Sub(i.Discount.Div(hundred)))
}

// IsActive is false once the item is delivered or cancelled.
func (i *Item) IsActive() bool {
	return !i.State.IsTerminal()
}

// CanCancel returns nil when the item may still be cancelled.
func (i *Item) CanCancel() error {
	if i.State == StatePaid || i.State == StateDelivered {
		return dErrors.Newf(dErrors.CodeFailedPrecondition, "Cannot cancel %s item.", i.State)
	}
	return nil
}

// ApplyCancellation flags the item. Must only be called after CanCancel.
func (i *Item) ApplyCancellation(reason CancelReason, detail string, now time.Time) {
	i.IsCancelled = true
	i.CancelReason = reason
	i.CancelDetail = detail
	i.CancelledAt = &now
	i.UpdatedAt = now
}

// CanDelete returns nil only for items that never left the initial state, or
// that were cancelled.
func (i *Item) CanDelete() error {
	if i.State != StateWished && i.State != StateCancelled {
		return dErrors.Newf(dErrors.CodeFailedPrecondition, "Cannot delete %s item. Cancel it first.", i.State)
	}
	return nil
}

// CanReturn returns nil for paid items and items whose delivery is not yet done.
func (i *Item) CanReturn() error {
	if i.State != StatePaid && i.State != StateOutCreated {
		return dErrors.Newf(dErrors.CodeFailedPrecondition, "Cannot return %s item.", i.State)
	}
	return nil
}

// ValidateCancelReason checks an operator-chosen reason.
func ValidateCancelReason(reason CancelReason, detail string) error {
	if reason == CancelReturned || !reason.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid cancel reason %q", reason)
	}
	if reason == CancelOther && strings.TrimSpace(detail) == "" {
		return dErrors.New(dErrors.CodeValidation, "Please provide details for 'Other' reason.")
	}
	return nil
}

// EditableFields are the only fields callers may write directly. Document
// links and cancellation go through the orchestrators.
var EditableFields = []string{"sequence", "paid_by"}

// CheckEditable rejects writes to any field outside the whitelist.
func CheckEditable(fields []string) error {
	var blocked []string
	for _, f := range fields {
		if !slices.Contains(EditableFields, f) {
			blocked = append(blocked, f)
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	slices.Sort(blocked)
	return dErrors.New(dErrors.CodeFailedPrecondition,
		fmt.Sprintf("Cannot edit item fields: %s. Cancel and create new.", strings.Join(blocked, ", ")))
}
