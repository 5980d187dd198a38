package erp

import (
	"time"

	"github.com/shopspring/decimal"

	id "giftlist/pkg/domain"
)

// SaleState mirrors the sales subsystem order states.
type SaleState string

const (
	SaleDraft  SaleState = "draft"
	SaleSale   SaleState = "sale"
	SaleCancel SaleState = "cancel"
)

// PurchaseState mirrors the purchase subsystem order states.
type PurchaseState string

const (
	PurchaseDraft    PurchaseState = "draft"
	PurchaseSent     PurchaseState = "sent"
	PurchasePurchase PurchaseState = "purchase"
	PurchaseDone     PurchaseState = "done"
	PurchaseCancel   PurchaseState = "cancel"
)

// TransferType distinguishes receipts, internal moves and deliveries.
type TransferType string

const (
	TransferIncoming TransferType = "incoming"
	TransferInternal TransferType = "internal"
	TransferOutgoing TransferType = "outgoing"
)

// TransferState mirrors the stock subsystem picking states.
type TransferState string

const (
	TransferDraft     TransferState = "draft"
	TransferWaiting   TransferState = "waiting"
	TransferConfirmed TransferState = "confirmed"
	TransferAssigned  TransferState = "assigned"
	TransferDone      TransferState = "done"
	TransferCancel    TransferState = "cancel"
)

// PosState mirrors the register transaction states.
type PosState string

const (
	PosDraft    PosState = "draft"
	PosPaid     PosState = "paid"
	PosDone     PosState = "done"
	PosInvoiced PosState = "invoiced"
	PosCancel   PosState = "cancel"
)

// IsPaid reports whether the register considers the order settled.
func (s PosState) IsPaid() bool {
	return s == PosPaid || s == PosDone || s == PosInvoiced
}

type Partner struct {
	ID   id.PartnerID
	Name string
}

// VendorPrice is a supplier quote for a product, in preference order.
type VendorPrice struct {
	Vendor id.PartnerID
	Price  decimal.Decimal
}

type Product struct {
	ID            id.ProductID
	Name          string
	ListPrice     decimal.Decimal
	StandardPrice decimal.Decimal
	Vendors       []VendorPrice
}

type SaleLine struct {
	ID        id.SaleLineID
	Product   id.ProductID
	Qty       decimal.Decimal
	PriceUnit decimal.Decimal
	Discount  decimal.Decimal
}

// Subtotal is the discounted line amount.
func (l SaleLine) Subtotal() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(l.Discount.Div(decimal.NewFromInt(100)))
	return l.PriceUnit.Mul(l.Qty).Mul(factor)
}

type SaleOrder struct {
	ID          id.SaleOrderID
	Name        string
	Partner     id.PartnerID
	State       SaleState
	Origin      string
	Lines       []SaleLine
	DeliveryIDs []id.TransferID
	CreatedAt   time.Time
}

// AmountTotal sums the line subtotals.
func (o SaleOrder) AmountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// HasLine reports whether the order owns the given line.
func (o SaleOrder) HasLine(lineID id.SaleLineID) bool {
	for _, l := range o.Lines {
		if l.ID == lineID {
			return true
		}
	}
	return false
}

type PurchaseLine struct {
	ID        id.PurchaseLineID
	Product   id.ProductID
	Qty       decimal.Decimal
	PriceUnit decimal.Decimal
}

type PurchaseOrder struct {
	ID         id.PurchaseOrderID
	Name       string
	Vendor     id.PartnerID
	State      PurchaseState
	Origin     string
	PartnerRef string
	Lines      []PurchaseLine
	ReceiptIDs []id.TransferID
	CreatedAt  time.Time
}

// Move is a stock movement line inside a transfer.
type Move struct {
	ID           id.MoveID
	Product      id.ProductID
	Qty          decimal.Decimal
	SaleLine     id.SaleLineID
	PurchaseLine id.PurchaseLineID
	Partner      id.PartnerID
	// OrderHint is the sale order name the stock rule copied onto the move.
	OrderHint string
}

type Transfer struct {
	ID             id.TransferID
	Name           string
	Type           TransferType
	State          TransferState
	Origin         string
	Partner        id.PartnerID
	Sale           id.SaleOrderID
	Purchase       id.PurchaseOrderID
	SourceLocation string
	DestLocation   string
	PartnerRef     string
	Moves          []Move
	CreatedAt      time.Time
	DateDone       time.Time
}

// HasProduct reports whether any move carries the product.
func (t Transfer) HasProduct(product id.ProductID) bool {
	for _, m := range t.Moves {
		if m.Product == product {
			return true
		}
	}
	return false
}

// Products lists the distinct products moved, in move order.
func (t Transfer) Products() []id.ProductID {
	seen := make(map[id.ProductID]struct{}, len(t.Moves))
	out := make([]id.ProductID, 0, len(t.Moves))
	for _, m := range t.Moves {
		if _, ok := seen[m.Product]; ok {
			continue
		}
		seen[m.Product] = struct{}{}
		out = append(out, m.Product)
	}
	return out
}

// PosLine is a register line. Down-payment lines reference the sale order they
// settle; wallet-debit lines are the negative settlement offset.
type PosLine struct {
	ID            id.PosLineID
	Product       id.ProductID
	ProductName   string
	Qty           decimal.Decimal
	PriceUnit     decimal.Decimal
	Subtotal      decimal.Decimal
	SaleOrigin    id.SaleOrderID
	SaleLine      id.SaleLineID
	IsDownPayment bool
	IsWalletDebit bool
}

// Payment is a payment instrument applied to a register order.
type Payment struct {
	Method string
	Amount decimal.Decimal
}

type PosOrder struct {
	ID           id.PosOrderID
	Name         string
	Partner      id.PartnerID
	PaidBy       id.PartnerID
	State        PosState
	Lines        []PosLine
	Payments     []Payment
	AmountTotal  decimal.Decimal
	AmountPaid   decimal.Decimal
	SaleOrderIDs []id.SaleOrderID
	IsGiftTopup  bool
	TopupID      id.PosOrderID
	SettlementID id.PosOrderID
	ToInvoice    bool
	CreatedAt    time.Time
}

// PaymentsTotal sums the payment instruments.
func (o PosOrder) PaymentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// LinesTotal sums the line subtotals.
func (o PosOrder) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// TransferFilter narrows FindTransfers. Zero fields are ignored.
type TransferFilter struct {
	Type     TransferType
	Sale     id.SaleOrderID
	Purchase id.PurchaseOrderID
	Origin   string
	Partner  id.PartnerID
	Product  id.ProductID
	// ExcludeStates drops transfers in any of these states.
	ExcludeStates []TransferState
}

// TransferSpec describes a transfer to create.
type TransferSpec struct {
	Type           TransferType
	Origin         string
	Partner        id.PartnerID
	Sale           id.SaleOrderID
	Purchase       id.PurchaseOrderID
	SourceLocation string
	DestLocation   string
	// PartnerRef is the vendor's own document reference, e.g. a delivery note number.
	PartnerRef     string
	Moves          []Move
}

// SaleSpec describes a sale order to create.
type SaleSpec struct {
	Partner id.PartnerID
	Origin  string
	Lines   []SaleLine
}

// PurchaseSpec describes a purchase order to create.
type PurchaseSpec struct {
	Vendor id.PartnerID
	Origin string
	Lines  []PurchaseLine
}
