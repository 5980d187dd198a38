// Package erp defines the ports through which the gift list core consumes the
// sales, stock, purchase, register and catalog subsystems. The core never
// owns these documents; it reads their state and asks the owning subsystem
// to create or advance them.
package erp

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	id "giftlist/pkg/domain"
)

// ErrNoRoute is returned by ConfirmOrder when no delivery route can serve a line.
var ErrNoRoute = errors.New("no delivery route configured")

type Sales interface {
	CreateOrder(ctx context.Context, spec SaleSpec) (*SaleOrder, error)
	// ConfirmOrder moves the order to sale and creates its outgoing delivery.
	ConfirmOrder(ctx context.Context, orderID id.SaleOrderID) (*SaleOrder, error)
	Order(ctx context.Context, orderID id.SaleOrderID) (*SaleOrder, error)
	OrderByName(ctx context.Context, name string) (*SaleOrder, error)
	OrderForLine(ctx context.Context, lineID id.SaleLineID) (*SaleOrder, error)
}

type Stock interface {
	FreeQty(ctx context.Context, product id.ProductID, location string) (decimal.Decimal, error)
	CreateTransfer(ctx context.Context, spec TransferSpec) (*Transfer, error)
	Confirm(ctx context.Context, transferID id.TransferID) (*Transfer, error)
	Assign(ctx context.Context, transferID id.TransferID) (*Transfer, error)
	Validate(ctx context.Context, transferID id.TransferID) (*Transfer, error)
	Transfer(ctx context.Context, transferID id.TransferID) (*Transfer, error)
	TransferByName(ctx context.Context, name string) (*Transfer, error)
	// SetPartner sets the partner on the transfer and every move.
	SetPartner(ctx context.Context, transferID id.TransferID, partner id.PartnerID) error
	FindTransfers(ctx context.Context, filter TransferFilter) ([]*Transfer, error)
}

type Purchase interface {
	CreateOrder(ctx context.Context, spec PurchaseSpec) (*PurchaseOrder, error)
	Order(ctx context.Context, orderID id.PurchaseOrderID) (*PurchaseOrder, error)
	OrderByName(ctx context.Context, name string) (*PurchaseOrder, error)
	// Confirm moves the order to purchase and creates its incoming receipt.
	Confirm(ctx context.Context, orderID id.PurchaseOrderID) (*PurchaseOrder, error)
	Send(ctx context.Context, orderID id.PurchaseOrderID) (*PurchaseOrder, error)
	SetPartnerRef(ctx context.Context, orderID id.PurchaseOrderID, ref string) error
}

type POS interface {
	Order(ctx context.Context, orderID id.PosOrderID) (*PosOrder, error)
	CreateOrder(ctx context.Context, order PosOrder) (*PosOrder, error)
	UpdateOrder(ctx context.Context, order *PosOrder) error
	MarkPaid(ctx context.Context, orderID id.PosOrderID) (*PosOrder, error)
	// PaidOrdersForSale returns paid orders linked to the sale order by ID,
	// line origin or sale line.
	PaidOrdersForSale(ctx context.Context, saleID id.SaleOrderID) ([]*PosOrder, error)
}

type Catalog interface {
	Product(ctx context.Context, productID id.ProductID) (*Product, error)
	Partner(ctx context.Context, partnerID id.PartnerID) (*Partner, error)
}

// Adapter bundles every port. The memory simulator implements all of them.
type Adapter interface {
	Sales() Sales
	Stock() Stock
	Purchase() Purchase
	POS() POS
	Catalog() Catalog
}
