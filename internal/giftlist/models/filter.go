package models

import (
	"slices"

	id "giftlist/pkg/domain"
)

// ItemFilter narrows item searches. Zero fields are ignored; set fields are ANDed.
type ItemFilter struct {
	ListIDs      []id.ListID
	Product      id.ProductID
	SaleOrder    id.SaleOrderID
	SaleLine     id.SaleLineID
	Purchase     id.PurchaseOrderID
	Receipt      id.TransferID
	Delivery     id.TransferID
	Holding      id.TransferID
	PaymentOrder id.PosOrderID

	DeliveryUnset    bool
	SaleOrderSet     bool
	ExcludeCancelled bool
}

// Matches applies the filter to one item. Stores that cannot push a filter
// down use this to stay consistent with the SQL implementation.
func (f ItemFilter) Matches(it *Item) bool {
	if len(f.ListIDs) > 0 && !slices.Contains(f.ListIDs, it.ListID) {
		return false
	}
	if !f.Product.IsNil() && it.ProductID != f.Product {
		return false
	}
	if !f.SaleOrder.IsNil() && it.Refs.SaleOrder != f.SaleOrder {
		return false
	}
	if !f.SaleLine.IsNil() && it.Refs.SaleLine != f.SaleLine {
		return false
	}
	if !f.Purchase.IsNil() && it.Refs.Purchase != f.Purchase {
		return false
	}
	if !f.Receipt.IsNil() && it.Refs.Receipt != f.Receipt {
		return false
	}
	if !f.Delivery.IsNil() && it.Refs.Delivery != f.Delivery {
		return false
	}
	if !f.Holding.IsNil() && it.Refs.Holding != f.Holding {
		return false
	}
	if !f.PaymentOrder.IsNil() && it.Refs.DownPayment != f.PaymentOrder && it.Refs.FinalPayment != f.PaymentOrder {
		return false
	}
	if f.DeliveryUnset && !it.Refs.Delivery.IsNil() {
		return false
	}
	if f.SaleOrderSet && it.Refs.SaleOrder.IsNil() {
		return false
	}
	if f.ExcludeCancelled && it.IsCancelled {
		return false
	}
	return true
}

// ListFilter narrows list searches.
type ListFilter struct {
	Beneficiary id.PartnerID
	Wallet      id.WalletID
	Name        string
	States      []ListState
}

func (f ListFilter) Matches(l *List) bool {
	if !f.Beneficiary.IsNil() && l.Beneficiary != f.Beneficiary {
		return false
	}
	if !f.Wallet.IsNil() && l.WalletID != f.Wallet {
		return false
	}
	if f.Name != "" && l.Name != f.Name {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, l.State) {
		return false
	}
	return true
}
