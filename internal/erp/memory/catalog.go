package memory

import (
	"context"
	"fmt"
	"slices"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

type catalogPort struct{ s *Simulator }

func (p catalogPort) Product(_ context.Context, productID id.ProductID) (*erp.Product, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	product, ok := p.s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, sentinel.ErrNotFound)
	}
	return cloneProduct(product), nil
}

func (p catalogPort) Partner(_ context.Context, partnerID id.PartnerID) (*erp.Partner, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	partner, ok := p.s.partners[partnerID]
	if !ok {
		return nil, fmt.Errorf("partner %s: %w", partnerID, sentinel.ErrNotFound)
	}
	return clonePartner(partner), nil
}

func clonePartner(p *erp.Partner) *erp.Partner {
	c := *p
	return &c
}

func cloneProduct(p *erp.Product) *erp.Product {
	c := *p
	c.Vendors = slices.Clone(p.Vendors)
	return &c
}

func cloneSale(o *erp.SaleOrder) *erp.SaleOrder {
	c := *o
	c.Lines = slices.Clone(o.Lines)
	c.DeliveryIDs = slices.Clone(o.DeliveryIDs)
	return &c
}

func clonePurchase(o *erp.PurchaseOrder) *erp.PurchaseOrder {
	c := *o
	c.Lines = slices.Clone(o.Lines)
	c.ReceiptIDs = slices.Clone(o.ReceiptIDs)
	return &c
}

func cloneTransfer(t *erp.Transfer) *erp.Transfer {
	c := *t
	c.Moves = slices.Clone(t.Moves)
	return &c
}

func clonePos(o *erp.PosOrder) *erp.PosOrder {
	c := *o
	c.Lines = slices.Clone(o.Lines)
	c.Payments = slices.Clone(o.Payments)
	c.SaleOrderIDs = slices.Clone(o.SaleOrderIDs)
	return &c
}
