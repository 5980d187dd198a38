package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

type purchasePort struct{ s *Simulator }

func (p purchasePort) CreateOrder(_ context.Context, spec erp.PurchaseSpec) (*erp.PurchaseOrder, error) {
	if len(spec.Lines) == 0 {
		return nil, fmt.Errorf("purchase order needs at least one line: %w", sentinel.ErrInvalidState)
	}
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order := &erp.PurchaseOrder{
		ID:        id.PurchaseOrderID(uuid.New()),
		Name:      s.nextName("PO"),
		Vendor:    spec.Vendor,
		State:     erp.PurchaseDraft,
		Origin:    spec.Origin,
		CreatedAt: s.now(),
	}
	for _, l := range spec.Lines {
		l.ID = id.PurchaseLineID(uuid.New())
		order.Lines = append(order.Lines, l)
	}
	s.purchases[order.ID] = order
	return clonePurchase(order), nil
}

func (p purchasePort) Order(_ context.Context, orderID id.PurchaseOrderID) (*erp.PurchaseOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	order, err := p.s.purchaseLocked(orderID)
	if err != nil {
		return nil, err
	}
	return clonePurchase(order), nil
}

func (p purchasePort) OrderByName(_ context.Context, name string) (*erp.PurchaseOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, order := range p.s.purchases {
		if order.Name == name {
			return clonePurchase(order), nil
		}
	}
	return nil, fmt.Errorf("purchase order %q: %w", name, sentinel.ErrNotFound)
}

// Confirm moves the order to purchase and creates an assigned receipt from
// the vendor into stock.
func (p purchasePort) Confirm(_ context.Context, orderID id.PurchaseOrderID) (*erp.PurchaseOrder, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := s.purchaseLocked(orderID)
	if err != nil {
		return nil, err
	}
	switch order.State {
	case erp.PurchasePurchase, erp.PurchaseDone:
		return clonePurchase(order), nil
	case erp.PurchaseCancel:
		return nil, fmt.Errorf("purchase order %s is cancelled: %w", order.Name, sentinel.ErrInvalidState)
	}
	order.State = erp.PurchasePurchase

	moves := make([]erp.Move, 0, len(order.Lines))
	for _, l := range order.Lines {
		moves = append(moves, erp.Move{Product: l.Product, Qty: l.Qty, PurchaseLine: l.ID})
	}
	receipt := s.createTransferLocked(erp.TransferSpec{
		Type:           erp.TransferIncoming,
		Origin:         order.Name,
		Partner:        order.Vendor,
		Purchase:       order.ID,
		SourceLocation: s.locations.Supplier,
		DestLocation:   s.locations.Stock,
		Moves:          moves,
	})
	receipt.State = erp.TransferAssigned
	order.ReceiptIDs = append(order.ReceiptIDs, receipt.ID)
	return clonePurchase(order), nil
}

func (p purchasePort) Send(_ context.Context, orderID id.PurchaseOrderID) (*erp.PurchaseOrder, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := s.purchaseLocked(orderID)
	if err != nil {
		return nil, err
	}
	if order.State == erp.PurchaseDraft {
		order.State = erp.PurchaseSent
	}
	return clonePurchase(order), nil
}

func (p purchasePort) SetPartnerRef(_ context.Context, orderID id.PurchaseOrderID, ref string) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, err := s.purchaseLocked(orderID)
	if err != nil {
		return err
	}
	order.PartnerRef = ref
	return nil
}

func (s *Simulator) purchaseLocked(orderID id.PurchaseOrderID) (*erp.PurchaseOrder, error) {
	order, ok := s.purchases[orderID]
	if !ok {
		return nil, fmt.Errorf("purchase order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return order, nil
}
