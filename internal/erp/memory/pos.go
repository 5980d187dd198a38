package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

type posPort struct{ s *Simulator }

func (p posPort) Order(_ context.Context, orderID id.PosOrderID) (*erp.PosOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	order, ok := p.s.posOrders[orderID]
	if !ok {
		return nil, fmt.Errorf("pos order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return clonePos(order), nil
}

// CreateOrder stores a new register order. Line and order IDs are assigned
// here; a zero AmountTotal is filled from the lines.
func (p posPort) CreateOrder(_ context.Context, order erp.PosOrder) (*erp.PosOrder, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	created := clonePos(&order)
	created.ID = id.PosOrderID(uuid.New())
	created.Name = s.nextName("Order ")
	if created.State == "" {
		created.State = erp.PosDraft
	}
	for i := range created.Lines {
		if created.Lines[i].ID.IsNil() {
			created.Lines[i].ID = id.PosLineID(uuid.New())
		}
	}
	if created.AmountTotal.IsZero() {
		created.AmountTotal = created.LinesTotal()
	}
	created.CreatedAt = s.now()
	s.posOrders[created.ID] = created
	return clonePos(created), nil
}

func (p posPort) UpdateOrder(_ context.Context, order *erp.PosOrder) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posOrders[order.ID]; !ok {
		return fmt.Errorf("pos order %s: %w", order.ID, sentinel.ErrNotFound)
	}
	updated := clonePos(order)
	for i := range updated.Lines {
		if updated.Lines[i].ID.IsNil() {
			updated.Lines[i].ID = id.PosLineID(uuid.New())
		}
	}
	s.posOrders[order.ID] = updated
	return nil
}

func (p posPort) MarkPaid(_ context.Context, orderID id.PosOrderID) (*erp.PosOrder, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.posOrders[orderID]
	if !ok {
		return nil, fmt.Errorf("pos order %s: %w", orderID, sentinel.ErrNotFound)
	}
	if order.State == erp.PosCancel {
		return nil, fmt.Errorf("pos order %s is cancelled: %w", order.Name, sentinel.ErrInvalidState)
	}
	if !order.State.IsPaid() {
		order.State = erp.PosPaid
		order.AmountPaid = order.PaymentsTotal()
	}
	return clonePos(order), nil
}

func (p posPort) PaidOrdersForSale(_ context.Context, saleID id.SaleOrderID) ([]*erp.PosOrder, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale := s.sales[saleID]
	var out []*erp.PosOrder
	for _, order := range s.posOrders {
		if !order.State.IsPaid() {
			continue
		}
		if linksSale(order, saleID, sale) {
			out = append(out, clonePos(order))
		}
	}
	slices.SortFunc(out, func(a, b *erp.PosOrder) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func linksSale(order *erp.PosOrder, saleID id.SaleOrderID, sale *erp.SaleOrder) bool {
	if slices.Contains(order.SaleOrderIDs, saleID) {
		return true
	}
	for _, l := range order.Lines {
		if l.SaleOrigin == saleID {
			return true
		}
		if sale != nil && !l.SaleLine.IsNil() && sale.HasLine(l.SaleLine) {
			return true
		}
	}
	return false
}
