package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

type salesPort struct{ s *Simulator }

func (p salesPort) CreateOrder(_ context.Context, spec erp.SaleSpec) (*erp.SaleOrder, error) {
	if len(spec.Lines) == 0 {
		return nil, fmt.Errorf("sale order needs at least one line: %w", sentinel.ErrInvalidState)
	}
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()

	order := &erp.SaleOrder{
		ID:        id.SaleOrderID(uuid.New()),
		Name:      s.nextName("S"),
		Partner:   spec.Partner,
		State:     erp.SaleDraft,
		Origin:    spec.Origin,
		CreatedAt: s.now(),
	}
	for _, l := range spec.Lines {
		l.ID = id.SaleLineID(uuid.New())
		order.Lines = append(order.Lines, l)
	}
	s.sales[order.ID] = order
	return cloneSale(order), nil
}

// ConfirmOrder confirms the order and creates the outgoing delivery the
// stock rules would create. The delivery carries no partner; stock rules do
// not know the beneficiary.
func (p salesPort) ConfirmOrder(_ context.Context, orderID id.SaleOrderID) (*erp.SaleOrder, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.sales[orderID]
	if !ok {
		return nil, fmt.Errorf("sale order %s: %w", orderID, sentinel.ErrNotFound)
	}
	if order.State == erp.SaleSale {
		return cloneSale(order), nil
	}
	if order.State != erp.SaleDraft {
		return nil, fmt.Errorf("sale order %s is %s: %w", order.Name, order.State, sentinel.ErrInvalidState)
	}
	for _, l := range order.Lines {
		if s.noRoute[l.Product] {
			return nil, erp.ErrNoRoute
		}
	}
	order.State = erp.SaleSale

	moves := make([]erp.Move, 0, len(order.Lines))
	for _, l := range order.Lines {
		moves = append(moves, erp.Move{
			Product:   l.Product,
			Qty:       l.Qty,
			SaleLine:  l.ID,
			OrderHint: order.Name,
		})
	}
	delivery := s.createTransferLocked(erp.TransferSpec{
		Type:           erp.TransferOutgoing,
		Origin:         order.Name,
		Sale:           order.ID,
		SourceLocation: s.locations.Stock,
		DestLocation:   s.locations.Customer,
		Moves:          moves,
	})
	delivery.State = erp.TransferWaiting
	order.DeliveryIDs = append(order.DeliveryIDs, delivery.ID)
	return cloneSale(order), nil
}

func (p salesPort) Order(_ context.Context, orderID id.SaleOrderID) (*erp.SaleOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	order, ok := p.s.sales[orderID]
	if !ok {
		return nil, fmt.Errorf("sale order %s: %w", orderID, sentinel.ErrNotFound)
	}
	return cloneSale(order), nil
}

func (p salesPort) OrderByName(_ context.Context, name string) (*erp.SaleOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, order := range p.s.sales {
		if order.Name == name {
			return cloneSale(order), nil
		}
	}
	return nil, fmt.Errorf("sale order %q: %w", name, sentinel.ErrNotFound)
}

func (p salesPort) OrderForLine(_ context.Context, lineID id.SaleLineID) (*erp.SaleOrder, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, order := range p.s.sales {
		if order.HasLine(lineID) {
			return cloneSale(order), nil
		}
	}
	return nil, fmt.Errorf("sale line %s: %w", lineID, sentinel.ErrNotFound)
}
