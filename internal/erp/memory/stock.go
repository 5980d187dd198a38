package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

type stockPort struct{ s *Simulator }

// FreeQty is on hand quantity minus what assigned transfers already hold.
func (p stockPort) FreeQty(_ context.Context, product id.ProductID, location string) (decimal.Decimal, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	free := s.qtyLocked(product, location).Sub(s.reservedLocked(product, location))
	if free.IsNegative() {
		return decimal.Zero, nil
	}
	return free, nil
}

func (p stockPort) CreateTransfer(_ context.Context, spec erp.TransferSpec) (*erp.Transfer, error) {
	switch spec.Type {
	case erp.TransferIncoming, erp.TransferInternal, erp.TransferOutgoing:
	default:
		return nil, fmt.Errorf("unknown transfer type %q: %w", spec.Type, sentinel.ErrInvalidState)
	}
	if len(spec.Moves) == 0 {
		return nil, fmt.Errorf("transfer needs at least one move: %w", sentinel.ErrInvalidState)
	}
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return cloneTransfer(p.s.createTransferLocked(spec)), nil
}

func (p stockPort) Confirm(_ context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.transferLocked(transferID)
	if err != nil {
		return nil, err
	}
	switch t.State {
	case erp.TransferDraft:
		t.State = erp.TransferConfirmed
	case erp.TransferDone, erp.TransferCancel:
		return nil, fmt.Errorf("transfer %s is %s: %w", t.Name, t.State, sentinel.ErrInvalidState)
	}
	return cloneTransfer(t), nil
}

// Assign reserves the goods. Receipts are always available; other transfers
// wait until the source location holds enough free quantity.
func (p stockPort) Assign(_ context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.transferLocked(transferID)
	if err != nil {
		return nil, err
	}
	switch t.State {
	case erp.TransferAssigned:
		return cloneTransfer(t), nil
	case erp.TransferConfirmed, erp.TransferWaiting:
	default:
		return nil, fmt.Errorf("transfer %s is %s: %w", t.Name, t.State, sentinel.ErrInvalidState)
	}
	if t.Type == erp.TransferIncoming || s.availableLocked(t) {
		t.State = erp.TransferAssigned
	} else {
		t.State = erp.TransferWaiting
	}
	return cloneTransfer(t), nil
}

func (s *Simulator) availableLocked(t *erp.Transfer) bool {
	for _, m := range t.Moves {
		free := s.qtyLocked(m.Product, t.SourceLocation).Sub(s.reservedLocked(m.Product, t.SourceLocation))
		if free.LessThan(m.Qty) {
			return false
		}
	}
	return true
}

// Validate marks the transfer done and moves the quantities. Validating a
// done transfer is a no-op.
func (p stockPort) Validate(_ context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.transferLocked(transferID)
	if err != nil {
		return nil, err
	}
	switch t.State {
	case erp.TransferDone:
		return cloneTransfer(t), nil
	case erp.TransferCancel:
		return nil, fmt.Errorf("transfer %s is cancelled: %w", t.Name, sentinel.ErrInvalidState)
	}
	t.State = erp.TransferDone
	t.DateDone = s.now()
	for _, m := range t.Moves {
		s.setQtyLocked(m.Product, t.SourceLocation, s.qtyLocked(m.Product, t.SourceLocation).Sub(m.Qty))
		s.setQtyLocked(m.Product, t.DestLocation, s.qtyLocked(m.Product, t.DestLocation).Add(m.Qty))
	}
	return cloneTransfer(t), nil
}

func (p stockPort) Transfer(_ context.Context, transferID id.TransferID) (*erp.Transfer, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	t, err := p.s.transferLocked(transferID)
	if err != nil {
		return nil, err
	}
	return cloneTransfer(t), nil
}

func (p stockPort) TransferByName(_ context.Context, name string) (*erp.Transfer, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()
	for _, tid := range p.s.transferOrder {
		if t := p.s.transfers[tid]; t.Name == name {
			return cloneTransfer(t), nil
		}
	}
	return nil, fmt.Errorf("transfer %q: %w", name, sentinel.ErrNotFound)
}

func (p stockPort) SetPartner(_ context.Context, transferID id.TransferID, partner id.PartnerID) error {
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.transferLocked(transferID)
	if err != nil {
		return err
	}
	t.Partner = partner
	for i := range t.Moves {
		t.Moves[i].Partner = partner
	}
	return nil
}

func (p stockPort) FindTransfers(_ context.Context, f erp.TransferFilter) ([]*erp.Transfer, error) {
	s := p.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*erp.Transfer
	for _, tid := range s.transferOrder {
		t := s.transfers[tid]
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if !f.Sale.IsNil() && t.Sale != f.Sale {
			continue
		}
		if !f.Purchase.IsNil() && t.Purchase != f.Purchase {
			continue
		}
		if f.Origin != "" && t.Origin != f.Origin {
			continue
		}
		if !f.Partner.IsNil() && t.Partner != f.Partner {
			continue
		}
		if !f.Product.IsNil() && !t.HasProduct(f.Product) {
			continue
		}
		if slices.Contains(f.ExcludeStates, t.State) {
			continue
		}
		out = append(out, cloneTransfer(t))
	}
	return out, nil
}

func (s *Simulator) transferLocked(transferID id.TransferID) (*erp.Transfer, error) {
	t, ok := s.transfers[transferID]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
	}
	return t, nil
}
