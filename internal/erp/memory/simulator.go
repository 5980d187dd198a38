// Package memory is a deterministic in-process simulator of the ERP ports.
// It backs the dev server, the service tests and the feature scenarios.
package memory

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftlist/internal/erp"
	id "giftlist/pkg/domain"
)

// Locations used when the simulator creates documents on its own.
type Locations struct {
	Stock    string
	Customer string
	Supplier string
}

// Simulator holds every ERP document behind one mutex.
type Simulator struct {
	mu sync.RWMutex

	locations Locations
	now       func() time.Time

	partners  map[id.PartnerID]*erp.Partner
	products  map[id.ProductID]*erp.Product
	sales     map[id.SaleOrderID]*erp.SaleOrder
	purchases map[id.PurchaseOrderID]*erp.PurchaseOrder
	transfers map[id.TransferID]*erp.Transfer
	posOrders map[id.PosOrderID]*erp.PosOrder

	// quants is product -> location -> on hand quantity.
	quants   map[id.ProductID]map[string]decimal.Decimal
	noRoute  map[id.ProductID]bool
	counters map[string]int
	// transferOrder keeps creation order so searches are deterministic.
	transferOrder []id.TransferID
}

// Option configures the Simulator.
type Option func(*Simulator)

// WithLocations overrides the default location names.
func WithLocations(l Locations) Option {
	return func(s *Simulator) {
		s.locations = l
	}
}

// WithClock sets the time source used for document timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// New creates an empty simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		locations: Locations{
			Stock:    "WH/Stock",
			Customer: "Partners/Customers",
			Supplier: "Partners/Vendors",
		},
		now:       time.Now,
		partners:  make(map[id.PartnerID]*erp.Partner),
		products:  make(map[id.ProductID]*erp.Product),
		sales:     make(map[id.SaleOrderID]*erp.SaleOrder),
		purchases: make(map[id.PurchaseOrderID]*erp.PurchaseOrder),
		transfers: make(map[id.TransferID]*erp.Transfer),
		posOrders: make(map[id.PosOrderID]*erp.PosOrder),
		quants:    make(map[id.ProductID]map[string]decimal.Decimal),
		noRoute:   make(map[id.ProductID]bool),
		counters:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Sales() erp.Sales       { return salesPort{s} }
func (s *Simulator) Stock() erp.Stock       { return stockPort{s} }
func (s *Simulator) Purchase() erp.Purchase { return purchasePort{s} }
func (s *Simulator) POS() erp.POS           { return posPort{s} }
func (s *Simulator) Catalog() erp.Catalog   { return catalogPort{s} }

// AddPartner registers a contact.
func (s *Simulator) AddPartner(name string) *erp.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &erp.Partner{ID: id.PartnerID(uuid.New()), Name: name}
	s.partners[p.ID] = p
	return clonePartner(p)
}

// AddProduct registers a product. Vendors are kept in preference order.
func (s *Simulator) AddProduct(name string, listPrice, standardPrice decimal.Decimal, vendors ...erp.VendorPrice) *erp.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &erp.Product{
		ID:            id.ProductID(uuid.New()),
		Name:          name,
		ListPrice:     listPrice,
		StandardPrice: standardPrice,
		Vendors:       slices.Clone(vendors),
	}
	s.products[p.ID] = p
	return cloneProduct(p)
}

// SetQty sets the on hand quantity of a product at a location.
func (s *Simulator) SetQty(product id.ProductID, location string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setQtyLocked(product, location, qty)
}

// Qty returns the on hand quantity of a product at a location.
func (s *Simulator) Qty(product id.ProductID, location string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qtyLocked(product, location)
}

// FailRoute makes ConfirmOrder fail with erp.ErrNoRoute for orders selling the product.
func (s *Simulator) FailRoute(product id.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noRoute[product] = true
}

// CreateDocumentTransfer creates a transfer the way an external subsystem
// would, without notifying the core. Used to exercise reconciliation.
func (s *Simulator) CreateDocumentTransfer(spec erp.TransferSpec) *erp.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTransfer(s.createTransferLocked(spec))
}

func (s *Simulator) nextName(prefix string) string {
	s.counters[prefix]++
	return fmt.Sprintf("%s%05d", prefix, s.counters[prefix])
}

func (s *Simulator) qtyLocked(product id.ProductID, location string) decimal.Decimal {
	if byLoc, ok := s.quants[product]; ok {
		return byLoc[location]
	}
	return decimal.Zero
}

func (s *Simulator) setQtyLocked(product id.ProductID, location string, qty decimal.Decimal) {
	byLoc, ok := s.quants[product]
	if !ok {
		byLoc = make(map[string]decimal.Decimal)
		s.quants[product] = byLoc
	}
	byLoc[location] = qty
}

// reservedLocked sums quantities held by assigned, not yet done, transfers
// leaving the location.
func (s *Simulator) reservedLocked(product id.ProductID, location string) decimal.Decimal {
	reserved := decimal.Zero
	for _, t := range s.transfers {
		if t.State != erp.TransferAssigned || t.SourceLocation != location {
			continue
		}
		for _, m := range t.Moves {
			if m.Product == product {
				reserved = reserved.Add(m.Qty)
			}
		}
	}
	return reserved
}

func (s *Simulator) createTransferLocked(spec erp.TransferSpec) *erp.Transfer {
	prefix := map[erp.TransferType]string{
		erp.TransferIncoming: "WH/IN/",
		erp.TransferInternal: "WH/INT/",
		erp.TransferOutgoing: "WH/OUT/",
	}[spec.Type]
	t := &erp.Transfer{
		ID:             id.TransferID(uuid.New()),
		Name:           s.nextName(prefix),
		Type:           spec.Type,
		State:          erp.TransferDraft,
		Origin:         spec.Origin,
		Partner:        spec.Partner,
		Sale:           spec.Sale,
		Purchase:       spec.Purchase,
		SourceLocation: spec.SourceLocation,
		DestLocation:   spec.DestLocation,
		PartnerRef:     spec.PartnerRef,
		CreatedAt:      s.now(),
	}
	for _, m := range spec.Moves {
		m.ID = id.MoveID(uuid.New())
		if m.Partner.IsNil() {
			m.Partner = spec.Partner
		}
		t.Moves = append(t.Moves, m)
	}
	s.transfers[t.ID] = t
	s.transferOrder = append(s.transferOrder, t.ID)
	return t
}
