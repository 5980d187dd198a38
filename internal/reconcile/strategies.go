package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/sentinel"
)

var (
	saleNamePattern     = regexp.MustCompile(`(?i)S[O0]*(\d+)`)
	purchaseNamePattern = regexp.MustCompile(`(?i)PO0*(\d+)`)
)

// normalizeName rewrites a loosely typed reference ("SO12", "s0012") into
// the canonical document name ("S00012").
func normalizeName(pattern *regexp.Regexp, prefix, origin string) (string, bool) {
	m := pattern.FindStringSubmatch(origin)
	if m == nil {
		return "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s%05d", prefix, n), true
}

func first(items []*models.Item) (id.ItemID, bool) {
	if len(items) == 0 {
		return id.ItemID{}, false
	}
	return items[0].ID, true
}

// firstMoving returns the first item whose product the transfer moves.
func firstMoving(items []*models.Item, t *erp.Transfer) (id.ItemID, bool) {
	for _, it := range items {
		if t.HasProduct(it.ProductID) {
			return it.ID, true
		}
	}
	return id.ItemID{}, false
}

func (s *Service) deliveryStrategies() []Strategy[*erp.Transfer] {
	return []Strategy[*erp.Transfer]{
		{Name: "sale_line", Match: s.deliveryBySaleLine},
		{Name: "sale_order", Match: s.deliveryBySaleOrder},
		{Name: "origin", Match: s.deliveryByOrigin},
		{Name: "order_hint", Match: s.deliveryByOrderHint},
		{Name: "product_partner", Match: s.deliveryByProductPartner},
		{Name: "product_only", Match: s.deliveryByProduct},
	}
}

func (s *Service) deliveryBySaleLine(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	for _, m := range t.Moves {
		if m.SaleLine.IsNil() {
			continue
		}
		items, err := s.items.FindItems(ctx, models.ItemFilter{SaleLine: m.SaleLine, ExcludeCancelled: true})
		if err != nil {
			return id.ItemID{}, false, err
		}
		if itemID, ok := first(items); ok {
			return itemID, true, nil
		}
	}
	return id.ItemID{}, false, nil
}

func (s *Service) deliveryBySaleOrder(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	if t.Sale.IsNil() {
		return id.ItemID{}, false, nil
	}
	order, err := s.erp.Sales().Order(ctx, t.Sale)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ItemID{}, false, nil
		}
		return id.ItemID{}, false, err
	}
	return s.itemForSale(ctx, order)
}

func (s *Service) deliveryByOrigin(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	name, ok := normalizeName(saleNamePattern, "S", t.Origin)
	if !ok {
		return id.ItemID{}, false, nil
	}
	order, err := s.erp.Sales().OrderByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ItemID{}, false, nil
		}
		return id.ItemID{}, false, err
	}
	return s.itemForSale(ctx, order)
}

// itemForSale tries the order's lines, then an order with a single item.
func (s *Service) itemForSale(ctx context.Context, order *erp.SaleOrder) (id.ItemID, bool, error) {
	for _, l := range order.Lines {
		items, err := s.items.FindItems(ctx, models.ItemFilter{SaleLine: l.ID, ExcludeCancelled: true})
		if err != nil {
			return id.ItemID{}, false, err
		}
		if itemID, ok := first(items); ok {
			return itemID, true, nil
		}
	}
	items, err := s.items.FindItems(ctx, models.ItemFilter{SaleOrder: order.ID, ExcludeCancelled: true})
	if err != nil {
		return id.ItemID{}, false, err
	}
	if len(items) != 1 {
		return id.ItemID{}, false, nil
	}
	return items[0].ID, true, nil
}

func (s *Service) deliveryByOrderHint(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	for _, m := range t.Moves {
		if m.OrderHint == "" {
			continue
		}
		order, err := s.erp.Sales().OrderByName(ctx, m.OrderHint)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return id.ItemID{}, false, err
		}
		items, err := s.items.FindItems(ctx, models.ItemFilter{
			SaleOrder:        order.ID,
			Product:          m.Product,
			ExcludeCancelled: true,
		})
		if err != nil {
			return id.ItemID{}, false, err
		}
		if itemID, ok := first(items); ok {
			return itemID, true, nil
		}
	}
	return id.ItemID{}, false, nil
}

func (s *Service) deliveryByProductPartner(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	if t.Partner.IsNil() {
		return id.ItemID{}, false, nil
	}
	lists, err := s.items.FindLists(ctx, models.ListFilter{Beneficiary: t.Partner})
	if err != nil {
		return id.ItemID{}, false, err
	}
	if len(lists) == 0 {
		return id.ItemID{}, false, nil
	}
	listIDs := make([]id.ListID, 0, len(lists))
	for _, l := range lists {
		listIDs = append(listIDs, l.ID)
	}
	for _, product := range t.Products() {
		items, err := s.items.FindItems(ctx, models.ItemFilter{
			ListIDs:          listIDs,
			Product:          product,
			DeliveryUnset:    true,
			ExcludeCancelled: true,
		})
		if err != nil {
			return id.ItemID{}, false, err
		}
		if itemID, ok := first(items); ok {
			return itemID, true, nil
		}
	}
	return id.ItemID{}, false, nil
}

// deliveryByProduct is the last resort. With two open items for the same
// product on different lists it picks the first one found.
func (s *Service) deliveryByProduct(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	for _, product := range t.Products() {
		items, err := s.items.FindItems(ctx, models.ItemFilter{
			Product:          product,
			DeliveryUnset:    true,
			SaleOrderSet:     true,
			ExcludeCancelled: true,
		})
		if err != nil {
			return id.ItemID{}, false, err
		}
		if itemID, ok := first(items); ok {
			return itemID, true, nil
		}
	}
	return id.ItemID{}, false, nil
}

func (s *Service) receiptStrategies() []Strategy[*erp.Transfer] {
	return []Strategy[*erp.Transfer]{
		{Name: "purchase", Match: s.receiptByPurchase},
		{Name: "receipt_ref", Match: s.receiptByRef},
		{Name: "origin", Match: s.receiptByOrigin},
	}
}

func (s *Service) receiptByPurchase(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	if t.Purchase.IsNil() {
		return id.ItemID{}, false, nil
	}
	items, err := s.items.FindItems(ctx, models.ItemFilter{Purchase: t.Purchase, ExcludeCancelled: true})
	if err != nil {
		return id.ItemID{}, false, err
	}
	itemID, ok := firstMoving(items, t)
	return itemID, ok, nil
}

func (s *Service) receiptByRef(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	items, err := s.items.FindItems(ctx, models.ItemFilter{Receipt: t.ID})
	if err != nil {
		return id.ItemID{}, false, err
	}
	itemID, ok := first(items)
	return itemID, ok, nil
}

func (s *Service) receiptByOrigin(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	name, ok := normalizeName(purchaseNamePattern, "PO", t.Origin)
	if !ok {
		return id.ItemID{}, false, nil
	}
	po, err := s.erp.Purchase().OrderByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.ItemID{}, false, nil
		}
		return id.ItemID{}, false, err
	}
	items, err := s.items.FindItems(ctx, models.ItemFilter{Purchase: po.ID, ExcludeCancelled: true})
	if err != nil {
		return id.ItemID{}, false, err
	}
	itemID, ok := firstMoving(items, t)
	return itemID, ok, nil
}

func (s *Service) holdingStrategies() []Strategy[*erp.Transfer] {
	return []Strategy[*erp.Transfer]{
		{Name: "holding_ref", Match: s.holdingByRef},
		{Name: "origin_list", Match: s.holdingByOrigin},
	}
}

func (s *Service) holdingByRef(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	items, err := s.items.FindItems(ctx, models.ItemFilter{Holding: t.ID})
	if err != nil {
		return id.ItemID{}, false, err
	}
	itemID, ok := first(items)
	return itemID, ok, nil
}

// holdingByOrigin reads the list name back out of "GIFT: <list>" and picks
// an open item for a moved product. A set transfer partner must be the
// list's beneficiary.
func (s *Service) holdingByOrigin(ctx context.Context, t *erp.Transfer) (id.ItemID, bool, error) {
	name, ok := strings.CutPrefix(t.Origin, models.OriginPrefix)
	if !ok || name == "" {
		return id.ItemID{}, false, nil
	}
	lists, err := s.items.FindLists(ctx, models.ListFilter{Name: name})
	if err != nil {
		return id.ItemID{}, false, err
	}
	for _, l := range lists {
		if !t.Partner.IsNil() && t.Partner != l.Beneficiary {
			continue
		}
		items, err := s.items.FindItems(ctx, models.ItemFilter{ListIDs: []id.ListID{l.ID}, ExcludeCancelled: true})
		if err != nil {
			return id.ItemID{}, false, err
		}
		for _, it := range items {
			if it.Refs.Holding.IsNil() && t.HasProduct(it.ProductID) {
				return it.ID, true, nil
			}
		}
	}
	return id.ItemID{}, false, nil
}
