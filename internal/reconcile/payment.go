package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	"giftlist/internal/reconcile/metrics"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
)

// PaymentKind tells whether a register order is the down payment or the
// payment that settles the item.
type PaymentKind string

const (
	PaymentDown  PaymentKind = "down_payment"
	PaymentFinal PaymentKind = "final_payment"
)

var (
	downPaymentRate   = decimal.RequireFromString("0.25")
	downPaymentSlack  = decimal.RequireFromString("0.05")
	finalPaymentSlack = decimal.RequireFromString("0.01")
	cent              = decimal.RequireFromString("0.01")
)

// PaymentMatch is one item a register order pays for.
type PaymentMatch struct {
	Item     *models.Item
	Sale     *erp.SaleOrder
	Kind     PaymentKind
	Strategy string
	// PaidForSale is what the register has collected for the sale, this order included.
	PaidForSale decimal.Decimal
}

// PaymentMatcher finds the gift list items a register order pays for.
type PaymentMatcher struct {
	items   Items
	erp     erp.Adapter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type candidate struct {
	item     *models.Item
	strategy string
}

// detectSales returns the sale orders the register order references: its
// explicit sale links, else its lines' origins, else its lines' sale lines.
func (m *PaymentMatcher) detectSales(ctx context.Context, order *erp.PosOrder) ([]*erp.SaleOrder, error) {
	var ids []id.SaleOrderID
	add := func(saleID id.SaleOrderID) {
		for _, known := range ids {
			if known == saleID {
				return
			}
		}
		ids = append(ids, saleID)
	}
	for _, saleID := range order.SaleOrderIDs {
		add(saleID)
	}
	if len(ids) == 0 {
		for _, l := range order.Lines {
			if !l.SaleOrigin.IsNil() {
				add(l.SaleOrigin)
			}
		}
	}
	var sales []*erp.SaleOrder
	for _, saleID := range ids {
		so, err := m.erp.Sales().Order(ctx, saleID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sale order")
		}
		sales = append(sales, so)
	}
	if len(ids) > 0 {
		return sales, nil
	}
	seen := make(map[id.SaleOrderID]struct{})
	for _, l := range order.Lines {
		if l.SaleLine.IsNil() {
			continue
		}
		so, err := m.erp.Sales().OrderForLine(ctx, l.SaleLine)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sale order")
		}
		if _, ok := seen[so.ID]; ok {
			continue
		}
		seen[so.ID] = struct{}{}
		sales = append(sales, so)
	}
	return sales, nil
}

// Match resolves the items the order pays for and classifies each payment.
// Items whose down and final payments are both taken are skipped.
func (m *PaymentMatcher) Match(ctx context.Context, order *erp.PosOrder) ([]PaymentMatch, error) {
	ctx, span := tracer.Start(ctx, "reconcile.match_payment")
	defer span.End()
	span.SetAttributes(attribute.String("pos_order", order.Name))

	candidates, err := m.direct(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		if candidates, err = m.bySaleOrders(ctx, order); err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		if candidates, err = m.byPartnerAmount(ctx, order); err != nil {
			return nil, err
		}
	}

	var out []PaymentMatch
	for _, c := range candidates {
		match, ok, err := m.classify(ctx, c, order)
		if err != nil {
			return nil, err
		}
		if !ok {
			m.logger.InfoContext(ctx, "item already has both payments, skipping",
				"pos_order", order.Name,
				"item_id", c.item.ID,
			)
			continue
		}
		if m.metrics != nil {
			m.metrics.IncPaymentMatch(string(match.Kind), match.Strategy)
		}
		out = append(out, match)
	}
	return out, nil
}

// direct matches each line by its sale line, then by its origin sale order.
func (m *PaymentMatcher) direct(ctx context.Context, order *erp.PosOrder) ([]candidate, error) {
	var out []candidate
	seen := make(map[id.ItemID]struct{})
	add := func(it *models.Item, strategy string) {
		if _, ok := seen[it.ID]; ok {
			return
		}
		seen[it.ID] = struct{}{}
		out = append(out, candidate{item: it, strategy: strategy})
	}
	for _, l := range order.Lines {
		if l.IsWalletDebit {
			continue
		}
		if !l.SaleLine.IsNil() {
			items, err := m.items.FindItems(ctx, models.ItemFilter{SaleLine: l.SaleLine, ExcludeCancelled: true})
			if err != nil {
				return nil, err
			}
			if len(items) > 0 {
				add(items[0], "sale_line")
				continue
			}
		}
		if l.SaleOrigin.IsNil() {
			continue
		}
		items, err := m.items.FindItems(ctx, models.ItemFilter{SaleOrder: l.SaleOrigin, ExcludeCancelled: true})
		if err != nil {
			return nil, err
		}
		if it := pickForLine(items, l); it != nil {
			add(it, "sale_origin")
		}
	}
	return out, nil
}

// pickForLine narrows a multi-item sale order by product name and price.
func pickForLine(items []*models.Item, l erp.PosLine) *models.Item {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	}
	for _, it := range items {
		if it.ProductName == l.ProductName && it.PriceUnit.Sub(l.PriceUnit).Abs().LessThanOrEqual(cent) {
			return it
		}
	}
	return items[0]
}

// bySaleOrders takes every item of the sale orders the register order
// references when no line could be tied to an item.
func (m *PaymentMatcher) bySaleOrders(ctx context.Context, order *erp.PosOrder) ([]candidate, error) {
	sales, err := m.detectSales(ctx, order)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for _, so := range sales {
		items, err := m.items.FindItems(ctx, models.ItemFilter{SaleOrder: so.ID, ExcludeCancelled: true})
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			out = append(out, candidate{item: it, strategy: "sale_order"})
		}
	}
	return out, nil
}

// byPartnerAmount guesses from the customer and the amount when the order
// carries no sale reference at all. The first plausible item wins.
func (m *PaymentMatcher) byPartnerAmount(ctx context.Context, order *erp.PosOrder) ([]candidate, error) {
	if order.Partner.IsNil() || len(order.SaleOrderIDs) > 0 {
		return nil, nil
	}
	lists, err := m.items.FindLists(ctx, models.ListFilter{Beneficiary: order.Partner})
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, nil
	}
	listIDs := make([]id.ListID, 0, len(lists))
	for _, l := range lists {
		listIDs = append(listIDs, l.ID)
	}
	items, err := m.items.FindItems(ctx, models.ItemFilter{ListIDs: listIDs, SaleOrderSet: true, ExcludeCancelled: true})
	if err != nil {
		return nil, err
	}
	amount := order.AmountTotal
	for _, it := range items {
		if !it.Refs.DownPayment.IsNil() && !it.Refs.FinalPayment.IsNil() {
			continue
		}
		sale, err := m.erp.Sales().Order(ctx, it.Refs.SaleOrder)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sale order")
		}
		total := sale.AmountTotal()
		if it.Refs.DownPayment.IsNil() {
			target := total.Mul(downPaymentRate)
			if amount.Sub(target).Abs().LessThanOrEqual(total.Mul(downPaymentSlack)) {
				return []candidate{{item: it, strategy: "partner_amount"}}, nil
			}
		}
		if !it.Refs.FinalPayment.IsNil() {
			continue
		}
		paid, err := m.TotalPaidForSale(ctx, sale, nil)
		if err != nil {
			return nil, err
		}
		remaining := total.Sub(paid)
		slack := decimal.Max(cent, total.Mul(finalPaymentSlack))
		if amount.Sub(remaining).Abs().LessThanOrEqual(slack) || amount.Sub(total).Abs().LessThanOrEqual(cent) {
			return []candidate{{item: it, strategy: "partner_amount"}}, nil
		}
	}
	return nil, nil
}

// classify decides down vs final payment from what the sale has collected
// once this order is counted.
func (m *PaymentMatcher) classify(ctx context.Context, c candidate, order *erp.PosOrder) (PaymentMatch, bool, error) {
	it := c.item
	if it.Refs.SaleOrder.IsNil() {
		return PaymentMatch{}, false, nil
	}
	sale, err := m.erp.Sales().Order(ctx, it.Refs.SaleOrder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return PaymentMatch{}, false, nil
		}
		return PaymentMatch{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read sale order")
	}
	paid, err := m.TotalPaidForSale(ctx, sale, order)
	if err != nil {
		return PaymentMatch{}, false, err
	}
	match := PaymentMatch{Item: it, Sale: sale, Strategy: c.strategy, PaidForSale: paid}
	if paid.LessThan(sale.AmountTotal()) {
		if !it.Refs.DownPayment.IsNil() {
			return PaymentMatch{}, false, nil
		}
		match.Kind = PaymentDown
		return match, true, nil
	}
	if !it.Refs.FinalPayment.IsNil() {
		return PaymentMatch{}, false, nil
	}
	match.Kind = PaymentFinal
	return match, true, nil
}

// TotalPaidForSale sums what paid register orders collected for the sale,
// plus current when given. Only positive lines tied to the sale count, so a
// later settlement rewrite of an order does not change the figure; an order
// with no such line counts its total.
func (m *PaymentMatcher) TotalPaidForSale(ctx context.Context, sale *erp.SaleOrder, current *erp.PosOrder) (decimal.Decimal, error) {
	prior, err := m.erp.POS().PaidOrdersForSale(ctx, sale.ID)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read register orders")
	}
	total := decimal.Zero
	for _, o := range prior {
		if current != nil && o.ID == current.ID {
			continue
		}
		total = total.Add(paidTowards(o, sale))
	}
	if current != nil {
		total = total.Add(paidTowards(current, sale))
	}
	return total, nil
}

func paidTowards(o *erp.PosOrder, sale *erp.SaleOrder) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range o.Lines {
		if !l.Subtotal.IsPositive() {
			continue
		}
		if l.SaleOrigin == sale.ID || (!l.SaleLine.IsNil() && sale.HasLine(l.SaleLine)) {
			sum = sum.Add(l.Subtotal)
		}
	}
	if sum.IsZero() {
		return o.AmountTotal
	}
	return sum
}
