package walletpay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	"giftlist/internal/reconcile"
	"giftlist/internal/walletpay/metrics"
	wpmodels "giftlist/internal/walletpay/models"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
)

// NetPolicy decides how much of a register order goes through the wallet.
type NetPolicy string

const (
	// NetDeductAdjustments subtracts the (negative) down-payment adjustment
	// lines from the payments collected.
	NetDeductAdjustments NetPolicy = "deduct_adjustments"
	// NetCollected moves exactly what the payer paid.
	NetCollected NetPolicy = "collected"
)

func ParseNetPolicy(s string) (NetPolicy, error) {
	switch NetPolicy(s) {
	case NetDeductAdjustments, NetCollected:
		return NetPolicy(s), nil
	case "":
		return NetDeductAdjustments, nil
	}
	return "", fmt.Errorf("unknown wallet net policy %q", s)
}

// Program is the eWallet product the top-up and settlement lines use.
type Program struct {
	ProductID id.ProductID
	Name      string
}

type Payments interface {
	Match(ctx context.Context, order *erp.PosOrder) ([]reconcile.PaymentMatch, error)
}

type Items interface {
	LinkDocuments(ctx context.Context, itemID id.ItemID, fn giftsvc.Mutation) (*models.Item, error)
	Recompute(ctx context.Context, itemID id.ItemID) (*models.Item, error)
}

type Fulfillment interface {
	OnDownpayment(ctx context.Context, itemID id.ItemID, order *erp.PosOrder) (*models.Item, error)
	EnsureProcurement(ctx context.Context, itemID id.ItemID) (*models.Item, error)
}

type Deliveries interface {
	LinkDelivery(ctx context.Context, itemID id.ItemID) (*reconcile.LinkResult, error)
}

type ActionRecorder interface {
	Record(ctx context.Context, action wfmodels.Action)
}

// Settler applies paid register orders to gift list items.
type Settler struct {
	erp         erp.Adapter
	ledger      *Ledger
	payments    Payments
	items       Items
	fulfillment Fulfillment
	deliveries  Deliveries
	locker      Locker
	recorder    ActionRecorder
	program     Program
	policy      NetPolicy
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type SettlerOption func(*Settler)

func WithLogger(logger *slog.Logger) SettlerOption {
	return func(s *Settler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) SettlerOption {
	return func(s *Settler) {
		s.metrics = m
	}
}

// WithLocker serializes settlements per wallet across processes. Without
// it only the ledger's own per-wallet serialization applies.
func WithLocker(l Locker) SettlerOption {
	return func(s *Settler) {
		s.locker = l
	}
}

func WithRecorder(r ActionRecorder) SettlerOption {
	return func(s *Settler) {
		s.recorder = r
	}
}

func WithDeliveries(d Deliveries) SettlerOption {
	return func(s *Settler) {
		s.deliveries = d
	}
}

func WithNetPolicy(p NetPolicy) SettlerOption {
	return func(s *Settler) {
		s.policy = p
	}
}

func WithEWalletProgram(p Program) SettlerOption {
	return func(s *Settler) {
		s.program = p
	}
}

func NewSettler(adapter erp.Adapter, ledger *Ledger, payments Payments, items Items, fulfillment Fulfillment, opts ...SettlerOption) *Settler {
	s := &Settler{
		erp:         adapter,
		ledger:      ledger,
		payments:    payments,
		items:       items,
		fulfillment: fulfillment,
		policy:      NetDeductAdjustments,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Settler) record(ctx context.Context, action wfmodels.Action) {
	if s.recorder != nil {
		s.recorder.Record(ctx, action)
	}
}

func (s *Settler) count(outcome string) {
	if s.metrics != nil {
		s.metrics.IncSettlement(outcome)
	}
}

// Settlement reports what Settle did with a register order.
type Settlement struct {
	Order *erp.PosOrder  `json:"-"`
	Topup *erp.PosOrder  `json:"-"`
	Items []*models.Item `json:"items"`
	// Net is the amount routed through the wallet; zero when none was.
	Net decimal.Decimal `json:"net"`
	// Skipped names why the order was passed through untouched.
	Skipped string `json:"skipped,omitempty"`
}

// Settle is invoked when a register order is paid. Orders that pay for no
// gift list item, and the top-up orders Settle itself creates, are only
// marked paid. A gift paid by the beneficiary is linked directly; a gift
// paid by someone else is split into a top-up crediting the beneficiary's
// wallet and a settlement paying from it.
func (s *Settler) Settle(ctx context.Context, orderID id.PosOrderID) (*Settlement, error) {
	ctx, span := tracer.Start(ctx, "walletpay.settle")
	defer span.End()

	order, err := s.erp.POS().Order(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "register order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read register order")
	}
	span.SetAttributes(attribute.String("pos_order", order.Name))

	switch {
	case order.IsGiftTopup:
		return s.passThrough(ctx, order, "topup")
	case !order.TopupID.IsNil():
		return s.resume(ctx, order)
	}

	matches, err := s.payments.Match(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return s.passThrough(ctx, order, "not_gift")
	}

	beneficiary := matches[0].Sale.Partner
	payer := order.PaidBy
	if payer.IsNil() {
		payer = order.Partner
	}
	if payer.IsNil() || payer == beneficiary {
		return s.settleDirect(ctx, order, matches, beneficiary)
	}
	return s.settleThroughWallet(ctx, order, matches, payer, beneficiary)
}

func (s *Settler) passThrough(ctx context.Context, order *erp.PosOrder, reason string) (*Settlement, error) {
	paid, err := s.markPaid(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.count(reason)
	s.logger.DebugContext(ctx, "register order passed through", "pos_order", order.Name, "reason", reason)
	return &Settlement{Order: paid, Skipped: reason}, nil
}

func (s *Settler) settleDirect(ctx context.Context, order *erp.PosOrder, matches []reconcile.PaymentMatch, payer id.PartnerID) (*Settlement, error) {
	paid, err := s.markPaid(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.applyMatches(ctx, paid, matches, payer)
	if err != nil {
		return nil, err
	}
	s.count("direct")
	return &Settlement{Order: paid, Items: items}, nil
}

func (s *Settler) settleThroughWallet(ctx context.Context, order *erp.PosOrder, matches []reconcile.PaymentMatch, payer, beneficiary id.PartnerID) (*Settlement, error) {
	if s.program.ProductID.IsNil() {
		return nil, dErrors.New(dErrors.CodeFailedPrecondition,
			"No eWallet program is configured. Configure one before accepting gift list payments from other customers.")
	}
	beneficiaryName := s.partnerName(ctx, beneficiary)
	wallet, err := s.beneficiaryWallet(ctx, beneficiary, beneficiaryName)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	net := s.netAmount(order)
	if !net.IsPositive() {
		s.logger.WarnContext(ctx, "net amount is not positive after down payment adjustments, settling without the wallet",
			"pos_order", order.Name,
			"net", net.StringFixed(2),
		)
		return s.settleDirect(ctx, order, matches, payer)
	}

	topup, err := s.erp.POS().CreateOrder(ctx, erp.PosOrder{
		Partner:      beneficiary,
		PaidBy:       payer,
		IsGiftTopup:  true,
		SettlementID: order.ID,
		Lines: []erp.PosLine{{
			Product:     s.program.ProductID,
			ProductName: "Gift List Top-Up for " + beneficiaryName,
			Qty:         decimal.NewFromInt(1),
			PriceUnit:   net,
			Subtotal:    net,
		}},
		Payments:    append([]erp.Payment(nil), order.Payments...),
		AmountTotal: net,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create top-up order")
	}

	// The rewrite is persisted before any money moves: from here on the order
	// carries TopupID and a failed settlement resumes instead of starting over.
	settlement := *order
	settlement.Payments = nil
	settlement.Lines = append(append([]erp.PosLine(nil), order.Lines...), erp.PosLine{
		Product:       s.program.ProductID,
		ProductName:   "eWallet Settlement for " + beneficiaryName,
		Qty:           decimal.NewFromInt(-1),
		PriceUnit:     net,
		Subtotal:      net.Neg(),
		IsWalletDebit: true,
	})
	settlement.AmountTotal = settlement.LinesTotal()
	settlement.AmountPaid = decimal.Zero
	settlement.Partner = beneficiary
	settlement.PaidBy = payer
	settlement.TopupID = topup.ID
	settlement.ToInvoice = false
	if err := s.erp.POS().UpdateOrder(ctx, &settlement); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to convert register order to a wallet settlement")
	}

	res, _, err := s.completeWallet(ctx, &settlement, topup, wallet.ID, matches, net)
	if err != nil {
		return nil, err
	}
	s.count("wallet")
	return res, nil
}

// resume finishes a wallet settlement whose order was already rewritten. A
// settlement that completed is passed through; one interrupted between the
// rewrite and linking its items moves only the missing money and links the
// items still unpaid.
func (s *Settler) resume(ctx context.Context, order *erp.PosOrder) (*Settlement, error) {
	net := walletDebit(order)
	if !net.IsPositive() {
		return s.passThrough(ctx, order, "already_settled")
	}
	topup, err := s.erp.POS().Order(ctx, order.TopupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read top-up order")
	}
	wallet, err := s.beneficiaryWallet(ctx, order.Partner, s.partnerName(ctx, order.Partner))
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	matches, err := s.payments.Match(ctx, order)
	if err != nil {
		return nil, err
	}
	res, moved, err := s.completeWallet(ctx, order, topup, wallet.ID, matches, net)
	if err != nil {
		return nil, err
	}
	if !moved && len(matches) == 0 {
		s.count("already_settled")
		res.Skipped = "already_settled"
		res.Topup, res.Net = nil, decimal.Zero
		return res, nil
	}
	s.logger.InfoContext(ctx, "interrupted wallet settlement resumed",
		"pos_order", order.Name,
		"moved_money", moved,
		"items", len(res.Items),
	)
	s.count("resumed")
	return res, nil
}

// completeWallet brings the ledger in line with a rewritten settlement: the
// top-up credits net once and the settlement debits net once, split per
// matched item. Entries already present are not applied again. It then marks
// both orders paid and links the matched items. moved reports whether any
// ledger entry was written.
func (s *Settler) completeWallet(ctx context.Context, order, topup *erp.PosOrder, walletID id.WalletID, matches []reconcile.PaymentMatch, net decimal.Decimal) (*Settlement, bool, error) {
	entries, err := s.ledger.orderEntries(ctx, order.ID, topup.ID)
	if err != nil {
		return nil, false, err
	}
	credited := false
	debitedTotal := decimal.Zero
	debited := make(map[id.ItemID]bool)
	for _, e := range entries {
		if e.WalletID != walletID {
			continue
		}
		switch {
		case e.PosOrder == topup.ID && e.Issued.IsPositive():
			credited = true
		case e.PosOrder == order.ID && e.Used.IsPositive():
			debited[e.Item] = true
			debitedTotal = debitedTotal.Add(e.Used)
		}
	}

	payer := order.PaidBy
	payerName := s.partnerName(ctx, payer)
	beneficiaryName := s.partnerName(ctx, order.Partner)
	movedCredit, movedDebit := false, false
	if !credited {
		if _, err := s.ledger.credit(ctx, wpmodels.LedgerEntry{
			WalletID:    walletID,
			PosOrder:    topup.ID,
			Issued:      net,
			Description: "Gift List Top-Up from " + payerName,
		}); err != nil {
			return nil, false, err
		}
		movedCredit = true
		s.recordWallet(ctx, wfmodels.ActionWalletCredit, topup, walletID, payer, net, "Top-up from "+payerName)
	}
	for i, share := range walletShares(order, matches, net) {
		item := matches[i].Item.ID
		if debited[item] || !share.IsPositive() {
			continue
		}
		if _, err := s.ledger.debit(ctx, wpmodels.LedgerEntry{
			WalletID:    walletID,
			PosOrder:    order.ID,
			Item:        item,
			Used:        share,
			Description: "Gift List Settlement",
		}); err != nil {
			return nil, false, err
		}
		debitedTotal = debitedTotal.Add(share)
		movedDebit = true
	}
	// With no item left to attribute it to, whatever the recorded debits
	// leave uncovered is taken without an item.
	if rest := net.Sub(debitedTotal); rest.IsPositive() && len(matches) == 0 {
		if _, err := s.ledger.debit(ctx, wpmodels.LedgerEntry{
			WalletID:    walletID,
			PosOrder:    order.ID,
			Used:        rest,
			Description: "Gift List Settlement",
		}); err != nil {
			return nil, false, err
		}
		movedDebit = true
	}
	if movedDebit {
		s.recordWallet(ctx, wfmodels.ActionWalletDebit, order, walletID, order.Partner, net, "Settlement for "+beneficiaryName)
	}

	if topup, err = s.markPaid(ctx, topup.ID); err != nil {
		return nil, false, err
	}
	paid, err := s.markPaid(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	if movedCredit || movedDebit {
		s.logger.InfoContext(ctx, "gift payment routed through wallet",
			"pos_order", paid.Name,
			"topup", topup.Name,
			"wallet_id", walletID,
			"net", net.StringFixed(2),
		)
	}

	items, err := s.applyMatches(ctx, paid, matches, payer)
	if err != nil {
		return nil, false, err
	}
	return &Settlement{Order: paid, Topup: topup, Items: items, Net: net}, movedCredit || movedDebit, nil
}

func (s *Settler) beneficiaryWallet(ctx context.Context, beneficiary id.PartnerID, name string) (*wpmodels.Wallet, error) {
	wallet, err := s.ledger.WalletForPartner(ctx, beneficiary)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, dErrors.Newf(dErrors.CodeFailedPrecondition,
			"Customer '%s' must have a wallet to use this payment method. Please create a wallet for this customer first.",
			name)
	}
	return wallet, nil
}

func (s *Settler) lock(ctx context.Context, walletID id.WalletID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	start := time.Now()
	unlock, err := s.locker.Acquire(ctx, walletID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrLockHeld) {
			return nil, dErrors.New(dErrors.CodeConflict, "wallet is busy with another settlement, retry shortly")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock wallet")
	}
	if s.metrics != nil {
		s.metrics.ObserveLockWait(time.Since(start).Seconds())
	}
	return unlock, nil
}

// walletDebit is the amount the settlement line takes from the wallet.
func walletDebit(order *erp.PosOrder) decimal.Decimal {
	total := decimal.Zero
	for _, l := range order.Lines {
		if l.IsWalletDebit {
			total = total.Sub(l.Subtotal)
		}
	}
	return total
}

// walletShares splits net across the matched items in proportion to what the
// order's lines charge for each, falling back to equal parts when a line
// cannot be attributed. The last share absorbs rounding so the shares add up
// to net.
func walletShares(order *erp.PosOrder, matches []reconcile.PaymentMatch, net decimal.Decimal) []decimal.Decimal {
	if len(matches) == 0 {
		return nil
	}
	weights := make([]decimal.Decimal, len(matches))
	for _, l := range order.Lines {
		if l.IsWalletDebit {
			continue
		}
		if i := lineOwner(l, matches); i >= 0 {
			weights[i] = weights[i].Add(l.Subtotal)
		}
	}
	total := decimal.Zero
	for _, w := range weights {
		if !w.IsPositive() {
			total = decimal.Zero
			break
		}
		total = total.Add(w)
	}
	if total.IsZero() {
		for i := range weights {
			weights[i] = decimal.NewFromInt(1)
		}
		total = decimal.NewFromInt(int64(len(weights)))
	}

	shares := make([]decimal.Decimal, len(matches))
	rest := net
	for i, w := range weights {
		if i == len(weights)-1 {
			shares[i] = rest
			break
		}
		shares[i] = net.Mul(w).Div(total).Round(2)
		rest = rest.Sub(shares[i])
	}
	return shares
}

// lineOwner picks the match a register line pays for: the item on the same
// sale line, else an item of the line's origin sale, preferring the one with
// the line's product. -1 when no match owns the line.
func lineOwner(l erp.PosLine, matches []reconcile.PaymentMatch) int {
	if !l.SaleLine.IsNil() {
		for i, m := range matches {
			if m.Item.Refs.SaleLine == l.SaleLine {
				return i
			}
		}
	}
	if l.SaleOrigin.IsNil() {
		return -1
	}
	owner := -1
	for i, m := range matches {
		if m.Item.Refs.SaleOrder != l.SaleOrigin {
			continue
		}
		if m.Item.ProductName == l.ProductName {
			return i
		}
		if owner < 0 {
			owner = i
		}
	}
	return owner
}

// netAmount is what the payer's money contributes to the wallet.
func (s *Settler) netAmount(order *erp.PosOrder) decimal.Decimal {
	net := order.PaymentsTotal()
	if s.policy != NetDeductAdjustments {
		return net
	}
	for _, l := range order.Lines {
		if l.IsDownPayment && l.Subtotal.IsNegative() {
			net = net.Add(l.Subtotal)
		}
	}
	return net
}

// applyMatches links the canonical payment order to each matched item.
func (s *Settler) applyMatches(ctx context.Context, order *erp.PosOrder, matches []reconcile.PaymentMatch, payer id.PartnerID) ([]*models.Item, error) {
	var out []*models.Item
	for _, m := range matches {
		var (
			it  *models.Item
			err error
		)
		switch m.Kind {
		case reconcile.PaymentDown:
			it, err = s.fulfillment.OnDownpayment(ctx, m.Item.ID, order)
		case reconcile.PaymentFinal:
			it, err = s.applyFinal(ctx, order, m.Item.ID, payer)
		}
		if err != nil {
			return nil, err
		}
		if it != nil {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Settler) applyFinal(ctx context.Context, order *erp.PosOrder, itemID id.ItemID, payer id.PartnerID) (*models.Item, error) {
	var hadDownPayment bool
	it, err := s.items.LinkDocuments(ctx, itemID, func(it *models.Item) (bool, error) {
		hadDownPayment = !it.Refs.DownPayment.IsNil()
		if !it.Refs.FinalPayment.IsNil() {
			return false, nil
		}
		it.Refs.FinalPayment = order.ID
		it.PaidBy = payer
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if it.Refs.FinalPayment != order.ID {
		return it, nil
	}
	if !hadDownPayment {
		if it, err = s.fulfillment.EnsureProcurement(ctx, itemID); err != nil {
			return nil, err
		}
	}
	if s.deliveries != nil {
		if _, err := s.deliveries.LinkDelivery(ctx, itemID); err != nil {
			s.logger.WarnContext(ctx, "failed to link delivery after final payment",
				"item_id", itemID,
				"error", err,
			)
		}
	}
	if it, err = s.items.Recompute(ctx, itemID); err != nil {
		return nil, err
	}

	amount := order.AmountTotal
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocPosOrder,
		DocumentRef:  order.Name,
		ResID:        uuid.UUID(order.ID),
		ActionType:   wfmodels.ActionPaymentReceived,
		StateTo:      string(it.State),
		Partner:      payer,
		Amount:       &amount,
		Note:         "Final payment for " + it.ProductName,
	})
	return it, nil
}

func (s *Settler) recordWallet(ctx context.Context, action wfmodels.ActionType, order *erp.PosOrder, walletID id.WalletID, partner id.PartnerID, amount decimal.Decimal, note string) {
	s.record(ctx, wfmodels.Action{
		DocumentType: wfmodels.DocWallet,
		DocumentRef:  order.Name,
		ResID:        uuid.UUID(walletID),
		ActionType:   action,
		Partner:      partner,
		Amount:       &amount,
		Note:         note,
	})
}

func (s *Settler) markPaid(ctx context.Context, orderID id.PosOrderID) (*erp.PosOrder, error) {
	paid, err := s.erp.POS().MarkPaid(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeFailedPrecondition, "register order cannot be paid")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark register order paid")
	}
	return paid, nil
}

// partnerName falls back to the ID when the catalog cannot name the partner.
func (s *Settler) partnerName(ctx context.Context, partnerID id.PartnerID) string {
	p, err := s.erp.Catalog().Partner(ctx, partnerID)
	if err != nil {
		return partnerID.String()
	}
	return p.Name
}
