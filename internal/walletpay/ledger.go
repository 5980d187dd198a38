// Package walletpay owns the customer eWallets: the append-only ledger and
// the two-order flow that routes a gift paid by someone else through the
// beneficiary's wallet.
package walletpay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"giftlist/internal/walletpay/metrics"
	"giftlist/internal/walletpay/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/requestcontext"
)

var tracer = otel.Tracer("giftlist/walletpay")

// Store persists wallets. Apply must be atomic and serialized per wallet,
// and must refuse an entry that would make the balance negative.
type Store interface {
	EnsureForPartner(ctx context.Context, partner id.PartnerID, program string, now time.Time) (*models.Wallet, error)
	ByPartner(ctx context.Context, partner id.PartnerID) (*models.Wallet, error)
	ByID(ctx context.Context, walletID id.WalletID) (*models.Wallet, error)
	Apply(ctx context.Context, entry models.LedgerEntry) (*models.Wallet, error)
	Entries(ctx context.Context, walletID id.WalletID) ([]models.LedgerEntry, error)
	EntriesForOrders(ctx context.Context, orders []id.PosOrderID) ([]models.LedgerEntry, error)
}

// Locker serializes work on one wallet across processes. The returned func
// releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Ledger is the only writer of wallet balances.
type Ledger struct {
	store   Store
	program string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type LedgerOption func(*Ledger)

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithLedgerMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithProgram names the eWallet program new wallets join.
func WithProgram(name string) LedgerOption {
	return func(l *Ledger) {
		l.program = name
	}
}

func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:   store,
		program: "eWallet",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EnsureForPartner returns the partner's wallet, creating it on first use.
func (l *Ledger) EnsureForPartner(ctx context.Context, partner id.PartnerID) (id.WalletID, error) {
	if partner.IsNil() {
		return id.WalletID{}, dErrors.New(dErrors.CodeInvalidInput, "partner is required for a wallet")
	}
	w, err := l.store.EnsureForPartner(ctx, partner, l.program, requestcontext.Now(ctx))
	if err != nil {
		return id.WalletID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to provision wallet")
	}
	return w.ID, nil
}

func (l *Ledger) Wallet(ctx context.Context, walletID id.WalletID) (*models.Wallet, error) {
	w, err := l.store.ByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "wallet not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet")
	}
	return w, nil
}

// WalletForPartner returns nil and no error when the partner has no wallet.
func (l *Ledger) WalletForPartner(ctx context.Context, partner id.PartnerID) (*models.Wallet, error) {
	w, err := l.store.ByPartner(ctx, partner)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet")
	}
	return w, nil
}

func (l *Ledger) Balance(ctx context.Context, walletID id.WalletID) (decimal.Decimal, error) {
	w, err := l.Wallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Balance, nil
}

func (l *Ledger) Entries(ctx context.Context, walletID id.WalletID) ([]models.LedgerEntry, error) {
	entries, err := l.store.Entries(ctx, walletID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet ledger")
	}
	return entries, nil
}

// TopUp credits money paid into the wallet outside a gift settlement.
func (l *Ledger) TopUp(ctx context.Context, walletID id.WalletID, amount decimal.Decimal, ref id.PosOrderID, description string) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "top-up amount must be positive")
	}
	return l.credit(ctx, models.LedgerEntry{
		WalletID:    walletID,
		PosOrder:    ref,
		Issued:      amount,
		Description: description,
	})
}

// Refund credits back the item's share of the debits the wallet recorded
// against the given register orders. A settlement paying for several items
// debits each item separately, so only this item's entries count. It
// returns the amount credited, zero when the wallet never paid for it.
func (l *Ledger) Refund(ctx context.Context, walletID id.WalletID, itemID id.ItemID, orders []id.PosOrderID, description string) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "walletpay.refund")
	defer span.End()
	span.SetAttributes(attribute.String("wallet_id", walletID.String()))

	entries, err := l.store.EntriesForOrders(ctx, orders)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet ledger")
	}
	debited := decimal.Zero
	for _, e := range entries {
		if e.WalletID == walletID && e.Item == itemID {
			debited = debited.Add(e.Used)
		}
	}
	if !debited.IsPositive() {
		return decimal.Zero, nil
	}
	if _, err := l.credit(ctx, models.LedgerEntry{
		WalletID:    walletID,
		Item:        itemID,
		Issued:      debited,
		Description: description,
	}); err != nil {
		return decimal.Zero, err
	}
	return debited, nil
}

func (l *Ledger) orderEntries(ctx context.Context, orders ...id.PosOrderID) ([]models.LedgerEntry, error) {
	entries, err := l.store.EntriesForOrders(ctx, orders)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read wallet ledger")
	}
	return entries, nil
}

func (l *Ledger) credit(ctx context.Context, entry models.LedgerEntry) (*models.Wallet, error) {
	return l.apply(ctx, entry, "credit", entry.Issued)
}

func (l *Ledger) debit(ctx context.Context, entry models.LedgerEntry) (*models.Wallet, error) {
	return l.apply(ctx, entry, "debit", entry.Used)
}

func (l *Ledger) apply(ctx context.Context, entry models.LedgerEntry, direction string, amount decimal.Decimal) (*models.Wallet, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	w, err := l.store.Apply(ctx, entry)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "wallet not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeFailedPrecondition, "Insufficient wallet balance.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update wallet")
	}
	if l.metrics != nil {
		l.metrics.ObserveMovement(direction, amount.InexactFloat64())
	}
	l.logger.InfoContext(ctx, "wallet "+direction,
		"wallet_id", entry.WalletID,
		"amount", amount.StringFixed(2),
		"balance", w.Balance.StringFixed(2),
		"pos_order_id", entry.PosOrder,
		"item_id", entry.Item,
	)
	return w, nil
}
