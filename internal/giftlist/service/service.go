package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"giftlist/internal/erp"
	"giftlist/internal/giftlist/metrics"
	"giftlist/internal/giftlist/models"
	wfmodels "giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/platform/tx"
)

var tracer = otel.Tracer("giftlist/service")

type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, itemID id.ItemID) error
	FindByID(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	Find(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error)
}

type ListStore interface {
	Create(ctx context.Context, list *models.List) error
	Update(ctx context.Context, list *models.List) error
	FindByID(ctx context.Context, listID id.ListID) (*models.List, error)
	Find(ctx context.Context, filter models.ListFilter) ([]*models.List, error)
}

// WalletProvider hands out the single wallet a partner owns.
type WalletProvider interface {
	EnsureForPartner(ctx context.Context, partner id.PartnerID) (id.WalletID, error)
	Balance(ctx context.Context, walletID id.WalletID) (decimal.Decimal, error)
}

// Refunder credits back what the wallet paid for an item's register orders.
type Refunder interface {
	Refund(ctx context.Context, walletID id.WalletID, itemID id.ItemID, orders []id.PosOrderID, description string) (decimal.Decimal, error)
}

type ActionRecorder interface {
	Record(ctx context.Context, action wfmodels.Action)
}

// StateObserver is told about every persisted state change. Errors are
// logged and never roll back the change.
type StateObserver interface {
	ItemStateChanged(ctx context.Context, item *models.Item, from models.State) error
}

// Service owns gift lists and their items. It is the only writer of item
// document references and the single entry point for state recomputation.
type Service struct {
	items     ItemStore
	lists     ListStore
	erp       erp.Adapter
	wallets   WalletProvider
	refunder  Refunder
	recorder  ActionRecorder
	observers []StateObserver
	tx        tx.Runner
	flight    singleflight.Group
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithWallets(w WalletProvider) Option {
	return func(s *Service) {
		s.wallets = w
	}
}

func WithRefunder(r Refunder) Option {
	return func(s *Service) {
		s.refunder = r
	}
}

func WithRecorder(r ActionRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithObserver(o StateObserver) Option {
	return func(s *Service) {
		s.observers = append(s.observers, o)
	}
}

// Observe registers an observer that could not be passed to New because it
// depends on the service itself. Call it before serving traffic.
func (s *Service) Observe(o StateObserver) {
	s.observers = append(s.observers, o)
}

// WithTxRunner replaces the in-process sharded lock, e.g. with tx.NewSQL.
func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(items ItemStore, lists ListStore, adapter erp.Adapter, opts ...Option) *Service {
	s := &Service{
		items:  items,
		lists:  lists,
		erp:    adapter,
		tx:     tx.NewSharded(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, action wfmodels.Action) {
	if s.recorder != nil {
		s.recorder.Record(ctx, action)
	}
}

func itemNotFound(err error, itemID id.ItemID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "item %s not found", itemID)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load item")
}

func listNotFound(err error, listID id.ListID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "list %s not found", listID)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load list")
}

// validation turns model invariant violations into caller-facing validation errors.
func validation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}
