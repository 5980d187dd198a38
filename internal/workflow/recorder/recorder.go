// Package recorder writes workflow actions. Recording is never critical: a
// failing store is logged and skipped so the business operation that
// produced the action still succeeds.
package recorder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"giftlist/internal/workflow/metrics"
	"giftlist/internal/workflow/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/requestcontext"
)

type Store interface {
	Append(ctx context.Context, action models.Action) error
	List(ctx context.Context, filter models.Filter) ([]models.Action, error)
}

// Recorder stamps and persists actions for the enabled document types.
type Recorder struct {
	store   Store
	enabled map[models.DocumentType]bool
	breaker *CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithEnabledDocuments restricts logging to the given document types.
// With none configured every type is logged.
func WithEnabledDocuments(types []string) Option {
	return func(r *Recorder) {
		if len(types) == 0 {
			return
		}
		r.enabled = make(map[models.DocumentType]bool, len(types))
		for _, t := range types {
			r.enabled[models.DocumentType(strings.TrimSpace(t))] = true
		}
	}
}

func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(r *Recorder) {
		r.breaker = NewCircuitBreaker(threshold, cooldown)
	}
}

func New(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		breaker: NewCircuitBreaker(5, 30*time.Second),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether actions for the document type are logged.
func (r *Recorder) Enabled(documentType models.DocumentType) bool {
	return r.enabled == nil || r.enabled[documentType]
}

// Record fills ID, time, request ID and source when unset, then persists.
func (r *Recorder) Record(ctx context.Context, action models.Action) {
	if !r.Enabled(action.DocumentType) {
		return
	}
	if action.ID.IsNil() {
		action.ID = id.ActionID(uuid.New())
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = requestcontext.Now(ctx)
	}
	if action.RequestID == "" {
		action.RequestID = requestcontext.RequestID(ctx)
	}
	if action.Source == "" {
		action.Source = DetectSource(requestcontext.UserAgent(ctx))
	}

	if !r.breaker.Allow() {
		if r.metrics != nil {
			r.metrics.IncDropped()
		}
		return
	}
	if err := r.store.Append(ctx, action); err != nil {
		r.breaker.RecordFailure()
		if r.metrics != nil {
			r.metrics.IncPersistFailures()
			r.metrics.SetCircuitBreakerState(r.breaker.IsOpen())
		}
		r.logger.WarnContext(ctx, "failed to record workflow action",
			"document_type", action.DocumentType,
			"document_ref", action.DocumentRef,
			"action_type", action.ActionType,
			"error", err,
		)
		return
	}
	r.breaker.RecordSuccess()
	if r.metrics != nil {
		r.metrics.IncRecorded(string(action.DocumentType))
		r.metrics.SetCircuitBreakerState(false)
	}
}

// History returns one document's actions, newest first.
func (r *Recorder) History(ctx context.Context, filter models.Filter) ([]models.Action, error) {
	return r.store.List(ctx, filter)
}

// DetectSource classifies a caller by its User-Agent. Requests from a
// browser are operator actions; scripts, bots and SDK clients are API
// calls. No User-Agent means the action came from inside the process.
func DetectSource(ua string) models.ActionSource {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return models.SourceSystem
	}
	parsed := useragent.New(ua)
	if parsed.Bot() {
		return models.SourceAPI
	}
	browser, _ := parsed.Browser()
	if parsed.Mozilla() == "" || browser == "" {
		return models.SourceAPI
	}
	return models.SourceUser
}
