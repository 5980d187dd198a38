// Package handler serves the workflow action log and the provider webhooks
// that append to it.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"giftlist/internal/erp"
	"giftlist/internal/workflow/metrics"
	"giftlist/internal/workflow/models"
	"giftlist/internal/workflow/ratelimit"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/requestcontext"
)

const (
	defaultWebhookLimit  = 100
	defaultWebhookWindow = 60 * time.Second
)

type Recorder interface {
	Record(ctx context.Context, action models.Action)
	History(ctx context.Context, filter models.Filter) ([]models.Action, error)
}

type Transfers interface {
	TransferByName(ctx context.Context, name string) (*erp.Transfer, error)
}

type Handler struct {
	recorder  Recorder
	transfers Transfers
	limiter   ratelimit.Limiter
	limit     int
	window    time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithRateLimit overrides the webhook budget per provider and client IP.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.limit = limit
		}
		if window > 0 {
			h.window = window
		}
	}
}

func New(recorder Recorder, transfers Transfers, limiter ratelimit.Limiter, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		recorder:  recorder,
		transfers: transfers,
		limiter:   limiter,
		limit:     defaultWebhookLimit,
		window:    defaultWebhookWindow,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the operator endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/workflow/actions", h.HandleListActions)
}

// RegisterWebhooks mounts the provider endpoints. The caller guards them with
// the API key middleware.
func (h *Handler) RegisterWebhooks(r chi.Router) {
	r.Post("/workflow/webhook/shipping/{provider}", h.HandleShippingWebhook)
	r.Post("/workflow/webhook/payment/{provider}", h.HandlePaymentWebhook)
}

func (h *Handler) reject(reason string) {
	if h.metrics != nil {
		h.metrics.IncWebhookRejected(reason)
	}
}

func clientIP(r *http.Request) string {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// admit applies the per provider and caller limit. It writes the 429 itself.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, provider string) bool {
	ctx := r.Context()
	key := ratelimit.Key(provider, clientIP(r))
	res, err := h.limiter.Allow(ctx, key, h.limit, h.window)
	if err != nil {
		h.logger.WarnContext(ctx, "webhook rate limit check failed", "key", key, "error", err)
		return true
	}
	if !res.Allowed {
		h.reject("rate_limited")
		h.logger.WarnContext(ctx, "webhook rate limit exceeded", "key", key)
		w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(res.ResetAt).Seconds())+1))
		httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Rate limit exceeded"))
		return false
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	return true
}

type webhookResponse struct {
	Success  bool        `json:"success"`
	ActionID id.ActionID `json:"action_id"`
}

type ShippingWebhookRequest struct {
	TrackingNumber    string `json:"tracking_number"`
	Status            string `json:"status"`
	DocumentRef       string `json:"document_ref"`
	Timestamp         string `json:"timestamp,omitempty"`
	Location          string `json:"location,omitempty"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
}

func (r *ShippingWebhookRequest) Validate() error {
	r.TrackingNumber = strings.TrimSpace(r.TrackingNumber)
	r.Status = strings.TrimSpace(r.Status)
	if r.TrackingNumber == "" || r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "Missing required fields: tracking_number, status")
	}
	if strings.TrimSpace(r.DocumentRef) == "" {
		return dErrors.New(dErrors.CodeValidation, "document_ref is required")
	}
	return nil
}

// HandleShippingWebhook logs a carrier status against the transfer named by
// document_ref. Unknown statuses are logged as a created shipment.
func (h *Handler) HandleShippingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	if !h.admit(w, r, provider) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ShippingWebhookRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	t, err := h.transfers.TransferByName(ctx, req.DocumentRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			h.logger.WarnContext(ctx, "webhook transfer not found", "provider", provider, "document_ref", req.DocumentRef)
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "Transfer not found: %s", req.DocumentRef))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up transfer"))
		return
	}

	actionType, known := models.ShipmentAction(req.Status)
	if !known {
		actionType = models.ActionAPIShipmentCreated
	}
	note := fmt.Sprintf("Webhook from %s: %s", provider, req.Status)
	if req.Location != "" {
		note += " - " + req.Location
	}
	action := models.Action{
		ID:           id.ActionID(uuid.New()),
		DocumentType: models.DocTransfer,
		DocumentRef:  t.Name,
		ResID:        uuid.UUID(t.ID),
		ActionType:   actionType,
		Source:       models.SourceAPI,
		StateTo:      req.Status,
		Partner:      t.Partner,
		Provider:     provider,
		Note:         note,
	}
	h.recorder.Record(ctx, action)
	h.logger.InfoContext(ctx, "shipping webhook processed",
		"provider", provider,
		"document_ref", t.Name,
		"status", req.Status,
		"tracking_number", req.TrackingNumber,
	)
	httputil.WriteJSON(w, http.StatusOK, webhookResponse{Success: true, ActionID: action.ID})
}

type PaymentWebhookRequest struct {
	PaymentID    string           `json:"payment_id"`
	Status       string           `json:"status"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	DocumentType string           `json:"document_type,omitempty"`
	DocumentRef  string           `json:"document_ref,omitempty"`
	ResID        string           `json:"res_id,omitempty"`

	docType models.DocumentType
	resID   uuid.UUID
}

func (r *PaymentWebhookRequest) Validate() error {
	r.PaymentID = strings.TrimSpace(r.PaymentID)
	r.Status = strings.TrimSpace(r.Status)
	if r.PaymentID == "" || r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "Missing required fields: payment_id, status")
	}
	r.docType = models.DocPosOrder
	if r.DocumentType != "" {
		r.docType = models.DocumentType(r.DocumentType)
		if !r.docType.IsValid() {
			return dErrors.Newf(dErrors.CodeValidation, "unknown document_type %q", r.DocumentType)
		}
	}
	if r.ResID != "" {
		parsed, err := uuid.Parse(r.ResID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "res_id must be a UUID")
		}
		r.resID = parsed
	}
	return nil
}

// HandlePaymentWebhook logs a gateway status. The document defaults to a POS
// order; the payment itself is settled through the register.
func (h *Handler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	if !h.admit(w, r, provider) {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PaymentWebhookRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	actionType, known := models.PaymentAction(req.Status)
	if !known {
		actionType = models.ActionAPIPaymentConfirmed
	}
	note := fmt.Sprintf("Payment webhook from %s: %s", provider, req.Status)
	if req.Amount != nil && req.Currency != "" {
		note += fmt.Sprintf(" (%s %s)", req.Amount.StringFixed(2), req.Currency)
	}
	action := models.Action{
		ID:           id.ActionID(uuid.New()),
		DocumentType: req.docType,
		DocumentRef:  req.DocumentRef,
		ResID:        req.resID,
		ActionType:   actionType,
		Source:       models.SourceAPI,
		StateTo:      req.Status,
		Amount:       req.Amount,
		Provider:     provider,
		Note:         note,
	}
	h.recorder.Record(ctx, action)
	h.logger.InfoContext(ctx, "payment webhook processed",
		"provider", provider,
		"payment_id", req.PaymentID,
		"status", req.Status,
	)
	httputil.WriteJSON(w, http.StatusOK, webhookResponse{Success: true, ActionID: action.ID})
}

type actionsResponse struct {
	Actions []models.Action `json:"actions"`
}

// HandleListActions returns one document's history, newest first.
func (h *Handler) HandleListActions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filter models.Filter
	if dt := q.Get("document_type"); dt != "" {
		filter.DocumentType = models.DocumentType(dt)
		if !filter.DocumentType.IsValid() {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown document_type %q", dt))
			return
		}
	}
	if raw := q.Get("res_id"); raw != "" {
		resID, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "res_id must be a UUID"))
			return
		}
		filter.ResID = resID
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	actions, err := h.recorder.History(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list workflow actions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list actions"))
		return
	}
	if actions == nil {
		actions = []models.Action{}
	}
	httputil.WriteJSON(w, http.StatusOK, actionsResponse{Actions: actions})
}
