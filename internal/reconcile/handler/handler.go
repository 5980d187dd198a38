package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giftlist/internal/giftlist/models"
	"giftlist/internal/reconcile"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/requestcontext"
)

// Service is what the stock and purchase subsystems call back into.
type Service interface {
	LinkTransfer(ctx context.Context, transferID id.TransferID) (*reconcile.LinkResult, error)
	OnTransferValidated(ctx context.Context, transferID id.TransferID) (*reconcile.LinkResult, error)
	OnPurchaseChanged(ctx context.Context, orderID id.PurchaseOrderID) ([]*models.Item, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the document notification endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/documents/transfers/{id}/link", h.HandleLinkTransfer)
	r.Post("/documents/transfers/{id}/validated", h.HandleTransferValidated)
	r.Post("/documents/purchases/{id}/changed", h.HandlePurchaseChanged)
}

func (h *Handler) HandleLinkTransfer(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, "link", h.service.LinkTransfer)
}

func (h *Handler) HandleTransferValidated(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, "validated", h.service.OnTransferValidated)
}

func (h *Handler) handleTransfer(
	w http.ResponseWriter,
	r *http.Request,
	event string,
	fn func(context.Context, id.TransferID) (*reconcile.LinkResult, error),
) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	transferID, err := id.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := fn(ctx, transferID)
	if err != nil {
		h.logger.ErrorContext(ctx, "transfer notification failed",
			"request_id", requestID,
			"event", event,
			"transfer_id", transferID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "transfer notification handled",
		"request_id", requestID,
		"event", event,
		"transfer_id", transferID,
		"outcome", res.Outcome,
		"strategy", res.Strategy,
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

type purchaseChangedResponse struct {
	Items []*models.Item `json:"items"`
}

func (h *Handler) HandlePurchaseChanged(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orderID, err := id.ParsePurchaseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.service.OnPurchaseChanged(ctx, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "purchase notification failed",
			"request_id", requestID,
			"purchase_order_id", orderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, purchaseChangedResponse{Items: items})
}
