package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giftlist/internal/giftlist/models"
	id "giftlist/pkg/domain"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/requestcontext"
)

type Service interface {
	CreateDelivery(ctx context.Context, itemID id.ItemID) (*models.Item, error)
}

// Handler exposes the manual fulfillment actions of the back office.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/items/{id}/delivery", h.HandleCreateDelivery)
}

// HandleCreateDelivery handles POST /items/{id}/delivery.
func (h *Handler) HandleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	itemID, err := id.ParseItemID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	it, err := h.service.CreateDelivery(ctx, itemID)
	if err != nil {
		h.logger.WarnContext(ctx, "delivery creation failed",
			"request_id", requestID,
			"item_id", itemID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, it)
}
