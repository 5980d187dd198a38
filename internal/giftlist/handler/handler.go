// Package handler exposes gift lists and their items to the back office.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"giftlist/internal/giftlist/models"
	giftsvc "giftlist/internal/giftlist/service"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/requestcontext"
)

type Service interface {
	CreateList(ctx context.Context, req giftsvc.CreateListRequest) (*models.List, error)
	GetList(ctx context.Context, listID id.ListID) (*models.List, error)
	UpdateList(ctx context.Context, listID id.ListID, patch giftsvc.ListPatch) (*models.List, error)
	ActivateList(ctx context.Context, listID id.ListID) (*models.List, error)
	DeactivateList(ctx context.Context, listID id.ListID) (*models.List, error)
	CompleteList(ctx context.Context, listID id.ListID, confirm bool) (*models.List, error)
	Summary(ctx context.Context, listID id.ListID) (*giftsvc.ListSummary, error)

	AddItem(ctx context.Context, req giftsvc.AddItemRequest) (*models.Item, error)
	ListItems(ctx context.Context, listID id.ListID) ([]*models.Item, error)
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID id.ItemID, patch giftsvc.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID id.ItemID) error
	CancelItem(ctx context.Context, itemID id.ItemID, reason models.CancelReason, detail string) (*models.Item, error)
	ReturnItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	Recompute(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	DeriveState(ctx context.Context, itemID id.ItemID) (models.State, string, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/lists", func(r chi.Router) {
		r.Post("/", h.HandleCreateList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetList)
			r.Patch("/", h.HandleUpdateList)
			r.Get("/summary", h.HandleSummary)
			r.Post("/activate", h.listTransition("activate", h.service.ActivateList))
			r.Post("/deactivate", h.listTransition("deactivate", h.service.DeactivateList))
			r.Post("/complete", h.HandleCompleteList)
			r.Post("/items", h.HandleAddItem)
			r.Get("/items", h.HandleListItems)
		})
	})
	r.Route("/items/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetItem)
		r.Patch("/", h.HandleUpdateItem)
		r.Delete("/", h.HandleDeleteItem)
		r.Post("/cancel", h.HandleCancelItem)
		r.Post("/return", h.itemAction("return", h.service.ReturnItem))
		r.Post("/recompute", h.itemAction("recompute", h.service.Recompute))
		r.Get("/state", h.HandleItemState)
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, action string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, action+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func listID(r *http.Request) (id.ListID, error) {
	return id.ParseListID(chi.URLParam(r, "id"))
}

func itemID(r *http.Request) (id.ItemID, error) {
	return id.ParseItemID(chi.URLParam(r, "id"))
}

func (h *Handler) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateListRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	l, err := h.service.CreateList(ctx, req.parsed)
	if err != nil {
		h.fail(ctx, w, "create list", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, l)
}

func (h *Handler) HandleGetList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	l, err := h.service.GetList(ctx, listID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) HandleUpdateList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateListRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	l, err := h.service.UpdateList(ctx, listID, req.parsed)
	if err != nil {
		h.fail(ctx, w, "update list", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.Summary(ctx, listID)
	if err != nil {
		h.fail(ctx, w, "list summary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) listTransition(action string, fn func(context.Context, id.ListID) (*models.List, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		listID, err := listID(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		l, err := fn(ctx, listID)
		if err != nil {
			h.fail(ctx, w, action+" list", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, l)
	}
}

func (h *Handler) HandleCompleteList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CompleteListRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	l, err := h.service.CompleteList(ctx, listID, req.Confirm)
	if err != nil {
		h.fail(ctx, w, "complete list", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddItemRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	it, err := h.service.AddItem(ctx, giftsvc.AddItemRequest{
		ListID:    listID,
		ProductID: req.product,
		PriceUnit: req.PriceUnit,
		Discount:  req.Discount,
		Sequence:  req.Sequence,
	})
	if err != nil {
		h.fail(ctx, w, "add item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, it)
}

type itemsResponse struct {
	Items []*models.Item `json:"items"`
}

func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID, err := listID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	items, err := h.service.ListItems(ctx, listID)
	if err != nil {
		h.fail(ctx, w, "list items", err)
		return
	}
	if items == nil {
		items = []*models.Item{}
	}
	httputil.WriteJSON(w, http.StatusOK, itemsResponse{Items: items})
}

func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	it, err := h.service.GetItem(ctx, itemID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, it)
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&raw); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}
	patch, err := itemPatch(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	it, err := h.service.UpdateItem(ctx, itemID, patch)
	if err != nil {
		h.fail(ctx, w, "update item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, it)
}

func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteItem(ctx, itemID); err != nil {
		h.fail(ctx, w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCancelItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[CancelItemRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	it, err := h.service.CancelItem(ctx, itemID, req.reason, req.Detail)
	if err != nil {
		h.fail(ctx, w, "cancel item", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, it)
}

func (h *Handler) itemAction(action string, fn func(context.Context, id.ItemID) (*models.Item, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		itemID, err := itemID(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		it, err := fn(ctx, itemID)
		if err != nil {
			h.fail(ctx, w, action+" item", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, it)
	}
}

type stateResponse struct {
	ItemID id.ItemID    `json:"item_id"`
	State  models.State `json:"state"`
	Rule   string       `json:"rule"`
}

// HandleItemState derives the state without persisting it.
func (h *Handler) HandleItemState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID, err := itemID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, rule, err := h.service.DeriveState(ctx, itemID)
	if err != nil {
		h.fail(ctx, w, "derive state", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stateResponse{ItemID: itemID, State: state, Rule: rule})
}
