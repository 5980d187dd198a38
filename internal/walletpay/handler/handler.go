package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"giftlist/internal/walletpay"
	"giftlist/internal/walletpay/models"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/requestcontext"
)

type Settler interface {
	Settle(ctx context.Context, orderID id.PosOrderID) (*walletpay.Settlement, error)
}

type Ledger interface {
	Wallet(ctx context.Context, walletID id.WalletID) (*models.Wallet, error)
	Entries(ctx context.Context, walletID id.WalletID) ([]models.LedgerEntry, error)
	TopUp(ctx context.Context, walletID id.WalletID, amount decimal.Decimal, ref id.PosOrderID, description string) (*models.Wallet, error)
}

type Handler struct {
	settler Settler
	ledger  Ledger
	logger  *slog.Logger
}

func New(settler Settler, ledger Ledger, logger *slog.Logger) *Handler {
	return &Handler{settler: settler, ledger: ledger, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/pos/orders/{id}/paid", h.HandleOrderPaid)
	r.Get("/wallets/{id}", h.HandleGetWallet)
	r.Post("/wallets/{id}/topups", h.HandleTopUp)
}

type settlementResponse struct {
	*walletpay.Settlement
	OrderName string `json:"order"`
	TopupName string `json:"topup,omitempty"`
}

// HandleOrderPaid is called by the register once an order is paid.
func (h *Handler) HandleOrderPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	orderID, err := id.ParsePosOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.settler.Settle(ctx, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "settlement failed",
			"request_id", requestID,
			"pos_order_id", orderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := settlementResponse{Settlement: res}
	if res.Order != nil {
		resp.OrderName = res.Order.Name
	}
	if res.Topup != nil {
		resp.TopupName = res.Topup.Name
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type walletResponse struct {
	*models.Wallet
	Entries []models.LedgerEntry `json:"entries"`
}

func (h *Handler) HandleGetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walletID, err := id.ParseWalletID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	wallet, err := h.ledger.Wallet(ctx, walletID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.ledger.Entries(ctx, walletID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, walletResponse{Wallet: wallet, Entries: entries})
}

type topUpRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PosOrderID  string          `json:"pos_order_id"`
	Description string          `json:"description"`

	ref id.PosOrderID
}

func (req *topUpRequest) Validate() error {
	if !req.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		req.Description = "Wallet Top-Up"
	}
	if req.PosOrderID != "" {
		ref, err := id.ParsePosOrderID(req.PosOrderID)
		if err != nil {
			return err
		}
		req.ref = ref
	}
	return nil
}

func (h *Handler) HandleTopUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	walletID, err := id.ParseWalletID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[topUpRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	wallet, err := h.ledger.TopUp(ctx, walletID, req.Amount, req.ref, req.Description)
	if err != nil {
		h.logger.ErrorContext(ctx, "wallet top-up failed",
			"request_id", requestID,
			"wallet_id", walletID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}
