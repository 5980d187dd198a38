package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"giftlist/internal/erp"
	"giftlist/internal/workflow/models"
	"giftlist/internal/workflow/ratelimit"
	"giftlist/internal/workflow/recorder"
	"giftlist/internal/workflow/secrets"
	"giftlist/internal/workflow/store"
	id "giftlist/pkg/domain"
	dErrors "giftlist/pkg/domain-errors"
	"giftlist/pkg/platform/middleware/apikey"
	"giftlist/pkg/platform/sentinel"
	"giftlist/pkg/testutil"
)

const testKey = "carrier-key"

type transfersFunc func(ctx context.Context, name string) (*erp.Transfer, error)

func (f transfersFunc) TransferByName(ctx context.Context, name string) (*erp.Transfer, error) {
	return f(ctx, name)
}

type limiterFunc func(key string) ratelimit.Result

func (f limiterFunc) Allow(_ context.Context, key string, _ int, _ time.Duration) (ratelimit.Result, error) {
	return f(key), nil
}

type HandlerSuite struct {
	suite.Suite
	router   http.Handler
	recorder *recorder.Recorder
	delivery *erp.Transfer
	limited  bool
	keys     []string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	hash, err := secrets.Hash(testKey)
	s.Require().NoError(err)

	s.delivery = &erp.Transfer{
		ID:      id.TransferID(uuid.New()),
		Name:    "WH/OUT/00007",
		Type:    erp.TransferOutgoing,
		Partner: id.PartnerID(uuid.New()),
	}
	transfers := transfersFunc(func(_ context.Context, name string) (*erp.Transfer, error) {
		if name == s.delivery.Name {
			return s.delivery, nil
		}
		return nil, fmt.Errorf("transfer %q: %w", name, sentinel.ErrNotFound)
	})
	limiter := limiterFunc(func(key string) ratelimit.Result {
		s.keys = append(s.keys, key)
		if s.limited {
			return ratelimit.Result{Allowed: false, ResetAt: time.Now().Add(time.Minute)}
		}
		return ratelimit.Result{Allowed: true, Remaining: 99}
	})

	s.recorder = recorder.New(store.NewInMemory())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := New(s.recorder, transfers, limiter, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(apikey.RequireAPIKey(secrets.NewKeyVerifier(hash), logger))
		h.RegisterWebhooks(r)
	})
	s.router = r
}

func (s *HandlerSuite) SetupTest() {
	s.limited = false
	s.keys = nil
}

func (s *HandlerSuite) webhook(path, key string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, body)
	if key != "" {
		req.Header.Set(apikey.HeaderName, key)
	}
	return req
}

func (s *HandlerSuite) TestShippingWebhook() {
	body := map[string]any{
		"tracking_number": "1Z999",
		"status":          "in_transit",
		"document_ref":    "WH/OUT/00007",
		"location":        "Madrid, Spain",
	}

	s.Run("missing key", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", "", body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})

	s.Run("wrong key", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", "nope", body))
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("logs the status against the transfer", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", testKey, body))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[webhookResponse](s.T(), rr)
		s.True(resp.Success)

		history, err := s.recorder.History(context.Background(), models.Filter{ResID: uuid.UUID(s.delivery.ID)})
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		a := history[0]
		s.Equal(resp.ActionID, a.ID)
		s.Equal(models.ActionAPIShipmentInTransit, a.ActionType)
		s.Equal(models.SourceAPI, a.Source)
		s.Equal("dhl", a.Provider)
		s.Equal(s.delivery.Partner, a.Partner)
		s.Equal("Webhook from dhl: in_transit - Madrid, Spain", a.Note)
		s.Equal([]string{ratelimit.Key("dhl", "192.0.2.1")}, s.keys)
	})

	s.Run("required fields", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", testKey, map[string]any{"status": "delivered"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown transfer", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", testKey, map[string]any{
			"tracking_number": "1Z999", "status": "delivered", "document_ref": "WH/OUT/99999",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("rate limited", func() {
		s.limited = true
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/shipping/dhl", testKey, body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, string(dErrors.CodeRateLimited))
		s.NotEmpty(rr.Header().Get("Retry-After"))
	})
}

func (s *HandlerSuite) TestPaymentWebhook() {
	resID := uuid.New()

	s.Run("logs against the POS order by default", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/payment/stripe", testKey, map[string]any{
			"payment_id":   "pay_123",
			"status":       "confirmed",
			"amount":       "100.00",
			"currency":     "EUR",
			"document_ref": "Order 00042",
			"res_id":       resID.String(),
		}))
		testutil.AssertStatusOK(s.T(), rr)

		history, err := s.recorder.History(context.Background(), models.Filter{ResID: resID})
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.Equal(models.DocPosOrder, history[0].DocumentType)
		s.Equal(models.ActionAPIPaymentConfirmed, history[0].ActionType)
		s.Require().NotNil(history[0].Amount)
		s.Equal("100", history[0].Amount.String())
		s.Equal("Payment webhook from stripe: confirmed (100.00 EUR)", history[0].Note)
	})

	s.Run("required fields", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/payment/stripe", testKey, map[string]any{"status": "failed"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unknown document type", func() {
		rr := testutil.DoRequest(s.router, s.webhook("/workflow/webhook/payment/stripe", testKey, map[string]any{
			"payment_id": "pay_1", "status": "failed", "document_type": "invoice_out",
		}))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestListActions() {
	listID := uuid.New()
	s.recorder.Record(context.Background(), models.Action{
		DocumentType: models.DocGiftList,
		DocumentRef:  "Baby Ana",
		ResID:        listID,
		ActionType:   models.ActionCreation,
	})

	s.Run("filters by document", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
			"/workflow/actions?document_type=gift_list&res_id="+listID.String()))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[actionsResponse](s.T(), rr)
		s.Require().Len(resp.Actions, 1)
		s.Equal(models.ActionCreation, resp.Actions[0].ActionType)
		s.Equal(models.SourceSystem, resp.Actions[0].Source)
	})

	s.Run("empty history is an empty list", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/workflow/actions?res_id="+uuid.NewString()))
		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"actions":[]}`, rr.Body.String())
	})

	s.Run("bad filters", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/workflow/actions?document_type=invoice"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/workflow/actions?res_id=42"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}
