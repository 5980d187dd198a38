package httptransport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"giftlist/pkg/platform/middleware/apikey"
	authmw "giftlist/pkg/platform/middleware/auth"
	"giftlist/pkg/requestcontext"
	"giftlist/pkg/testutil"
)

type tokenValidator map[string]string

func (v tokenValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	operator, ok := v[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return &authmw.JWTClaims{OperatorID: operator, Role: "advisor"}, nil
}

type keyVerifier string

func (k keyVerifier) Verify(key string) error {
	if key != string(k) {
		return errors.New("invalid api key")
	}
	return nil
}

type routes struct{}

func (routes) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_, _ = w.Write([]byte(requestcontext.OperatorID(ctx).String()))
	})
}

func (routes) RegisterWebhooks(r chi.Router) {
	r.Post("/hooks/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
}

type RouterSuite struct {
	suite.Suite
	handler  http.Handler
	operator uuid.UUID
	healthy  error
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.operator = uuid.New()
	s.healthy = nil
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	rt := New(logger,
		tokenValidator{"good-token": s.operator.String()},
		keyVerifier("hook-key"),
		WithOperatorRoutes(routes{}),
		WithWebhookRoutes(routes{}),
		WithHealthCheck("redis", func(context.Context) error { return s.healthy }),
	)
	s.handler = rt.Handler()
}

func (s *RouterSuite) TestOperatorRoutesNeedAToken() {
	s.Run("missing token", func() {
		rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/whoami"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("operator lands in the context", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/whoami")
		req.Header.Set("Authorization", "Bearer good-token")
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatusOK(s.T(), rr)
		s.Equal(s.operator.String(), rr.Body.String())
		s.NotEmpty(rr.Header().Get("X-Request-ID"))
	})

	s.Run("webhook key is not an operator token", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/whoami")
		req.Header.Set(apikey.HeaderName, "hook-key")
		rr := testutil.DoRequest(s.handler, req)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})
}

func (s *RouterSuite) TestWebhooksNeedTheAPIKey() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/hooks/ping")
	rr := testutil.DoRequest(s.handler, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	req = testutil.NewRequest(s.T(), http.MethodPost, "/hooks/ping")
	req.Header.Set(apikey.HeaderName, "hook-key")
	rr = testutil.DoRequest(s.handler, req)
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
}

func (s *RouterSuite) TestHealth() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(s.T(), rr)
	s.JSONEq(`{"status":"ok","checks":{"redis":"ok"}}`, rr.Body.String())

	s.healthy = errors.New("connection refused")
	rr = testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	s.JSONEq(`{"status":"degraded","checks":{"redis":"unavailable"}}`, rr.Body.String())
}

func (s *RouterSuite) TestMetricsArePublic() {
	rr := testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(s.T(), rr)
}
