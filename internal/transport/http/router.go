// Package httptransport assembles the HTTP surface: shared middleware, the
// operator API behind JWT auth, provider webhooks behind the API key, and the
// public health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"giftlist/internal/platform/metrics"
	"giftlist/pkg/platform/httputil"
	"giftlist/pkg/platform/middleware/apikey"
	authmw "giftlist/pkg/platform/middleware/auth"
	"giftlist/pkg/platform/middleware/metadata"
	"giftlist/pkg/platform/middleware/requesttime"
)

// Registrar mounts a bounded context's operator routes.
type Registrar interface {
	Register(r chi.Router)
}

// WebhookRegistrar mounts routes called by external providers.
type WebhookRegistrar interface {
	RegisterWebhooks(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Router struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tokens      authmw.JWTValidator
	keys        apikey.Verifier
	serviceName string
	checks      map[string]HealthCheck
	operator    []Registrar
	webhooks    []WebhookRegistrar
}

type Option func(*Router)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func WithServiceName(name string) Option {
	return func(r *Router) {
		r.serviceName = name
	}
}

// WithHealthCheck adds a dependency probed by /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(r *Router) {
		r.checks[name] = check
	}
}

func WithOperatorRoutes(registrars ...Registrar) Option {
	return func(r *Router) {
		r.operator = append(r.operator, registrars...)
	}
}

func WithWebhookRoutes(registrars ...WebhookRegistrar) Option {
	return func(r *Router) {
		r.webhooks = append(r.webhooks, registrars...)
	}
}

func New(logger *slog.Logger, tokens authmw.JWTValidator, keys apikey.Verifier, opts ...Option) *Router {
	r := &Router{
		logger:      logger,
		tokens:      tokens,
		keys:        keys,
		serviceName: "giftlist",
		checks:      make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handler builds the chi mux wrapped in OpenTelemetry instrumentation.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}

	r.Get("/healthz", rt.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(rt.tokens, rt.logger))
		for _, reg := range rt.operator {
			reg.Register(r)
		}
	})
	r.Group(func(r chi.Router) {
		r.Use(apikey.RequireAPIKey(rt.keys, rt.logger))
		for _, reg := range rt.webhooks {
			reg.RegisterWebhooks(r)
		}
	})

	return otelhttp.NewHandler(r, rt.serviceName,
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/healthz" && req.URL.Path != "/metrics"
		}),
	)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(rt.checks) > 0 {
		resp.Checks = make(map[string]string, len(rt.checks))
	}
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			rt.logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}
