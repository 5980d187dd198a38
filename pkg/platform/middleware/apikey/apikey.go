package apikey

import (
	"log/slog"
	"net/http"

	"giftlist/pkg/requestcontext"
)

// HeaderName carries the provider API key on webhook calls.
const HeaderName = "X-API-Key"

// Verifier checks a presented key against the stored hash.
type Verifier interface {
	Verify(key string) error
}

// RequireAPIKey guards machine-to-machine endpoints such as carrier and
// payment-gateway webhooks.
func RequireAPIKey(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderName)
			if key == "" || verifier.Verify(key) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "api key rejected",
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", requestcontext.ClientIP(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"valid API key required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
