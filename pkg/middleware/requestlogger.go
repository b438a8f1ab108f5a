package middleware

import (
	"log/slog"
	"net/http"

	"github.com/chygoz/storefront/pkg/logger"
)

// RequestLogger stores a logger enriched with whatever request identity is
// already in the context (correlation, session, store, trace) so handlers can
// fetch it with logger.FromContext. Mount it after RequestLogging, Tracing and
// the session and tenant resolvers.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
