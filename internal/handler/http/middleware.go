package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/chygoz/storefront/internal/domain"
	"github.com/chygoz/storefront/pkg/httputil"
	"github.com/chygoz/storefront/pkg/logger"
	"github.com/chygoz/storefront/pkg/middleware"
	"github.com/chygoz/storefront/pkg/slug"
)

type contextKey string

const (
	storeIDKey   contextKey = "store_id"
	sessionIDKey contextKey = "session_id"
)

// TenantFromHost resolves the storefront a request is made against. The
// left-most label of a Host under baseDomain wins ("acme.shop.example" with
// base "shop.example" is store "acme"); otherwise the X-Store-ID header is
// used as an opaque id. Requests naming no store, or an invalid one, are
// rejected with 400.
func TenantFromHost(baseDomain string) func(http.Handler) http.Handler {
	suffix := "." + strings.ToLower(strings.Trim(baseDomain, "."))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storeID := ""
			if baseDomain != "" {
				storeID = subdomain(r.Host, suffix)
			}
			if storeID == "" {
				storeID = strings.TrimSpace(r.Header.Get(middleware.StoreHeader))
			}
			if storeID == "" {
				httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_INPUT", "store could not be resolved from host or X-Store-ID header")
				return
			}
			if !domain.ValidStoreID(storeID) {
				httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_INPUT", "X-Store-ID header is not a valid store id")
				return
			}

			ctx := context.WithValue(r.Context(), storeIDKey, storeID)
			ctx = logger.WithStoreID(ctx, storeID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("store_id", storeID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func subdomain(host, suffix string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	labels := strings.TrimSuffix(host, suffix)
	first, _, _ := strings.Cut(labels, ".")
	if !slug.Valid(first) {
		return ""
	}
	return first
}

// SessionFromHeader reads the anonymous shopper session from X-Session-ID.
// Requests without one are rejected with 401.
func SessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(middleware.SessionHeader))
		if sid == "" {
			httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "X-Session-ID header is required")
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sid)
		ctx = logger.WithSessionID(ctx, sid)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("session_id", sid)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func storeIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(storeIDKey).(string)
	return id
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// ContentTypeJSON rejects request bodies that are not application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteErrorCode(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
