package httpapi

import (
	"net/http"
	"strings"

	"github.com/Overland-East-Bay/stockroom/internal/domain"
)

// HeaderSubject carries the caller identity in dev deployments.
const HeaderSubject = "X-Debug-Subject"

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit owner via X-Debug-Subject and stores it in request context.
// If the header is absent, it falls back to defaultOwner (if provided).
//
// Do NOT use this in production deployments.
func NewDevAuthMiddleware(defaultOwner string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health endpoint is deliberately unauthenticated.
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			owner := strings.TrimSpace(r.Header.Get(HeaderSubject))
			if owner == "" {
				owner = strings.TrimSpace(defaultOwner)
			}
			if owner == "" {
				writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "missing subject (set X-Debug-Subject)", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), domain.OwnerID(owner))))
		})
	}
}
