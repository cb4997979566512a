package middleware

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"campushub/pkg/requestcontext"
)

// Actor resolves the acting user from the X-User-ID header set by the
// authenticating gateway in front of this service. Session issuance and
// token verification live there; this service only needs a trusted identity.
func Actor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-User-ID")
			if raw == "" {
				http.Error(w, "missing X-User-ID", http.StatusUnauthorized)
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				logger.WarnContext(r.Context(), "malformed X-User-ID header", "value", raw)
				http.Error(w, "malformed X-User-ID", http.StatusUnauthorized)
				return
			}
			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
