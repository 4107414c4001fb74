// Package admin guards operational endpoints with a static admin token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// RequireAdminToken rejects requests whose X-Admin-Token header does not match
// the expected value. Comparison is constant-time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
