// Package auth provides JWT bearer authentication middleware for the audit
// export and review surfaces.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// JWTValidator validates bearer tokens and returns the claims this service
// cares about.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the middleware-facing view of a validated token.
type JWTClaims struct {
	Subject string
	UserID  id.UserID
	Role    string
	JTI     string
}

type contextKeyRole struct{}

// ContextKeyRole is exported for tests that build contexts directly.
var ContextKeyRole = contextKeyRole{}

// Role returns the authenticated principal's role, or empty.
func Role(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRole).(string); ok {
		return v
	}
	return ""
}

// RequireAuth rejects requests without a valid bearer token and stores the
// subject, user ID, and role in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			if !claims.UserID.IsNil() {
				ctx = requestcontext.WithUserID(ctx, claims.UserID)
			}
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose token does not carry the
// given role. Mount it after RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if Role(ctx) != role {
				logger.WarnContext(ctx, "forbidden - missing role",
					"request_id", requestcontext.RequestID(ctx),
					"required_role", role,
				)
				httputil.WriteError(w, dErrors.Newf(dErrors.CodeUnauthorized, "role %q required", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
