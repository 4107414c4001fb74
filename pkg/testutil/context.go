package testutil

import (
	"context"
	"net/http"

	id "zenid/pkg/domain"
	authmw "zenid/pkg/platform/middleware/auth"
	"zenid/pkg/requestcontext"
)

// WithUserID adds an authenticated user ID to the request context, simulating
// what the auth middleware would do.
func WithUserID(req *http.Request, userID id.UserID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

// WithSubject adds a token subject to the request context.
func WithSubject(req *http.Request, subject string) *http.Request {
	ctx := requestcontext.WithSubject(req.Context(), subject)
	return req.WithContext(ctx)
}

// WithRole adds a principal role to the request context.
func WithRole(req *http.Request, role string) *http.Request {
	ctx := context.WithValue(req.Context(), authmw.ContextKeyRole, role)
	return req.WithContext(ctx)
}
