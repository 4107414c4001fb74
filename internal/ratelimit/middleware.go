package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// Limit is one endpoint class budget.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
}

// Default budgets. Telemetry is batched client-side, so 120/min per IP leaves
// generous headroom for honest clients.
var (
	LimitSessionCreate = Limit{Name: "session_create", Requests: 20, Window: time.Minute}
	LimitTelemetry     = Limit{Name: "telemetry", Requests: 120, Window: time.Minute}
)

// Middleware applies per-client-IP limits.
type Middleware struct {
	store  Store
	logger *slog.Logger
}

func NewMiddleware(store Store, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, logger: logger}
}

// Limit enforces the given budget keyed by client IP. Store failures fail
// open: losing the limiter must not take down verification.
func (m *Middleware) Limit(limit Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = r.RemoteAddr
			}

			result, err := m.store.Allow(ctx, limit.Name+":"+ip, limit.Requests, limit.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"limit", limit.Name,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addHeaders(w, result)
			if !result.Allowed {
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		retryAfter := max(int(time.Until(result.ResetAt).Seconds()), 1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
}
