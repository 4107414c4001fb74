// Package httptransport assembles the HTTP router. It owns middleware
// ordering and route-to-handler wiring; the handlers live with their
// features.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminhandler "zenid/internal/admin"
	audithandler "zenid/internal/audit/handler"
	jwttoken "zenid/internal/jwt_token"
	"zenid/internal/platform/metrics"
	"zenid/internal/ratelimit"
	sessionhandler "zenid/internal/session/handler"
	adminmw "zenid/pkg/platform/middleware/admin"
	authmw "zenid/pkg/platform/middleware/auth"
	"zenid/pkg/platform/middleware/device"
	"zenid/pkg/platform/middleware/metadata"
	"zenid/pkg/platform/middleware/requestid"
	"zenid/pkg/platform/middleware/requesttime"
)

// Deps carries everything the router needs. Nil optional fields disable the
// corresponding middleware.
type Deps struct {
	Sessions  *sessionhandler.Handler
	Audit     *audithandler.Handler
	Admin     *adminhandler.Handler
	Validator authmw.JWTValidator
	Limiter   *ratelimit.Middleware
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// AdminToken guards the admin surface; empty disables those routes.
	AdminToken string
}

// NewRouter wires all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Fingerprint)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public verification surface.
	r.Group(func(r chi.Router) {
		if deps.Limiter != nil {
			r.With(deps.Limiter.Limit(ratelimit.LimitSessionCreate)).
				Post("/sessions", deps.Sessions.HandleCreate)
			r.With(deps.Limiter.Limit(ratelimit.LimitTelemetry)).
				Post("/sessions/{sessionID}/telemetry", deps.Sessions.HandleSubmitTelemetry)
		} else {
			r.Post("/sessions", deps.Sessions.HandleCreate)
			r.Post("/sessions/{sessionID}/telemetry", deps.Sessions.HandleSubmitTelemetry)
		}
		r.Get("/sessions/{sessionID}", deps.Sessions.HandleStatus)
		r.Post("/sessions/{sessionID}/biometric", deps.Sessions.HandleSubmitBiometric)
	})

	// Reviewer surface.
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Validator, deps.Logger))
		r.Use(authmw.RequireRole(jwttoken.RoleReviewer, deps.Logger))
		deps.Sessions.RegisterReview(r)
	})

	// Auditor surface.
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Validator, deps.Logger))
		r.Use(authmw.RequireRole(jwttoken.RoleAuditor, deps.Logger))
		deps.Audit.Register(r)
	})

	// Operator surface, token-gated and absent unless configured.
	if deps.Admin != nil && deps.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))
			deps.Admin.Register(r)
		})
	}

	return r
}
