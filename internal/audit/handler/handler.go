// Package handler wires the audit export endpoints. All routes are mounted
// behind JWT auth with the auditor role.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zenid/internal/audit"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service *audit.Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service *audit.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/sessions/{sessionID}", h.HandleExportSession)
	r.Get("/audit/sessions/{sessionID}/replay", h.HandleReplaySession)
	r.Get("/audit/events", h.HandleExportRange)
}

// HandleExportSession handles GET /audit/sessions/{sessionID}.
func (h *Handler) HandleExportSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.Export(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit trail exported",
		"request_id", requestcontext.RequestID(ctx),
		"subject", requestcontext.Subject(ctx),
		"session_id", sessionID,
		"events", len(events),
	)
	httputil.WriteJSON(w, http.StatusOK, ExportResponse{
		SessionID: sessionID.String(),
		Events:    toEventResponses(events),
	})
}

// HandleReplaySession handles GET /audit/sessions/{sessionID}/replay.
func (h *Handler) HandleReplaySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	replayed, err := h.service.Replay(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromReplayedSession(replayed))
}

// HandleExportRange handles GET /audit/events?from=&to= with RFC 3339 bounds.
func (h *Handler) HandleExportRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseTimeParam(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.ExportRange(ctx, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit range exported",
		"request_id", requestcontext.RequestID(ctx),
		"subject", requestcontext.Subject(ctx),
		"from", from,
		"to", to,
		"events", len(events),
	)
	httputil.WriteJSON(w, http.StatusOK, RangeResponse{
		From:   from,
		To:     to,
		Events: toEventResponses(events),
	})
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s query parameter is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be RFC 3339", name)
	}
	return t, nil
}
