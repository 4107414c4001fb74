// Package handler is the HTTP surface of the verification pipeline. It
// delegates to the session manager and never touches session state directly.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"zenid/internal/domain"
	"zenid/internal/session"
	id "zenid/pkg/domain"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// Service defines the session operations the transport layer needs.
type Service interface {
	CreateSession(ctx context.Context, userID id.UserID, policyID string, documentRef string, kind domain.DocumentKind) (*session.Session, error)
	SubmitBiometric(ctx context.Context, sessionID id.SessionID, liveCaptureRef, referenceRef string, telemetry []byte) error
	SubmitTelemetry(ctx context.Context, sessionID id.SessionID, telemetry []byte) error
	GetStatus(ctx context.Context, sessionID id.SessionID) (*session.Session, error)
	OverrideDecision(ctx context.Context, sessionID id.SessionID, o session.Override) error
}

// Handler wires session endpoints to the session manager.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a session handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public session endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions", h.HandleCreate)
	r.Get("/sessions/{sessionID}", h.HandleStatus)
	r.Post("/sessions/{sessionID}/biometric", h.HandleSubmitBiometric)
	r.Post("/sessions/{sessionID}/telemetry", h.HandleSubmitTelemetry)
}

// RegisterReview mounts the reviewer-only endpoints.
func (h *Handler) RegisterReview(r chi.Router) {
	r.Post("/sessions/{sessionID}/override", h.HandleOverride)
}

// HandleCreate handles POST /sessions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CreateSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	sess, err := h.service.CreateSession(ctx, req.ParsedUserID(), req.PolicyID, req.DocumentRef, req.ParsedKind())
	if err != nil {
		h.logger.ErrorContext(ctx, "session creation failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"policy_id", req.PolicyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "session created",
		"request_id", requestID,
		"session_id", sess.ID,
		"user_id", sess.UserID,
		"policy_id", sess.PolicyID,
		"document_kind", sess.DocumentKind,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID.String(),
		State:     sess.State.Label(),
		Deadline:  sess.Deadline,
	})
}

// HandleStatus handles GET /sessions/{sessionID}.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.service.GetStatus(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromSession(sess))
}

// HandleSubmitBiometric handles POST /sessions/{sessionID}/biometric.
func (h *Handler) HandleSubmitBiometric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitBiometricRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SubmitBiometric(ctx, sessionID, req.LiveCaptureRef, req.ReferenceRef, req.Telemetry); err != nil {
		h.logger.WarnContext(ctx, "biometric submission rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "biometric submitted",
		"request_id", requestID,
		"session_id", sessionID,
		"device_fingerprint", requestcontext.DeviceFingerprint(ctx) != "",
	)

	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{
		SessionID: sessionID.String(),
		State:     "collecting_evidence",
	})
}

// HandleSubmitTelemetry handles POST /sessions/{sessionID}/telemetry.
func (h *Handler) HandleSubmitTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitTelemetryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SubmitTelemetry(ctx, sessionID, req.Events); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, AcceptedResponse{
		SessionID: sessionID.String(),
		State:     "collecting_evidence",
	})
}

// HandleOverride handles POST /sessions/{sessionID}/override. The route is
// mounted behind the reviewer role.
func (h *Handler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	override := session.Override{
		Outcome:    req.ParsedOutcome(),
		Tier:       req.ParsedTier(),
		Reason:     req.Reason,
		ReviewerID: requestcontext.Subject(ctx),
	}
	if err := h.service.OverrideDecision(ctx, sessionID, override); err != nil {
		h.logger.WarnContext(ctx, "decision override rejected",
			"request_id", requestID,
			"session_id", sessionID,
			"reviewer", override.ReviewerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision overridden",
		"request_id", requestID,
		"session_id", sessionID,
		"reviewer", override.ReviewerID,
		"outcome", override.Outcome,
	)

	sess, err := h.service.GetStatus(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(sess))
}
