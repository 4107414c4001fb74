// Package admin exposes operational endpoints for policy management. The
// routes are mounted behind the static admin token; they exist for operators,
// not applicants.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zenid/internal/policy"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/httputil"
	"zenid/pkg/requestcontext"
)

// Handler manages the runtime policy registry. Changes apply to sessions
// created afterwards; in-flight sessions keep their snapshot.
type Handler struct {
	policies *policy.Registry
	logger   *slog.Logger
}

func New(policies *policy.Registry, logger *slog.Logger) *Handler {
	return &Handler{policies: policies, logger: logger}
}

// Register mounts the admin endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Put("/admin/policies", h.HandlePutPolicy)
	r.Get("/admin/policies/{policyID}", h.HandleGetPolicy)
}

// HandlePutPolicy handles PUT /admin/policies: validate and upsert.
func (h *Handler) HandlePutPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p policy.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed policy"))
		return
	}
	if err := h.policies.Put(p); err != nil {
		h.logger.WarnContext(ctx, "policy upsert rejected",
			"request_id", requestcontext.RequestID(ctx),
			"policy_id", p.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy upserted",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", p.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"policy_id": p.ID, "status": "active"})
}

// HandleGetPolicy handles GET /admin/policies/{policyID}.
func (h *Handler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.policies.Get(chi.URLParam(r, "policyID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "policy not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
