package handler

import (
	"encoding/json"
	"strings"

	"zenid/internal/domain"
	"zenid/internal/policy"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
)

// maxRefLength bounds external storage references.
const maxRefLength = 512

// maxTelemetryBytes bounds one telemetry batch.
const maxTelemetryBytes = 64 * 1024

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	UserID       string `json:"user_id"`
	PolicyID     string `json:"policy_id"`
	DocumentRef  string `json:"document_ref"`
	DocumentKind string `json:"document_kind"`

	parsedUserID id.UserID
	parsedKind   domain.DocumentKind
}

// Validate validates and parses the request.
func (r *CreateSessionRequest) Validate() error {
	userID, err := id.ParseUserID(strings.TrimSpace(r.UserID))
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	r.DocumentRef = strings.TrimSpace(r.DocumentRef)
	if r.DocumentRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "document_ref is required")
	}
	if len(r.DocumentRef) > maxRefLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "document_ref must be at most %d characters", maxRefLength)
	}

	kind, err := parseDocumentKind(r.DocumentKind)
	if err != nil {
		return err
	}
	r.parsedKind = kind

	r.PolicyID = strings.TrimSpace(r.PolicyID)
	if r.PolicyID == "" {
		r.PolicyID = policy.DefaultPolicyID
	}
	return nil
}

// ParsedUserID returns the validated user ID.
func (r *CreateSessionRequest) ParsedUserID() id.UserID { return r.parsedUserID }

// ParsedKind returns the validated document kind.
func (r *CreateSessionRequest) ParsedKind() domain.DocumentKind { return r.parsedKind }

func parseDocumentKind(raw string) (domain.DocumentKind, error) {
	kind := domain.DocumentKind(strings.TrimSpace(strings.ToLower(raw)))
	switch kind {
	case domain.DocumentNIN, domain.DocumentVotersCard, domain.DocumentPassport, domain.DocumentDriversLicense:
		return kind, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "document_kind is required")
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown document_kind %q", raw)
	}
}

// SubmitBiometricRequest is the body for POST /sessions/{sessionID}/biometric.
type SubmitBiometricRequest struct {
	LiveCaptureRef string `json:"live_capture_ref"`
	ReferenceRef   string `json:"reference_ref"`
	// Telemetry optionally piggybacks a behavioral batch on the biometric
	// submission so mobile clients save a round trip.
	Telemetry json.RawMessage `json:"telemetry,omitempty"`
}

// Validate validates the request.
func (r *SubmitBiometricRequest) Validate() error {
	r.LiveCaptureRef = strings.TrimSpace(r.LiveCaptureRef)
	if r.LiveCaptureRef == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "live_capture_ref is required")
	}
	if len(r.LiveCaptureRef) > maxRefLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "live_capture_ref must be at most %d characters", maxRefLength)
	}
	r.ReferenceRef = strings.TrimSpace(r.ReferenceRef)
	if len(r.ReferenceRef) > maxRefLength {
		return dErrors.Newf(dErrors.CodeInvalidInput, "reference_ref must be at most %d characters", maxRefLength)
	}
	if len(r.Telemetry) > maxTelemetryBytes {
		return dErrors.Newf(dErrors.CodeInvalidInput, "telemetry must be at most %d bytes", maxTelemetryBytes)
	}
	return nil
}

// SubmitTelemetryRequest is the body for POST /sessions/{sessionID}/telemetry.
type SubmitTelemetryRequest struct {
	Events json.RawMessage `json:"events"`
}

// Validate validates the request.
func (r *SubmitTelemetryRequest) Validate() error {
	if len(r.Events) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "events is required")
	}
	if len(r.Events) > maxTelemetryBytes {
		return dErrors.Newf(dErrors.CodeInvalidInput, "events must be at most %d bytes", maxTelemetryBytes)
	}
	return nil
}

// OverrideRequest is the body for POST /sessions/{sessionID}/override.
type OverrideRequest struct {
	Outcome string `json:"outcome"`
	Tier    string `json:"tier,omitempty"`
	Reason  string `json:"reason"`

	parsedOutcome domain.Outcome
	parsedTier    domain.Tier
}

// Validate validates and parses the request.
func (r *OverrideRequest) Validate() error {
	outcome := domain.Outcome(strings.TrimSpace(strings.ToLower(r.Outcome)))
	switch outcome {
	case domain.OutcomeAccepted, domain.OutcomeRejected, domain.OutcomeManualReview:
		r.parsedOutcome = outcome
	case "":
		return dErrors.New(dErrors.CodeInvalidInput, "outcome is required")
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown outcome %q", r.Outcome)
	}

	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}

	if r.Tier != "" {
		tier, err := domain.ParseTier(r.Tier)
		if err != nil {
			return err
		}
		r.parsedTier = tier
	}
	if r.parsedOutcome == domain.OutcomeAccepted && r.parsedTier == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "tier is required when outcome is accepted")
	}
	return nil
}

// ParsedOutcome returns the validated outcome.
func (r *OverrideRequest) ParsedOutcome() domain.Outcome { return r.parsedOutcome }

// ParsedTier returns the validated tier.
func (r *OverrideRequest) ParsedTier() domain.Tier { return r.parsedTier }
