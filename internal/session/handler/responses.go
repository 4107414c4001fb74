package handler

import (
	"sort"
	"time"

	"zenid/internal/domain"
	"zenid/internal/session"
)

// CreateSessionResponse is the body for POST /sessions.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Deadline  time.Time `json:"deadline"`
}

// AcceptedResponse acknowledges an asynchronous submission.
type AcceptedResponse struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// StatusResponse is the body for GET /sessions/{sessionID}. Evidence is
// summarized; raw provider payloads never leave the audit trail.
type StatusResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	PolicyID  string    `json:"policy_id"`
	State     string    `json:"state"`
	Document  string    `json:"document_stage"`
	Biometric string    `json:"biometric_stage"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`

	Evidence  []EvidenceSummary  `json:"evidence,omitempty"`
	Score     *ScoreResponse     `json:"score,omitempty"`
	Decision  *DecisionResponse  `json:"decision,omitempty"`
	Overrides []OverrideResponse `json:"overrides,omitempty"`
}

// EvidenceSummary is the client-safe view of one evidence item.
type EvidenceSummary struct {
	Stage          string    `json:"stage"`
	ProviderID     string    `json:"provider_id"`
	Failed         bool      `json:"failed,omitempty"`
	FailureKind    string    `json:"failure_kind,omitempty"`
	Fields         []string  `json:"fields,omitempty"`
	MeanConfidence float64   `json:"mean_confidence"`
	Timestamp      time.Time `json:"timestamp"`
}

// ScoreResponse is the client view of a risk score.
type ScoreResponse struct {
	Value      int                `json:"value"`
	Confidence float64            `json:"confidence"`
	Factors    map[string]float64 `json:"factors"`
}

// DecisionResponse is the client view of a decision.
type DecisionResponse struct {
	Outcome   string    `json:"outcome"`
	Tier      string    `json:"tier,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// OverrideResponse is the client view of a reviewer override.
type OverrideResponse struct {
	Outcome         string    `json:"outcome"`
	Tier            string    `json:"tier,omitempty"`
	Reason          string    `json:"reason"`
	ReviewerID      string    `json:"reviewer_id"`
	OriginalOutcome string    `json:"original_outcome"`
	Timestamp       time.Time `json:"timestamp"`
}

// FromSession converts a session snapshot into the status response.
func FromSession(sess *session.Session) *StatusResponse {
	resp := &StatusResponse{
		SessionID: sess.ID.String(),
		UserID:    sess.UserID.String(),
		PolicyID:  sess.PolicyID,
		State:     sess.State.Label(),
		Document:  string(sess.State.Document),
		Biometric: string(sess.State.Biometric),
		CreatedAt: sess.CreatedAt,
		Deadline:  sess.Deadline,
	}

	for _, item := range sess.Evidence() {
		resp.Evidence = append(resp.Evidence, summarize(item))
	}

	if sess.Score != nil {
		resp.Score = &ScoreResponse{
			Value:      sess.Score.Value,
			Confidence: sess.Score.Confidence,
			Factors:    sess.Score.Factors,
		}
	}
	if sess.Decision != nil {
		resp.Decision = &DecisionResponse{
			Outcome:   string(sess.Decision.Outcome),
			Tier:      string(sess.Decision.Tier),
			Reason:    sess.Decision.Reason,
			DecidedAt: sess.Decision.DecidedAt,
		}
	}
	for _, o := range sess.Overrides {
		resp.Overrides = append(resp.Overrides, OverrideResponse{
			Outcome:         string(o.Outcome),
			Tier:            string(o.Tier),
			Reason:          o.Reason,
			ReviewerID:      o.ReviewerID,
			OriginalOutcome: string(o.OriginalOutcome),
			Timestamp:       o.Timestamp,
		})
	}
	return resp
}

func summarize(item domain.EvidenceItem) EvidenceSummary {
	s := EvidenceSummary{
		Stage:          string(item.Stage),
		ProviderID:     item.ProviderID,
		Failed:         item.Failed,
		FailureKind:    item.FailureKind,
		MeanConfidence: item.MeanConfidence(),
		Timestamp:      item.Timestamp,
	}
	for name := range item.Fields {
		s.Fields = append(s.Fields, name)
	}
	sort.Strings(s.Fields)
	return s
}
