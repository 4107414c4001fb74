package handler

import (
	"encoding/json"
	"time"

	"zenid/internal/session"
	"zenid/pkg/platform/audit"
)

// EventResponse is one ledger entry in export payloads.
type EventResponse struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Seq       uint64          `json:"seq"`
	Type      string          `json:"type"`
	Category  string          `json:"category"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExportResponse is the body for GET /audit/sessions/{sessionID}.
type ExportResponse struct {
	SessionID string          `json:"session_id"`
	Events    []EventResponse `json:"events"`
}

// RangeResponse is the body for GET /audit/events.
type RangeResponse struct {
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Events []EventResponse `json:"events"`
}

// ReplayResponse summarizes a session reconstructed from its ledger.
type ReplayResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	PolicyID  string `json:"policy_id"`
	State     string `json:"state"`
	Stages    int    `json:"settled_stages"`
	Score     *int   `json:"score,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Tier      string `json:"tier,omitempty"`
}

func toEventResponses(events []audit.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:        e.ID.String(),
			SessionID: e.SessionID.String(),
			Seq:       e.Seq,
			Type:      string(e.Type),
			Category:  string(e.Type.Category()),
			Payload:   e.Payload,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

// FromReplayedSession converts a replayed session into the response shape.
func FromReplayedSession(sess *session.Session) *ReplayResponse {
	resp := &ReplayResponse{
		SessionID: sess.ID.String(),
		UserID:    sess.UserID.String(),
		PolicyID:  sess.PolicyID,
		State:     sess.State.Label(),
		Stages:    len(sess.Results),
	}
	if sess.Score != nil {
		score := sess.Score.Value
		resp.Score = &score
	}
	if sess.Decision != nil {
		resp.Outcome = string(sess.Decision.Outcome)
		resp.Tier = string(sess.Decision.Tier)
	}
	return resp
}
