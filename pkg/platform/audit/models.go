// Package audit is the append-only ledger of the verification pipeline.
// Every state transition, provider attempt, and decision lands here before
// the mutation it describes is considered committed; replaying a session's
// events from empty reconstructs its state exactly.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	id "zenid/pkg/domain"
)

// EventType names what happened. Types are part of the replay contract:
// renaming one breaks reconstruction of historical sessions.
type EventType string

const (
	EventSessionCreated     EventType = "session_created"
	EventBiometricSubmitted EventType = "biometric_submitted"
	EventTelemetryReceived  EventType = "telemetry_received"
	EventProviderAttempted  EventType = "provider_attempted"
	EventStageSettled       EventType = "stage_settled"
	EventRiskScored         EventType = "risk_scored"
	EventDecisionMade       EventType = "decision_made"
	EventSessionExpired     EventType = "session_expired"
	EventDecisionOverridden EventType = "decision_overridden"
)

// Category classifies events for retention and routing. Compliance events
// require tamper-proof storage and long retention; operations events can be
// sampled downstream.
type Category string

const (
	CategoryCompliance Category = "compliance"
	CategoryOperations Category = "operations"
)

var eventCategories = map[EventType]Category{
	EventSessionCreated:     CategoryCompliance,
	EventStageSettled:       CategoryCompliance,
	EventRiskScored:         CategoryCompliance,
	EventDecisionMade:       CategoryCompliance,
	EventSessionExpired:     CategoryCompliance,
	EventDecisionOverridden: CategoryCompliance,

	EventBiometricSubmitted: CategoryOperations,
	EventTelemetryReceived:  CategoryOperations,
	EventProviderAttempted:  CategoryOperations,
}

// Category returns the event type's category, defaulting to operations.
func (t EventType) Category() Category {
	if c, ok := eventCategories[t]; ok {
		return c
	}
	return CategoryOperations
}

// Event is one immutable ledger entry. Seq is strictly monotonic per session
// starting at 1; the payload is a snapshot, never a reference into live state.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	SessionID id.SessionID    `json:"session_id"`
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store persists the ledger. Append must reject events whose Seq is not
// exactly LastSeq+1 for the session, so a buggy writer cannot fork history.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Event, error)
	ListRange(ctx context.Context, from, to time.Time) ([]Event, error)
	LastSeq(ctx context.Context, sessionID id.SessionID) (uint64, error)
}

// Publisher streams committed events to an external sink (e.g. Kafka) for
// downstream compliance consumers. Publishing is best-effort and must never
// block or fail the write path; the store is the source of truth.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
