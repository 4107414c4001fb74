package domain

import "time"

// Outcome is the final disposition of a verification session.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeRejected     Outcome = "rejected"
	OutcomeManualReview Outcome = "manual_review"
)

// Decision is set exactly once per session and is terminal. A later human
// correction is modeled as a distinct override event referencing the original,
// never as a mutation of this value.
type Decision struct {
	Outcome   Outcome   `json:"outcome"`
	Tier      Tier      `json:"tier,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Score     RiskScore `json:"score"`
	DecidedAt time.Time `json:"decided_at"`
}
