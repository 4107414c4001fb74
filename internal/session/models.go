// Package session owns the verification session lifecycle: the state machine,
// the manager that is the sole mutator of session state, and the stores that
// persist it. Everything else in the pipeline proposes changes through the
// manager's Advance.
package session

import (
	"time"

	"zenid/internal/domain"
	"zenid/internal/policy"
	id "zenid/pkg/domain"
)

// Phase is the coarse lifecycle position of a session. The full state is the
// phase plus the per-stage statuses; document and biometric settle
// independently, so a single flat enum cannot express it.
type Phase string

const (
	// PhaseGathering covers creation through stage settlement: document and
	// biometric run concurrently until both have a terminal status.
	PhaseGathering Phase = "gathering"
	// PhaseScoring is the synchronization point: both stages settled, score
	// and decision pending.
	PhaseScoring Phase = "scoring"
	PhaseDecided Phase = "decided"
	PhaseExpired Phase = "expired"
)

// State is the session's tagged composite state.
type State struct {
	Phase     Phase              `json:"phase"`
	Document  domain.StageStatus `json:"document"`
	Biometric domain.StageStatus `json:"biometric"`
}

// NewState is the state of a freshly created session: both mandatory stages
// pending, gathering.
func NewState() State {
	return State{
		Phase:     PhaseGathering,
		Document:  domain.StagePending,
		Biometric: domain.StagePending,
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s.Phase == PhaseDecided || s.Phase == PhaseExpired
}

// Label renders the composite state as the single word surfaced in API
// responses and logs.
func (s State) Label() string {
	switch s.Phase {
	case PhaseGathering:
		if s.Document == domain.StagePending && s.Biometric == domain.StagePending {
			return "created"
		}
		return "collecting_evidence"
	case PhaseScoring:
		return "risk_scoring"
	case PhaseDecided:
		return "decided"
	case PhaseExpired:
		return "expired"
	}
	return string(s.Phase)
}

// Override is a human correction of a decided session. The original decision
// is never mutated; the override references it and carries its own trail.
type Override struct {
	Outcome    domain.Outcome `json:"outcome"`
	Tier       domain.Tier    `json:"tier,omitempty"`
	Reason     string         `json:"reason"`
	ReviewerID string         `json:"reviewer_id"`
	// OriginalOutcome snapshots what is being overridden.
	OriginalOutcome domain.Outcome `json:"original_outcome"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Session is a single user's verification run. Only the Manager mutates it;
// every other component sees read-only snapshots.
type Session struct {
	ID       id.SessionID `json:"id"`
	UserID   id.UserID    `json:"user_id"`
	PolicyID string       `json:"policy_id"`
	// Policy is the configuration snapshot taken at creation. A policy change
	// in the registry never reaches an in-flight session.
	Policy       policy.Policy       `json:"policy"`
	DocumentRef  string              `json:"document_ref"`
	DocumentKind domain.DocumentKind `json:"document_kind"`

	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`

	// Results is the ordered sequence of settled stage results.
	Results []domain.StageResult `json:"results,omitempty"`
	// Behavioral holds the latest partial risk factors from telemetry.
	Behavioral map[string]float64 `json:"behavioral,omitempty"`

	Score     *domain.RiskScore `json:"score,omitempty"`
	Decision  *domain.Decision  `json:"decision,omitempty"`
	Overrides []Override        `json:"overrides,omitempty"`

	// Applied tracks (stage, attempt) keys already folded into the session so
	// redelivered results are absorbed without a second transition.
	Applied map[string]bool `json:"applied,omitempty"`
}

// AppliedKey is the idempotency key for one stage settlement.
func AppliedKey(stage domain.Stage, attemptID id.AttemptID) string {
	return string(stage) + "/" + attemptID.String()
}

// Evidence flattens all evidence items across settled stages in order.
func (s *Session) Evidence() []domain.EvidenceItem {
	var out []domain.EvidenceItem
	for _, r := range s.Results {
		out = append(out, r.Evidence...)
	}
	return out
}

// Clone returns a deep-enough copy safe for handing outside the manager.
func (s *Session) Clone() *Session {
	out := *s
	out.Results = append([]domain.StageResult(nil), s.Results...)
	out.Overrides = append([]Override(nil), s.Overrides...)
	if s.Behavioral != nil {
		out.Behavioral = make(map[string]float64, len(s.Behavioral))
		for k, v := range s.Behavioral {
			out.Behavioral[k] = v
		}
	}
	if s.Applied != nil {
		out.Applied = make(map[string]bool, len(s.Applied))
		for k, v := range s.Applied {
			out.Applied[k] = v
		}
	}
	if s.Score != nil {
		score := *s.Score
		out.Score = &score
	}
	if s.Decision != nil {
		decision := *s.Decision
		out.Decision = &decision
	}
	return &out
}
