// Package policy holds the deployable configuration for the verification
// pipeline: provider fallback chains, retry limits and backoff, scoring
// weights and penalties, tier threshold bands, and the confidence floor for
// automated decisions. Policies are loaded at session creation and treated as
// immutable for that session's lifetime; nothing in the engines hardcodes a
// business threshold.
package policy

import (
	"time"

	"zenid/internal/domain"
	"zenid/internal/provider"
	dErrors "zenid/pkg/domain-errors"
)

// ProviderPolicy configures retry behavior for one provider in a chain.
type ProviderPolicy struct {
	ID          string        `json:"id"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
	BaseBackoff time.Duration `json:"base_backoff"`
	MaxBackoff  time.Duration `json:"max_backoff"`
}

// Chain is the ordered fallback list for one capability. The coordinator
// exhausts a provider's attempts before advancing to the next entry.
type Chain struct {
	Providers []ProviderPolicy `json:"providers"`
}

// Scoring configures the risk score formula.
type Scoring struct {
	// Weights maps factor name to weight on the unit scale. Factor names:
	// document_outcome, registry_outcome, biometric_outcome,
	// field_confidence, behavioral.
	Weights map[string]float64 `json:"weights"`
	// ConflictPenalty is subtracted from the unit-scale score per detected
	// cross-source field conflict.
	ConflictPenalty float64 `json:"conflict_penalty"`
}

// Band maps a score floor to a disposition. Bands are ordered ascending by
// Min; a score exactly on a boundary belongs to the higher (stricter) band.
type Band struct {
	Min     int            `json:"min"`
	Outcome domain.Outcome `json:"outcome"`
	Tier    domain.Tier    `json:"tier,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// StageCap declares what a failed stage does to the reachable outcome. Caps
// are policy data, not engine exceptions: a failed biometric never yielding
// the highest tier is expressed here.
type StageCap struct {
	Stage   domain.Stage `json:"stage"`
	MaxTier domain.Tier  `json:"max_tier"`
	// ForceReview short-circuits to manual review with Reason instead of
	// merely clamping the tier.
	ForceReview bool   `json:"force_review,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Decision configures the tier resolver.
type Decision struct {
	Bands []Band `json:"bands"`
	// MinConfidence is the floor below which automation must not accept or
	// reject; under-confident scores always go to manual review.
	MinConfidence float64    `json:"min_confidence"`
	Caps          []StageCap `json:"caps"`
}

// Policy is one named, immutable configuration for verification sessions.
type Policy struct {
	ID         string                        `json:"id"`
	SessionTTL time.Duration                 `json:"session_ttl"`
	Chains     map[provider.Capability]Chain `json:"chains"`
	Scoring    Scoring                       `json:"scoring"`
	Decision   Decision                      `json:"decision"`
}

// Chain returns the fallback chain for a capability, empty when unconfigured.
func (p Policy) Chain(cap provider.Capability) Chain {
	return p.Chains[cap]
}

// Validate rejects policies referencing unknown tiers, empty chains for
// mandatory capabilities, or unordered bands.
func (p Policy) Validate() error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeInvalidPolicy, "policy id is required")
	}
	if p.SessionTTL <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: session ttl must be positive", p.ID)
	}
	for _, cap := range []provider.Capability{provider.CapabilityDocument, provider.CapabilityBiometric} {
		if len(p.Chains[cap].Providers) == 0 {
			return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: capability %s has no providers", p.ID, cap)
		}
	}
	for cap, chain := range p.Chains {
		for _, pp := range chain.Providers {
			if pp.ID == "" {
				return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: capability %s has a provider without an id", p.ID, cap)
			}
			if pp.MaxAttempts <= 0 {
				return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: provider %s must allow at least one attempt", p.ID, pp.ID)
			}
			if pp.Timeout <= 0 {
				return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: provider %s needs a call timeout", p.ID, pp.ID)
			}
		}
	}
	if len(p.Decision.Bands) == 0 {
		return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: no decision bands configured", p.ID)
	}
	prev := -1
	for _, b := range p.Decision.Bands {
		if b.Min <= prev {
			return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: decision bands must be strictly ascending", p.ID)
		}
		prev = b.Min
		if b.Min < 0 || b.Min > domain.ScoreScale {
			return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: band floor %d outside score range", p.ID, b.Min)
		}
		if b.Outcome == domain.OutcomeAccepted && !b.Tier.Known() {
			return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: band at %d references unknown tier %q", p.ID, b.Min, b.Tier)
		}
	}
	if p.Decision.Bands[0].Min != 0 {
		return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: first band must start at 0", p.ID)
	}
	if p.Decision.MinConfidence < 0 || p.Decision.MinConfidence > 1 {
		return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: min confidence outside [0,1]", p.ID)
	}
	for _, cap := range p.Decision.Caps {
		if !cap.MaxTier.Known() {
			return dErrors.Newf(dErrors.CodeInvalidPolicy, "policy %s: cap for stage %s references unknown tier %q", p.ID, cap.Stage, cap.MaxTier)
		}
	}
	return nil
}
