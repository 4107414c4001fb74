package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"zenid/internal/domain"
	"zenid/internal/provider"
	dErrors "zenid/pkg/domain-errors"
)

// Registry maps policy identifiers to validated policies. Lookups return
// copies so in-flight sessions keep the configuration they were created
// under; replacing a policy only affects sessions created afterwards.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Put validates and registers (or replaces) a policy.
func (r *Registry) Put(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID] = p
	return nil
}

// Get returns the policy for id, or InvalidPolicy when unknown.
func (r *Registry) Get(id string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	if !ok {
		return Policy{}, dErrors.Newf(dErrors.CodeInvalidPolicy, "unknown policy %q", id)
	}
	return p, nil
}

// LoadFile reads a JSON array of policies and registers each one.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var policies []Policy
	if err := json.Unmarshal(raw, &policies); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidPolicy, "malformed policy file")
	}
	for _, p := range policies {
		if err := r.Put(p); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPolicyID names the seed policy registered at startup.
const DefaultPolicyID = "default"

// Default is the seed policy used when no policy file is configured. The
// thresholds mirror the verification settings the pipeline shipped with:
// document OCR floor 0.7, liveness 0.8, face match 0.75, manual review below
// mid-band, registry timeout 30s with 3 attempts.
func Default() Policy {
	return Policy{
		ID:         DefaultPolicyID,
		SessionTTL: 15 * time.Minute,
		Chains: map[provider.Capability]Chain{
			provider.CapabilityDocument: {Providers: []ProviderPolicy{
				{ID: "ocr-primary", MaxAttempts: 3, Timeout: 10 * time.Second, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second},
				{ID: "ocr-fallback", MaxAttempts: 2, Timeout: 10 * time.Second, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second},
			}},
			provider.CapabilityRegistry: {Providers: []ProviderPolicy{
				{ID: "gov-registry", MaxAttempts: 3, Timeout: 30 * time.Second, BaseBackoff: 500 * time.Millisecond, MaxBackoff: 4 * time.Second},
			}},
			provider.CapabilityBiometric: {Providers: []ProviderPolicy{
				{ID: "facial-primary", MaxAttempts: 2, Timeout: 15 * time.Second, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second},
				{ID: "facial-fallback", MaxAttempts: 2, Timeout: 15 * time.Second, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second},
			}},
			provider.CapabilityBehavioral: {Providers: []ProviderPolicy{
				{ID: "behavioral", MaxAttempts: 2, Timeout: 5 * time.Second, BaseBackoff: 250 * time.Millisecond, MaxBackoff: time.Second},
			}},
		},
		Scoring: Scoring{
			Weights: map[string]float64{
				"document_outcome":  0.25,
				"biometric_outcome": 0.25,
				"registry_outcome":  0.15,
				"field_confidence":  0.20,
				"behavioral":        0.15,
			},
			// Identity conflicts are near-disqualifying under the default
			// risk appetite.
			ConflictPenalty: 0.6,
		},
		Decision: Decision{
			MinConfidence: 0.5,
			Bands: []Band{
				{Min: 0, Outcome: domain.OutcomeRejected, Reason: "risk score below acceptance floor"},
				{Min: 400, Outcome: domain.OutcomeManualReview, Reason: "score in review band"},
				{Min: 550, Outcome: domain.OutcomeAccepted, Tier: domain.Tier1Basic},
				{Min: 700, Outcome: domain.OutcomeAccepted, Tier: domain.Tier2Standard},
				{Min: 990, Outcome: domain.OutcomeAccepted, Tier: domain.Tier3Enhanced},
			},
			Caps: []StageCap{
				{Stage: domain.StageDocument, MaxTier: domain.Tier0Restricted, ForceReview: true, Reason: "document evidence missing"},
				{Stage: domain.StageBiometric, MaxTier: domain.Tier1Basic},
			},
		},
	}
}
