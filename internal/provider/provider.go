// Package provider defines the uniform adapter contracts wrapping each
// external verification capability. Adapters are stateless and never retry
// internally; retry and fallback are the coordinator's exclusive
// responsibility, which keeps adapters swappable per policy.
package provider

import (
	"context"
	"fmt"
	"time"

	"zenid/internal/domain"
)

// Capability identifies the kind of verification a provider performs.
type Capability string

const (
	CapabilityDocument   Capability = "document"
	CapabilityRegistry   Capability = "registry"
	CapabilityBiometric  Capability = "biometric"
	CapabilityBehavioral Capability = "behavioral"
)

// Result is the raw, provider-shaped outcome of one successful call. Field
// names and confidence scales are provider-specific; the evidence aggregator
// normalizes them into canonical EvidenceItems.
type Result struct {
	ProviderID string
	// Confidence on the provider's own scale; Scale declares its upper bound
	// (1 or 100 in practice) so the aggregator can normalize.
	Confidence float64
	Scale      float64
	Data       map[string]string
	// Factors carries partial risk factors for scoring providers.
	Factors map[string]float64
	// RawRef is an opaque reference to the untouched payload, for audit only.
	RawRef    string
	CheckedAt time.Time
}

// DocumentVerifier extracts identity fields from a captured document image.
type DocumentVerifier interface {
	ID() string
	Extract(ctx context.Context, documentImage string, kind domain.DocumentKind) (*Result, error)
}

// RegistryValidator checks an identity number against a government registry.
type RegistryValidator interface {
	ID() string
	Validate(ctx context.Context, identityNumber string, kind domain.RegistryKind) (*Result, error)
}

// BiometricMatcher runs liveness and face match between a live capture and the
// reference image extracted from the document.
type BiometricMatcher interface {
	ID() string
	Match(ctx context.Context, liveCapture, referenceImage string) (*Result, error)
}

// BehavioralScorer turns a raw telemetry batch into partial risk factors,
// including an anomaly likelihood in [0,1]. The model behind it is opaque.
type BehavioralScorer interface {
	ID() string
	Score(ctx context.Context, telemetryBatch []byte) (*Result, error)
}

// Registry holds the concrete providers available per capability, keyed by
// provider ID. Policy selects from these by ID when building fallback chains.
type Registry struct {
	documents  map[string]DocumentVerifier
	registries map[string]RegistryValidator
	biometrics map[string]BiometricMatcher
	behaviors  map[string]BehavioralScorer
}

func NewRegistry() *Registry {
	return &Registry{
		documents:  make(map[string]DocumentVerifier),
		registries: make(map[string]RegistryValidator),
		biometrics: make(map[string]BiometricMatcher),
		behaviors:  make(map[string]BehavioralScorer),
	}
}

func (r *Registry) RegisterDocument(p DocumentVerifier) error {
	if _, exists := r.documents[p.ID()]; exists {
		return fmt.Errorf("document provider %s already registered", p.ID())
	}
	r.documents[p.ID()] = p
	return nil
}

func (r *Registry) RegisterRegistry(p RegistryValidator) error {
	if _, exists := r.registries[p.ID()]; exists {
		return fmt.Errorf("registry provider %s already registered", p.ID())
	}
	r.registries[p.ID()] = p
	return nil
}

func (r *Registry) RegisterBiometric(p BiometricMatcher) error {
	if _, exists := r.biometrics[p.ID()]; exists {
		return fmt.Errorf("biometric provider %s already registered", p.ID())
	}
	r.biometrics[p.ID()] = p
	return nil
}

func (r *Registry) RegisterBehavioral(p BehavioralScorer) error {
	if _, exists := r.behaviors[p.ID()]; exists {
		return fmt.Errorf("behavioral provider %s already registered", p.ID())
	}
	r.behaviors[p.ID()] = p
	return nil
}

func (r *Registry) Document(id string) (DocumentVerifier, bool) {
	p, ok := r.documents[id]
	return p, ok
}

func (r *Registry) RegistryValidator(id string) (RegistryValidator, bool) {
	p, ok := r.registries[id]
	return p, ok
}

func (r *Registry) Biometric(id string) (BiometricMatcher, bool) {
	p, ok := r.biometrics[id]
	return p, ok
}

func (r *Registry) Behavioral(id string) (BehavioralScorer, bool) {
	p, ok := r.behaviors[id]
	return p, ok
}

// Has reports whether a provider ID is registered under the capability.
func (r *Registry) Has(cap Capability, providerID string) bool {
	switch cap {
	case CapabilityDocument:
		_, ok := r.documents[providerID]
		return ok
	case CapabilityRegistry:
		_, ok := r.registries[providerID]
		return ok
	case CapabilityBiometric:
		_, ok := r.biometrics[providerID]
		return ok
	case CapabilityBehavioral:
		_, ok := r.behaviors[providerID]
		return ok
	}
	return false
}
