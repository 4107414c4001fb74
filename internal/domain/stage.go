package domain

import (
	"time"

	id "zenid/pkg/domain"
)

// Stage tags the origin of a piece of evidence within a verification session.
type Stage string

const (
	StageDocument   Stage = "document"
	StageRegistry   Stage = "registry"
	StageBiometric  Stage = "biometric"
	StageBehavioral Stage = "behavioral"
)

// DocumentKind enumerates the identity documents accepted for OCR extraction.
type DocumentKind string

const (
	DocumentNIN            DocumentKind = "nin"
	DocumentVotersCard     DocumentKind = "voters_card"
	DocumentPassport       DocumentKind = "passport"
	DocumentDriversLicense DocumentKind = "drivers_license"
)

// RegistryKind enumerates the government registries a document maps to.
type RegistryKind string

const (
	RegistryNIN      RegistryKind = "nin"
	RegistryBVN      RegistryKind = "bvn"
	RegistryVoters   RegistryKind = "voters"
	RegistryPassport RegistryKind = "passport"
)

// RegistryKindFor maps a document kind to the registry that can validate it.
func RegistryKindFor(kind DocumentKind) RegistryKind {
	switch kind {
	case DocumentVotersCard:
		return RegistryVoters
	case DocumentPassport:
		return RegistryPassport
	default:
		return RegistryNIN
	}
}

// AttemptOutcome classifies one provider invocation.
type AttemptOutcome string

const (
	AttemptSuccess  AttemptOutcome = "success"
	AttemptTimeout  AttemptOutcome = "timeout"
	AttemptError    AttemptOutcome = "error"
	AttemptRejected AttemptOutcome = "rejected"
)

// ProviderAttempt records one invocation against an external provider. It is
// immutable once recorded and surfaces to the audit trail.
type ProviderAttempt struct {
	ProviderID string         `json:"provider_id"`
	Attempt    int            `json:"attempt"`
	Outcome    AttemptOutcome `json:"outcome"`
	Latency    time.Duration  `json:"latency"`
	ErrKind    string         `json:"err_kind,omitempty"`
}

// StageStatus is the settled status of a verification stage.
type StageStatus string

const (
	StagePending  StageStatus = "pending"
	StageVerified StageStatus = "verified"
	StageFailed   StageStatus = "failed"
)

// StageResult is the coordinator's final word on one stage of a session:
// either verified with evidence, or failed after the provider chain was
// exhausted or rejected the input.
type StageResult struct {
	Stage     Stage             `json:"stage"`
	Status    StageStatus       `json:"status"`
	AttemptID id.AttemptID      `json:"attempt_id"`
	Evidence  []EvidenceItem    `json:"evidence,omitempty"`
	Attempts  []ProviderAttempt `json:"attempts,omitempty"`
	// FailureKind holds the provider error category when Status is StageFailed.
	FailureKind string `json:"failure_kind,omitempty"`
	// Behavioral carries partial risk factors when the stage produced them.
	Behavioral map[string]float64 `json:"behavioral,omitempty"`
}
