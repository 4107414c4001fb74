// Package scoring turns an evidence bundle into a risk score. The engine is
// pure: the same bundle and policy always produce the same score, so a score
// can be recomputed for audit from the evidence alone.
package scoring

import (
	"math"
	"sort"

	"zenid/internal/domain"
	"zenid/internal/evidence"
	"zenid/internal/policy"
)

// Factor names shared with policy weights.
const (
	FactorDocumentOutcome  = "document_outcome"
	FactorRegistryOutcome  = "registry_outcome"
	FactorBiometricOutcome = "biometric_outcome"
	FactorFieldConfidence  = "field_confidence"
	FactorBehavioral       = "behavioral"
)

// coreStages back the score confidence: a session with only one of them
// settled carries weak signal regardless of how well that one went.
var coreStages = []domain.Stage{
	domain.StageDocument,
	domain.StageRegistry,
	domain.StageBiometric,
}

// Engine computes risk scores under a scoring policy.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Score combines the bundle's factors under the policy weights, subtracts the
// conflict penalty per detected conflict, and clamps onto [0, ScoreScale].
// Factor iteration is in sorted name order so floating-point summation is
// reproducible across runs.
func (e *Engine) Score(bundle *evidence.Bundle, scoring policy.Scoring) domain.RiskScore {
	raw := rawFactors(bundle)

	names := make([]string, 0, len(scoring.Weights))
	for name := range scoring.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	factors := make(map[string]float64, len(names))
	unit := 0.0
	for _, name := range names {
		contribution := scoring.Weights[name] * raw[name]
		factors[name] = contribution
		unit += contribution
	}

	unit -= scoring.ConflictPenalty * float64(len(bundle.Conflicts))

	if unit < 0 {
		unit = 0
	}
	if unit > 1 {
		unit = 1
	}

	return domain.RiskScore{
		Value:      int(math.Round(unit * domain.ScoreScale)),
		Factors:    factors,
		Confidence: confidence(bundle),
	}
}

// rawFactors extracts each unweighted factor on [0,1] from the bundle.
func rawFactors(bundle *evidence.Bundle) map[string]float64 {
	raw := map[string]float64{
		FactorDocumentOutcome:  outcomeFactor(bundle, domain.StageDocument),
		FactorRegistryOutcome:  outcomeFactor(bundle, domain.StageRegistry),
		FactorBiometricOutcome: outcomeFactor(bundle, domain.StageBiometric),
		FactorFieldConfidence:  meanFieldConfidence(bundle),
	}

	// No telemetry means no behavioral signal either way; treat as neutral
	// full credit rather than penalizing an optional stage.
	raw[FactorBehavioral] = 1
	if anomaly, ok := bundle.Behavioral["anomaly"]; ok {
		raw[FactorBehavioral] = clampUnit(1 - anomaly)
	}
	return raw
}

// outcomeFactor is binary: the stage either produced usable evidence or not.
// Evidence quality enters separately through the field_confidence factor.
func outcomeFactor(bundle *evidence.Bundle, stage domain.Stage) float64 {
	if bundle.StageSucceeded(stage) {
		return 1
	}
	return 0
}

// meanFieldConfidence averages confidence over every canonical field across
// all successful evidence items.
func meanFieldConfidence(bundle *evidence.Bundle) float64 {
	sum := 0.0
	n := 0
	for _, item := range bundle.Items {
		if item.Failed {
			continue
		}
		// Deterministic order for the summation.
		names := make([]string, 0, len(item.Fields))
		for name := range item.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sum += item.Fields[name].Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clampUnit(sum / float64(n))
}

// confidence scales the mean field confidence by the fraction of core stages
// that settled successfully.
func confidence(bundle *evidence.Bundle) float64 {
	settled := 0
	for _, stage := range coreStages {
		if bundle.StageSucceeded(stage) {
			settled++
		}
	}
	coverage := float64(settled) / float64(len(coreStages))
	return clampUnit(coverage * meanFieldConfidence(bundle))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
