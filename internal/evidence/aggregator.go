// Package evidence normalizes heterogeneous provider results into canonical
// EvidenceItems and detects cross-source field conflicts. Conflicts are
// flagged, never resolved here: resolution requires judgment encoded in
// scoring policy, not normalization.
package evidence

import (
	"fmt"
	"strings"

	"zenid/internal/domain"
	"zenid/internal/provider"
)

// fieldAliases maps provider-specific field vocabulary onto canonical names.
// Unknown fields are kept under their reported name so nothing is dropped.
var fieldAliases = map[string]string{
	"document_number": domain.FieldIDNumber,
	"number":          domain.FieldIDNumber,
	"id_number":       domain.FieldIDNumber,
	"given_name":      domain.FieldFirstName,
	"first_name":      domain.FieldFirstName,
	"surname":         domain.FieldLastName,
	"last_name":       domain.FieldLastName,
	"dob":             domain.FieldDateOfBirth,
	"date_of_birth":   domain.FieldDateOfBirth,
	"liveness_score":  domain.FieldLiveness,
	"match_score":     domain.FieldFaceMatch,
}

// conflictFields are the logical fields checked for cross-source mismatches.
var conflictFields = []string{
	domain.FieldIDNumber,
	domain.FieldFirstName,
	domain.FieldLastName,
	domain.FieldDateOfBirth,
}

// Aggregator builds canonical evidence and conflict flags for a session.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Normalize converts a raw provider result into a canonical EvidenceItem:
// field names mapped onto the shared vocabulary, confidence scaled to [0,1].
func (a *Aggregator) Normalize(stage domain.Stage, res *provider.Result) domain.EvidenceItem {
	scale := res.Scale
	if scale <= 0 {
		scale = 1
	}
	confidence := res.Confidence / scale
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	fields := make(map[string]domain.Field, len(res.Data))
	for name, value := range res.Data {
		canonical, ok := fieldAliases[strings.ToLower(name)]
		if !ok {
			canonical = strings.ToLower(name)
		}
		fields[canonical] = domain.Field{
			Value:      strings.TrimSpace(value),
			Confidence: confidence,
		}
	}

	return domain.EvidenceItem{
		Stage:      stage,
		Fields:     fields,
		ProviderID: res.ProviderID,
		Timestamp:  res.CheckedAt,
		RawRef:     res.RawRef,
	}
}

// Failure records a stage attempt that produced no usable evidence. Failed
// attempts stay in the session's evidence sequence, tagged as such.
func (a *Aggregator) Failure(stage domain.Stage, providerID string, category provider.ErrorCategory) domain.EvidenceItem {
	return domain.EvidenceItem{
		Stage:       stage,
		ProviderID:  providerID,
		Failed:      true,
		FailureKind: string(category),
	}
}

// Bundle is the aggregate view of a session's evidence handed to scoring.
type Bundle struct {
	Items     []domain.EvidenceItem
	Conflicts []domain.FieldConflict
	// Behavioral carries the partial risk factors from the behavioral scorer,
	// including "anomaly" in [0,1]. Nil when no telemetry arrived.
	Behavioral map[string]float64

	DocumentFailed  bool
	BiometricFailed bool
	RegistryFailed  bool
}

// Collect assembles the bundle and runs conflict detection across stages.
func (a *Aggregator) Collect(items []domain.EvidenceItem, behavioral map[string]float64) *Bundle {
	b := &Bundle{
		Items:      items,
		Behavioral: behavioral,
	}
	for _, item := range items {
		if !item.Failed {
			continue
		}
		switch item.Stage {
		case domain.StageDocument:
			b.DocumentFailed = true
		case domain.StageBiometric:
			b.BiometricFailed = true
		case domain.StageRegistry:
			b.RegistryFailed = true
		}
	}
	b.Conflicts = detectConflicts(items)
	return b
}

// StageSucceeded reports whether any non-failed evidence exists for stage.
func (b *Bundle) StageSucceeded(stage domain.Stage) bool {
	for _, item := range b.Items {
		if item.Stage == stage && !item.Failed {
			return true
		}
	}
	return false
}

// Summary renders a compact per-stage view, safe for status responses: no raw
// provider payloads, only canonical fields and confidences.
func (b *Bundle) Summary() []string {
	out := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		if item.Failed {
			out = append(out, fmt.Sprintf("%s: failed (%s)", item.Stage, item.FailureKind))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %d fields, confidence %.2f", item.Stage, len(item.Fields), item.MeanConfidence()))
	}
	return out
}

// detectConflicts flags the same logical field carrying different values from
// different stages. Comparison is case-insensitive and whitespace-trimmed; a
// missing value never conflicts.
func detectConflicts(items []domain.EvidenceItem) []domain.FieldConflict {
	var conflicts []domain.FieldConflict
	for _, field := range conflictFields {
		type seen struct {
			stage domain.Stage
			value string
		}
		var first *seen
		for _, item := range items {
			if item.Failed {
				continue
			}
			f, ok := item.Fields[field]
			if !ok || f.Value == "" {
				continue
			}
			norm := strings.ToLower(strings.TrimSpace(f.Value))
			if first == nil {
				first = &seen{stage: item.Stage, value: norm}
				continue
			}
			if norm != first.value && item.Stage != first.stage {
				conflicts = append(conflicts, domain.FieldConflict{
					Field:  field,
					Stages: [2]domain.Stage{first.stage, item.Stage},
					Values: [2]string{first.value, norm},
				})
				break
			}
		}
	}
	return conflicts
}
