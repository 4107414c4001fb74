package domain

import "time"

// Canonical evidence field names. Providers report fields under their own
// vocabulary; the aggregator maps them onto these before anything downstream
// sees them.
const (
	FieldIDNumber    = "id_number"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldDateOfBirth = "date_of_birth"
	FieldLiveness    = "liveness"
	FieldFaceMatch   = "face_match"
)

// Field is one normalized extracted value with its confidence in [0,1].
type Field struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// EvidenceItem is a normalized, attributed fact extracted from a verification
// stage. Immutable once created; a session accumulates an ordered sequence of
// these, one per completed stage attempt, failed attempts tagged as such.
type EvidenceItem struct {
	Stage      Stage            `json:"stage"`
	Fields     map[string]Field `json:"fields,omitempty"`
	ProviderID string           `json:"provider_id"`
	Timestamp  time.Time        `json:"timestamp"`
	// RawRef points at the untouched provider payload, retained for audit only.
	RawRef string `json:"raw_ref,omitempty"`
	Failed bool   `json:"failed,omitempty"`
	// FailureKind holds the provider error category when Failed.
	FailureKind string `json:"failure_kind,omitempty"`
}

// MeanConfidence averages the per-field confidences. Zero for failed or empty
// items.
func (e EvidenceItem) MeanConfidence() float64 {
	if e.Failed || len(e.Fields) == 0 {
		return 0
	}
	var sum float64
	for _, f := range e.Fields {
		sum += f.Confidence
	}
	return sum / float64(len(e.Fields))
}

// FieldConflict flags the same logical field carrying different values from
// two stages. Conflicts are recorded, never resolved here; resolution is
// scoring policy's judgment.
type FieldConflict struct {
	Field  string    `json:"field"`
	Stages [2]Stage  `json:"stages"`
	Values [2]string `json:"values"`
}
