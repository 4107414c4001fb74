package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenid/internal/domain"
	"zenid/internal/provider"
)

func TestNormalizeMapsVendorVocabulary(t *testing.T) {
	agg := NewAggregator()
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	item := agg.Normalize(domain.StageDocument, &provider.Result{
		ProviderID: "ocr-a",
		Confidence: 93,
		Scale:      100,
		Data: map[string]string{
			"document_number": "12345678901",
			"given_name":      "  Sample ",
			"surname":         "Applicant",
			"dob":             "1990-02-03",
			"issuing_state":   "LA",
		},
		RawRef:    "ocr://ocr-a/img-1",
		CheckedAt: checked,
	})

	assert.Equal(t, domain.StageDocument, item.Stage)
	assert.Equal(t, "ocr-a", item.ProviderID)
	assert.Equal(t, checked, item.Timestamp)
	assert.False(t, item.Failed)

	require.Contains(t, item.Fields, domain.FieldIDNumber)
	assert.Equal(t, "12345678901", item.Fields[domain.FieldIDNumber].Value)
	assert.Equal(t, "Sample", item.Fields[domain.FieldFirstName].Value)
	assert.Equal(t, "Applicant", item.Fields[domain.FieldLastName].Value)
	assert.Equal(t, "1990-02-03", item.Fields[domain.FieldDateOfBirth].Value)

	// Unknown vendor fields survive under their own (lowercased) name.
	assert.Equal(t, "LA", item.Fields["issuing_state"].Value)

	for name, f := range item.Fields {
		assert.InDelta(t, 0.93, f.Confidence, 1e-9, "field %s", name)
	}
}

func TestNormalizeScalesAndClampsConfidence(t *testing.T) {
	agg := NewAggregator()

	cases := []struct {
		name       string
		confidence float64
		scale      float64
		want       float64
	}{
		{"unit scale passes through", 0.88, 1, 0.88},
		{"percent scale divides", 75, 100, 0.75},
		{"zero scale treated as unit", 0.6, 0, 0.6},
		{"above scale clamps to one", 120, 100, 1},
		{"negative clamps to zero", -5, 100, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := agg.Normalize(domain.StageRegistry, &provider.Result{
				ProviderID: "gov-a",
				Confidence: tc.confidence,
				Scale:      tc.scale,
				Data:       map[string]string{"id_number": "12345678901"},
			})
			assert.InDelta(t, tc.want, item.Fields[domain.FieldIDNumber].Confidence, 1e-9)
		})
	}
}

func TestNormalizeBiometricScores(t *testing.T) {
	agg := NewAggregator()

	item := agg.Normalize(domain.StageBiometric, &provider.Result{
		ProviderID: "face-a",
		Confidence: 0.9,
		Scale:      1,
		Data: map[string]string{
			"liveness_score": "0.92",
			"match_score":    "0.88",
		},
	})

	assert.Equal(t, "0.92", item.Fields[domain.FieldLiveness].Value)
	assert.Equal(t, "0.88", item.Fields[domain.FieldFaceMatch].Value)
}

func TestFailureItem(t *testing.T) {
	agg := NewAggregator()

	item := agg.Failure(domain.StageDocument, "ocr-a", provider.ErrorTimeout)
	assert.True(t, item.Failed)
	assert.Equal(t, "timeout", item.FailureKind)
	assert.Equal(t, "ocr-a", item.ProviderID)
	assert.Zero(t, item.MeanConfidence())
}

func TestCollectFlagsFailedStages(t *testing.T) {
	agg := NewAggregator()

	b := agg.Collect([]domain.EvidenceItem{
		agg.Failure(domain.StageDocument, "ocr-a", provider.ErrorRejected),
		agg.Normalize(domain.StageRegistry, &provider.Result{
			ProviderID: "gov-a",
			Confidence: 1,
			Scale:      1,
			Data:       map[string]string{"id_number": "12345678901"},
		}),
	}, map[string]float64{"anomaly": 0.1})

	assert.True(t, b.DocumentFailed)
	assert.False(t, b.RegistryFailed)
	assert.False(t, b.BiometricFailed)
	assert.True(t, b.StageSucceeded(domain.StageRegistry))
	assert.False(t, b.StageSucceeded(domain.StageDocument))
	assert.InDelta(t, 0.1, b.Behavioral["anomaly"], 1e-9)
}

func TestDetectConflictsAcrossStages(t *testing.T) {
	agg := NewAggregator()

	doc := agg.Normalize(domain.StageDocument, &provider.Result{
		ProviderID: "ocr-a",
		Confidence: 93,
		Scale:      100,
		Data: map[string]string{
			"document_number": "12345678901",
			"given_name":      "Sample",
			"dob":             "1990-02-03",
		},
	})
	reg := agg.Normalize(domain.StageRegistry, &provider.Result{
		ProviderID: "gov-a",
		Confidence: 1,
		Scale:      1,
		Data: map[string]string{
			"id_number":     "12345678901",
			"first_name":    "Different",
			"date_of_birth": "1990-02-03",
		},
	})

	b := agg.Collect([]domain.EvidenceItem{doc, reg}, nil)

	require.Len(t, b.Conflicts, 1)
	c := b.Conflicts[0]
	assert.Equal(t, domain.FieldFirstName, c.Field)
	assert.Equal(t, [2]domain.Stage{domain.StageDocument, domain.StageRegistry}, c.Stages)
	assert.Equal(t, [2]string{"sample", "different"}, c.Values)
}

func TestConflictComparisonIsCaseAndSpaceInsensitive(t *testing.T) {
	agg := NewAggregator()

	doc := agg.Normalize(domain.StageDocument, &provider.Result{
		ProviderID: "ocr-a",
		Confidence: 90,
		Scale:      100,
		Data:       map[string]string{"given_name": " SAMPLE "},
	})
	reg := agg.Normalize(domain.StageRegistry, &provider.Result{
		ProviderID: "gov-a",
		Confidence: 1,
		Scale:      1,
		Data:       map[string]string{"first_name": "sample"},
	})

	b := agg.Collect([]domain.EvidenceItem{doc, reg}, nil)
	assert.Empty(t, b.Conflicts)
}

func TestConflictsIgnoreFailedItemsAndMissingValues(t *testing.T) {
	agg := NewAggregator()

	failed := agg.Failure(domain.StageDocument, "ocr-a", provider.ErrorTimeout)
	reg := agg.Normalize(domain.StageRegistry, &provider.Result{
		ProviderID: "gov-a",
		Confidence: 1,
		Scale:      1,
		Data:       map[string]string{"first_name": "Sample", "last_name": ""},
	})
	doc := agg.Normalize(domain.StageDocument, &provider.Result{
		ProviderID: "ocr-b",
		Confidence: 80,
		Scale:      100,
		Data:       map[string]string{"surname": "Applicant"},
	})

	b := agg.Collect([]domain.EvidenceItem{failed, reg, doc}, nil)
	assert.Empty(t, b.Conflicts)
}

func TestBundleSummaryOmitsRawValues(t *testing.T) {
	agg := NewAggregator()

	item := agg.Normalize(domain.StageDocument, &provider.Result{
		ProviderID: "ocr-a",
		Confidence: 93,
		Scale:      100,
		Data:       map[string]string{"document_number": "12345678901"},
	})
	b := agg.Collect([]domain.EvidenceItem{item, agg.Failure(domain.StageBiometric, "face-a", provider.ErrorTimeout)}, nil)

	lines := b.Summary()
	require.Len(t, lines, 2)
	assert.Equal(t, "document: 1 fields, confidence 0.93", lines[0])
	assert.Equal(t, "biometric: failed (timeout)", lines[1])
	for _, line := range lines {
		assert.NotContains(t, line, "12345678901")
	}
}
