package provider

import (
	"context"
	"time"

	"zenid/internal/domain"
)

// MockDocumentVerifier is a deterministic OCR adapter for development and
// tests. It reports fields under a vendor-style vocabulary ("surname",
// "given_name", "dob", "document_number") on a 0-100 confidence scale so the
// aggregator's normalization is exercised end to end.
type MockDocumentVerifier struct {
	Name    string
	Latency time.Duration
	// Fields overrides the extracted values; keys use the vendor vocabulary.
	Fields map[string]string
	// Confidence on the 0-100 scale applied to every field.
	Confidence float64
	// Err, when set, is returned on every call.
	Err error
}

func (m MockDocumentVerifier) ID() string { return m.Name }

func (m MockDocumentVerifier) Extract(ctx context.Context, documentImage string, kind domain.DocumentKind) (*Result, error) {
	if err := sleepFor(ctx, m.Latency); err != nil {
		return nil, NewError(ErrorTimeout, m.Name, "document extraction cancelled", err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if documentImage == "" {
		return nil, NewError(ErrorRejected, m.Name, "document image unreadable", nil)
	}

	fields := m.Fields
	if fields == nil {
		fields = map[string]string{
			"document_number": "12345678901",
			"given_name":      "Sample",
			"surname":         "Applicant",
			"dob":             "1990-02-03",
		}
	}
	confidence := m.Confidence
	if confidence == 0 {
		confidence = 93
	}

	return &Result{
		ProviderID: m.Name,
		Confidence: confidence,
		Scale:      100,
		Data:       fields,
		RawRef:     "ocr://" + m.Name + "/" + documentImage,
		CheckedAt:  time.Now(),
	}, nil
}

// sleepFor blocks for d or until ctx is done, whichever comes first.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
