package provider

import (
	"context"
	"crypto/sha256"
	"time"
)

// MockBehavioralScorer derives a deterministic anomaly likelihood from the
// telemetry batch contents, so identical telemetry always scores identically.
// Sub-factor weights (typing 0.5, touch 0.3, device 0.2) follow the behavioral
// profile blend used by the upstream analyzer.
type MockBehavioralScorer struct {
	Name    string
	Latency time.Duration
	// Anomaly, when in (0,1], overrides the derived likelihood.
	Anomaly float64
	// Err, when set, is returned on every call.
	Err error
}

func (m MockBehavioralScorer) ID() string { return m.Name }

func (m MockBehavioralScorer) Score(ctx context.Context, telemetryBatch []byte) (*Result, error) {
	if err := sleepFor(ctx, m.Latency); err != nil {
		return nil, NewError(ErrorTimeout, m.Name, "behavioral scoring cancelled", err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(telemetryBatch) == 0 {
		return nil, NewError(ErrorBadInput, m.Name, "empty telemetry batch", nil)
	}

	anomaly := m.Anomaly
	if anomaly == 0 {
		sum := sha256.Sum256(telemetryBatch)
		// Map the first hash byte onto [0, 0.5): signature-stable telemetry
		// should rarely look highly anomalous.
		anomaly = float64(sum[0]) / 512
	}

	typing := 1 - anomaly
	return &Result{
		ProviderID: m.Name,
		Confidence: 1 - anomaly,
		Scale:      1,
		Factors: map[string]float64{
			"anomaly": anomaly,
			"typing":  0.5 * typing,
			"touch":   0.3 * typing,
			"device":  0.2 * typing,
		},
		RawRef:    "behavioral://" + m.Name,
		CheckedAt: time.Now(),
	}, nil
}
