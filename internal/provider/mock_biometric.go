package provider

import (
	"context"
	"strconv"
	"time"
)

// MockBiometricMatcher simulates facial liveness and match scoring. The
// combined confidence weights liveness 0.4 and match 0.6, mirroring how
// facial vendors blend the two checks.
type MockBiometricMatcher struct {
	Name       string
	Latency    time.Duration
	Liveness   float64 // [0,1]; defaults to 0.9
	Similarity float64 // [0,1]; defaults to 0.88
	// Err, when set, is returned on every call.
	Err error
}

func (m MockBiometricMatcher) ID() string { return m.Name }

func (m MockBiometricMatcher) Match(ctx context.Context, liveCapture, referenceImage string) (*Result, error) {
	if err := sleepFor(ctx, m.Latency); err != nil {
		return nil, NewError(ErrorTimeout, m.Name, "biometric match cancelled", err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if liveCapture == "" || referenceImage == "" {
		return nil, NewError(ErrorRejected, m.Name, "capture or reference image missing", nil)
	}

	liveness := m.Liveness
	if liveness == 0 {
		liveness = 0.9
	}
	match := m.Similarity
	if match == 0 {
		match = 0.88
	}

	return &Result{
		ProviderID: m.Name,
		Confidence: 0.4*liveness + 0.6*match,
		Scale:      1,
		Data: map[string]string{
			"liveness_score": strconv.FormatFloat(liveness, 'f', -1, 64),
			"match_score":    strconv.FormatFloat(match, 'f', -1, 64),
		},
		RawRef:    "facial://" + m.Name + "/" + liveCapture,
		CheckedAt: time.Now(),
	}, nil
}
