package provider

import (
	"context"
	"time"

	"zenid/internal/domain"
)

// MockRegistryValidator simulates a government registry lookup. An identity
// number validates when it is 11 digits (the NIN/BVN format) or has an entry
// in Records; anything else is an explicit rejection, which the coordinator
// must not retry.
type MockRegistryValidator struct {
	Name    string
	Latency time.Duration
	// Records maps identity number to canonical registry fields. Entries here
	// take precedence over the synthetic default.
	Records map[string]map[string]string
	// Err, when set, is returned on every call.
	Err error
}

func (m MockRegistryValidator) ID() string { return m.Name }

func (m MockRegistryValidator) Validate(ctx context.Context, identityNumber string, kind domain.RegistryKind) (*Result, error) {
	if err := sleepFor(ctx, m.Latency); err != nil {
		return nil, NewError(ErrorTimeout, m.Name, "registry lookup cancelled", err)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	if rec, ok := m.Records[identityNumber]; ok {
		return m.result(identityNumber, rec), nil
	}
	if !isElevenDigits(identityNumber) {
		return nil, NewError(ErrorRejected, m.Name, "no registry match for identity number", nil)
	}
	return m.result(identityNumber, map[string]string{
		"first_name":    "Sample",
		"last_name":     "Applicant",
		"date_of_birth": "1990-02-03",
	}), nil
}

func (m MockRegistryValidator) result(number string, fields map[string]string) *Result {
	data := map[string]string{"id_number": number}
	for k, v := range fields {
		data[k] = v
	}
	return &Result{
		ProviderID: m.Name,
		Confidence: 1,
		Scale:      1,
		Data:       data,
		RawRef:     "registry://" + m.Name + "/" + number,
		CheckedAt:  time.Now(),
	}
}

func isElevenDigits(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
