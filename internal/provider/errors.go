package provider

import (
	"errors"
	"fmt"

	"zenid/internal/domain"
)

// ErrorCategory is the normalized failure taxonomy for provider calls. The
// coordinator decides retry/fallback behavior from the category alone, never
// from provider-specific error text.
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorUnavailable indicates the provider is down or shedding load.
	ErrorUnavailable ErrorCategory = "unavailable"

	// ErrorRejected indicates the provider explicitly refused the input
	// (e.g. document unreadable). Not expected to succeed on repetition.
	ErrorRejected ErrorCategory = "rejected"

	// ErrorBadInput indicates the request itself was malformed.
	ErrorBadInput ErrorCategory = "bad_input"

	// ErrorInternal indicates an unexpected adapter failure.
	ErrorInternal ErrorCategory = "internal"
)

// Error wraps provider failures with normalized categorization.
type Error struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// NewError creates a normalized provider error. Timeouts and outages are
// transient; rejections and bad input are not.
func NewError(category ErrorCategory, providerID, message string, underlying error) *Error {
	retryable := category == ErrorTimeout || category == ErrorUnavailable

	return &Error{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable reports whether an error is worth retrying on the same provider.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf extracts the category from an error, defaulting to internal.
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// OutcomeOf maps an error to the attempt outcome recorded for audit.
func OutcomeOf(err error) domain.AttemptOutcome {
	switch CategoryOf(err) {
	case ErrorTimeout:
		return domain.AttemptTimeout
	case ErrorRejected, ErrorBadInput:
		return domain.AttemptRejected
	default:
		return domain.AttemptError
	}
}

// Sentinel errors for chain-level failures.
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrChainExhausted   = errors.New("all providers in fallback chain exhausted")
)
