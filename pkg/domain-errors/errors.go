// Package domainerrors defines coded errors shared by services and transport.
//
// Services wrap infrastructure failures with a Code so handlers can translate
// them into HTTP responses without inspecting error strings. Codes are part of
// the API surface; messages are for operators.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeRateLimited  Code = "rate_limited"
	CodeInternal     Code = "internal_error"

	// Verification-pipeline codes.
	CodeInvalidTransition      Code = "invalid_transition"
	CodeInvalidPolicy          Code = "invalid_policy"
	CodeSessionExpired         Code = "session_expired"
	CodeInvalidState           Code = "invalid_state"
	CodeInsufficientConfidence Code = "insufficient_confidence"
	CodeDataConflict           Code = "data_conflict"

	// CodeInconsistency flags audit/state divergence. It is always fatal and
	// must never be masked by retry.
	CodeInconsistency Code = "internal_inconsistency"
)

// Error carries a code, an operator-facing message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
