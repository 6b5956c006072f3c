// Package domainerrors defines the typed error taxonomy shared by all
// services. Services construct these at the point a rule fails; handlers
// translate them to HTTP status codes via ToHTTPStatus and never inspect
// error strings.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure. Codes are stable API surface:
// they appear in JSON error envelopes and are matched by callers.
type Code string

const (
	// Validation and lookup failures.
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvariantViolation Code = "invariant_violation"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"

	// Verification gate failures. All recoverable by re-issuing or
	// re-entering a code.
	CodeExpired        Code = "code_expired"
	CodeMismatch       Code = "code_mismatch"
	CodeDeliveryFailed Code = "delivery_failed"
	CodeNotVerified    Code = "not_verified"

	// Allocation failures. Recoverable by re-proposing or reporting that
	// no match exists.
	CodeNoSupply       Code = "no_supply"
	CodeStaleCandidate Code = "stale_candidate"
	CodeInvalidState   Code = "invalid_state"

	CodeInternal Code = "internal_error"
)

// DomainError carries a code plus a human-readable message. The message is
// safe to surface to operators except for CodeInternal, which handlers
// redact.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

// New constructs a DomainError with the given code and message.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// untyped errors.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to an HTTP status code.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeInvariantViolation, CodeMismatch:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeStaleCandidate, CodeInvalidState, CodeNoSupply:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotVerified:
		return http.StatusForbidden
	case CodeExpired:
		return http.StatusGone
	case CodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
