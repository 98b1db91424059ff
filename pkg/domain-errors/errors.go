// Package domainerrors provides coded errors for the land registry core.
//
// Services return these so transports can translate failures into status
// codes without inspecting error strings. Stores return infrastructure
// sentinels (pkg/platform/sentinel); services translate them into coded
// errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeNotFound: the referenced entity does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict: the operation collides with existing state (duplicate
	// parcel number, open application already present, parcel already
	// registered, certificate already issued or revoked).
	CodeConflict Code = "conflict"
	// CodeInvalidTransition: the requested status is not reachable from the
	// current status, or the entity is already terminal.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeValidation: request-level input failed a business rule.
	CodeValidation Code = "validation_failed"
	// CodeInvalidInput: a value is outside its closed vocabulary or range.
	CodeInvalidInput Code = "invalid_input"
	// CodeInvariantViolation: a model-level invariant was broken. Surfaces as
	// validation or conflict once translated by the service layer.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized: the caller is not authenticated.
	CodeUnauthorized Code = "unauthorized"
	// CodeTimeout: a transaction or lock wait exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeIntegrity: the audit trail could not be written. Always aborts the
	// enclosing transaction; audit completeness is a hard requirement.
	CodeIntegrity Code = "integrity"
	// CodeInternal: unexpected storage or infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the cause for
// errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err carries
// none.
func CodeOf(err error) Code {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto the HTTP status used by the JSON error
// envelope.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return http.StatusConflict
	case CodeValidation, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
