// Package apperror defines the closed set of domain error kinds shared by the
// service and handler layers.
//
// Every error the services return on purpose is an *AppError whose Err field
// is one of the sentinels below. Handlers never inspect messages; they map
// the sentinel to a status code (see handler/response.go).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	ErrUnauthorized = errors.New("unauthorized")

	// ErrCodeNotFound means no pending verification code exists for the
	// email: never issued, already consumed, or expired.
	ErrCodeNotFound = errors.New("verification code not found or expired")
	// ErrInvalidCode means a code exists but the submitted one does not match.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrDelivery and ErrUpstream wrap failures of external collaborators
	// (mail provider, identity provider). Their messages are safe to show but
	// carry no detail; the cause stays in the wrapped chain for logging.
	ErrDelivery = errors.New("delivery failed")
	ErrUpstream = errors.New("upstream failure")
)

// Kinds lists every sentinel above. The HTTP boundary keeps one mapping
// entry per kind; apperror_test checks the two lists stay in sync.
var Kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrConflict,
	ErrForbidden,
	ErrUnauthorized,
	ErrCodeNotFound,
	ErrInvalidCode,
	ErrDelivery,
	ErrUpstream,
}

type AppError struct {
	Err     error  // one of the sentinels above
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a collaborator
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause, so errors.Is works
// against either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-supplied message, for lookups that
// are not keyed by an id (e.g. "no account registered for this email").
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// ConflictMessage is Conflict with a caller-supplied message.
func ConflictMessage(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means no credential was presented at all (401).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func CodeNotFound() *AppError {
	return &AppError{
		Err:     ErrCodeNotFound,
		Message: "OTP not found or expired",
		Field:   "otp",
	}
}

func InvalidCode() *AppError {
	return &AppError{
		Err:     ErrInvalidCode,
		Message: "Invalid OTP, please provide the correct code",
		Field:   "otp",
	}
}

func Delivery(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrDelivery,
		Message: message,
		Cause:   cause,
	}
}

func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}
