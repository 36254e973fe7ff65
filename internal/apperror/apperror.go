// Package apperror defines the error taxonomy shared by every layer.
//
// Each kind of failure has a sentinel (ErrXxx) and a constructor that wraps it
// in an *AppError carrying a human-readable message. Callers never compare
// messages; they ask errors.Is(err, apperror.ErrNotAuthenticated) and so on.
//
// The mutation taxonomy is:
//
//	NotAuthenticated  a mutation was attempted while the session gate denies it
//	ValidationFailed  a draft is malformed (missing name, rating out of range)
//	StoreFailed       the record store or session provider rejected a call
//	Timeout           a caller-configured deadline elapsed before the store answered
//	InFlight          the same mutation is already pending (double submit)
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrConflict         = errors.New("conflict")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStore            = errors.New("store error")
	ErrTimeout          = errors.New("timeout")
	ErrInFlight         = errors.New("already in flight")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Cause   error  // optional underlying failure (store errors)
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either
// ErrStore or the transport error that produced it.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
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

// NotAuthenticated is returned when a gated action is attempted without an
// authenticated session. HTTP handlers map this to 401.
func NotAuthenticated(action string) *AppError {
	return &AppError{
		Err:     ErrNotAuthenticated,
		Message: fmt.Sprintf("you must be signed in to %s", action),
	}
}

// InvalidCredentials is a failed sign-in. It does not say
// whether the email or the password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrNotAuthenticated,
		Message: "invalid email or password",
	}
}

// StoreFailed wraps any rejection from the record store or session provider.
func StoreFailed(op string, cause error) *AppError {
	msg := fmt.Sprintf("store: %s failed", op)
	if cause != nil {
		msg = fmt.Sprintf("store: %s: %v", op, cause)
	}
	return &AppError{
		Err:     ErrStore,
		Cause:   cause,
		Message: msg,
	}
}

func Timeout(op string) *AppError {
	return &AppError{
		Err:     ErrTimeout,
		Message: fmt.Sprintf("%s timed out", op),
	}
}

func InFlight(action string) *AppError {
	return &AppError{
		Err:     ErrInFlight,
		Message: fmt.Sprintf("%s is already in progress", action),
	}
}
