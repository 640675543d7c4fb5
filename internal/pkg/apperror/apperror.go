// Package apperror defines the error taxonomy shared by the domain, application
// and transport layers.
package apperror

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeValidation        Code = "VALIDATION"
	CodeNotFound          Code = "NOT_FOUND"
	CodeForbidden         Code = "FORBIDDEN"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidSelection  Code = "INVALID_SELECTION"
	CodeInvalidMultiplier Code = "INVALID_MULTIPLIER"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeStaleWrite        Code = "STALE_WRITE"
	CodeAlreadyClaimed    Code = "ALREADY_CLAIMED"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeInternal          Code = "INTERNAL"
)

// AppError carries a Code, a client-safe message and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is reports whether target is an AppError with the same code, so the
// sentinels below match any error of their kind.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &AppError{Code: CodeValidation}
	ErrNotFound          = &AppError{Code: CodeNotFound}
	ErrForbidden         = &AppError{Code: CodeForbidden}
	ErrUnauthorized      = &AppError{Code: CodeUnauthorized}
	ErrConflict          = &AppError{Code: CodeConflict}
	ErrInvalidSelection  = &AppError{Code: CodeInvalidSelection}
	ErrInvalidMultiplier = &AppError{Code: CodeInvalidMultiplier}
	ErrIllegalTransition = &AppError{Code: CodeIllegalTransition}
	ErrStaleWrite        = &AppError{Code: CodeStaleWrite}
	ErrAlreadyClaimed    = &AppError{Code: CodeAlreadyClaimed}
	ErrUnavailable       = &AppError{Code: CodeUnavailable}
)

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NewValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

func NewNotFoundError(entity string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", entity, id),
	}
}

func NewForbiddenError(message string) *AppError {
	return New(CodeForbidden, message)
}

func NewUnauthorizedError(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func NewConflictError(message string) *AppError {
	return New(CodeConflict, message)
}

func NewInvalidSelectionError(format string, args ...any) *AppError {
	return New(CodeInvalidSelection, fmt.Sprintf(format, args...))
}

func NewInvalidMultiplierError(format string, args ...any) *AppError {
	return New(CodeInvalidMultiplier, fmt.Sprintf(format, args...))
}

// NewIllegalTransitionError reports a transition the lifecycle does not permit.
func NewIllegalTransitionError(current, requested, reason string) *AppError {
	msg := fmt.Sprintf("cannot transition from %s to %s", current, requested)
	if reason != "" {
		msg += ": " + reason
	}
	return &AppError{
		Code:    CodeIllegalTransition,
		Message: msg,
		Details: map[string]any{"current": current, "requested": requested},
	}
}

func NewStaleWriteError(entity string, id any, expectedVersion int64) *AppError {
	return &AppError{
		Code:    CodeStaleWrite,
		Message: fmt.Sprintf("%s %v was modified concurrently (expected version %d)", entity, id, expectedVersion),
		Details: map[string]any{"expected_version": expectedVersion},
	}
}

func NewAlreadyClaimedError(id any) *AppError {
	return New(CodeAlreadyClaimed, fmt.Sprintf("booking %v has already been claimed", id))
}

// NewUnavailableError wraps an infrastructure failure.
func NewUnavailableError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: op + " is temporarily unavailable",
		Err:     err,
	}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
