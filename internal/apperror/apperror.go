package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrStale        = errors.New("stale state")
	ErrAuthRequired = errors.New("authentication required")
	ErrUnavailable  = errors.New("service unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Stale indicates a set-membership toggle found the server-side set in a
// different state than the caller's intent assumed (the set changed in
// another tab). The caller must re-fetch before retrying; no write happened.
func Stale(message string) *AppError {
	return &AppError{
		Err:     ErrStale,
		Message: message,
	}
}

// AuthRequired indicates a mutation was attempted with no current user.
// HTTP handlers map this to 401 and the pages redirect to sign-in.
func AuthRequired() *AppError {
	return &AppError{
		Err:     ErrAuthRequired,
		Message: "you must be logged in to do that",
	}
}

// Unavailable indicates the document store or identity provider could not
// be reached. The operation may be retried by the user; it is never retried
// automatically.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}
