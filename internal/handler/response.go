// Package handler contains the HTTP layer: request parsing, response
// writing, and the translation of domain errors to status codes. No
// business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/potluck-app/potluck/internal/apperror"
	"github.com/potluck-app/potluck/internal/identity"
)

// ErrorResponse is the standard error shape for every API endpoint, so the
// frontend always knows what fields to expect regardless of status code.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable type ("not_found", "stale", ...)
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response. Headers and status must go out before
// the body, so the order here is fixed.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. The service layer
// returns apperror sentinels; this is the only place they meet HTTP.
//
// Stale maps to 409: the request was well-formed but the server-side state
// moved on, and the client must re-fetch before retrying.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrStale):
			status = http.StatusConflict
			errorType = "stale"
		case errors.Is(err, apperror.ErrAuthRequired):
			status = http.StatusUnauthorized
			errorType = "auth_required"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
			errorType = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error. Never expose internals to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// writeIdentityError maps identity-provider failures to the auth banner
// message the signup/login forms display.
func writeIdentityError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch identity.CodeOf(err) {
	case identity.CodeUserNotFound, identity.CodeWrongPassword, identity.CodeInvalidCredential:
		status = http.StatusUnauthorized
	case identity.CodeEmailInUse:
		status = http.StatusConflict
	case identity.CodeNetwork:
		status = http.StatusServiceUnavailable
	case "":
		writeError(w, err)
		return
	}
	writeJSON(w, status, ErrorResponse{
		Error:   string(identity.CodeOf(err)),
		Message: identity.UserMessage(err),
	})
}
