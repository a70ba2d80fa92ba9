package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"safetrack-backend/internal/errs"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// respondDomainError maps domain sentinel errors to HTTP status codes
func respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidPassword),
		errors.Is(err, errs.ErrBadCredentials),
		errors.Is(err, errs.ErrInvalidResetToken):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrSessionInactive),
		errors.Is(err, errs.ErrSessionFull),
		errors.Is(err, errs.ErrAlreadyJoined),
		errors.Is(err, errs.ErrEmailTaken):
		status = http.StatusConflict
	}
	respondError(w, err.Error(), status)
}
