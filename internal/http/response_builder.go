package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendlog/internal/auth"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/store"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

// validationErrors are answered with 400 and their own message.
var validationErrors = []error{
	core.ErrMissingField,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidPeriod,
	core.ErrDescriptionTooLong,
	core.ErrInvalidCategoryName,
	core.ErrInvalidColor,
	core.ErrInvalidEmail,
	core.ErrInvalidTimezone,
	core.ErrInvalidCurrency,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeServiceError maps service and store errors onto statuses. Anything it
// does not recognise is logged and answered with a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	switch {
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, "Already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, context.DeadlineExceeded):
		s.events.LogError(r.Context(), "Request timed out", err, component, op,
			applog.NewFields().WithUser(principal(r).UserID))
		writeError(w, http.StatusServiceUnavailable, "Request timed out")
	default:
		s.events.LogError(r.Context(), "Request failed", err, component, op,
			applog.NewFields().WithUser(principal(r).UserID))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
