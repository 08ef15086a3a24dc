// Package handler contains the HTTP layer: request parsing, response
// shaping, and the single place where domain errors become status codes.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/miicoin/miicoin-server/internal/apperror"
)

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps a domain error onto an HTTP status and a stable error
// code. Anything that isn't one of our sentinels is an internal error, and
// its details stay out of the response.
func writeError(w http.ResponseWriter, err error) {
	var (
		status int
		code   string
		msg    string
	)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrAuthentication):
		status, code = http.StatusUnauthorized, "authentication_error"
	case errors.Is(err, apperror.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		msg = "an unexpected error occurred"
		slog.Error("internal error", slog.String("error", err.Error()))
	}

	if msg == "" {
		msg = err.Error()
	}

	writeJSON(w, status, ErrorResponse{Status: "error", Error: code, Message: msg})
}

// decodeBody decodes a JSON request body into dst, converting malformed
// input into a validation error.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "request body must be valid JSON")
	}
	return nil
}
