package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "note not found with id abc123"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "Name is required", "field": "name"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/notes-app/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// MessageResponse is the body of endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body. Once Encode writes, the
// headers are sent and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorMapping is the HTTP rendering of one apperror kind.
type errorMapping struct {
	kind    error
	status  int
	errType string
	// message overrides AppError.Message when set.
	message string
}

// errorMappings has exactly one entry per apperror kind (response_test
// checks it against apperror.Kinds).
//
// The two code failures share one wire type and message: a caller must not
// learn whether a code exists for an email. Logs and metrics still tell
// them apart.
var errorMappings = []errorMapping{
	{kind: apperror.ErrValidation, status: http.StatusBadRequest, errType: "validation_error"},
	{kind: apperror.ErrNotFound, status: http.StatusNotFound, errType: "not_found"},
	{kind: apperror.ErrConflict, status: http.StatusConflict, errType: "conflict"},
	{kind: apperror.ErrForbidden, status: http.StatusForbidden, errType: "forbidden"},
	{kind: apperror.ErrUnauthorized, status: http.StatusUnauthorized, errType: "unauthorized"},
	{kind: apperror.ErrCodeNotFound, status: http.StatusBadRequest, errType: "invalid_code", message: invalidCodeMessage},
	{kind: apperror.ErrInvalidCode, status: http.StatusBadRequest, errType: "invalid_code", message: invalidCodeMessage},
	{kind: apperror.ErrDelivery, status: http.StatusBadGateway, errType: "delivery_failed"},
	{kind: apperror.ErrUpstream, status: http.StatusBadGateway, errType: "upstream_error"},
}

const invalidCodeMessage = "invalid or expired code"

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns *apperror.AppError values. This is the only
// place that turns their kind into a status code; the services never know
// about HTTP.
//
// errors.As finds the AppError anywhere in the chain, so a service may wrap
// it again with fmt.Errorf("...: %w", err) without changing the response.
//
// Anything that is not an AppError is a bug or an infrastructure failure:
// it is logged in full and rendered as a generic 500. Raw error text can
// contain SQL, file paths or addresses and never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, m := range errorMappings {
			if !errors.Is(appErr.Err, m.kind) {
				continue
			}
			msg := appErr.Message
			if m.message != "" {
				msg = m.message
			}
			return m.status, ErrorResponse{Error: m.errType, Message: msg, Field: appErr.Field}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	}
}

// decodeJSON reads a JSON request body into dst. A malformed body is a
// validation error like any other bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return nil
}

// maxBodyBytes bounds request bodies; the largest legitimate one is a note
// with 10000 characters of content.
const maxBodyBytes = 1 << 20
