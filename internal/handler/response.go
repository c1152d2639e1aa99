package handler

// RESPONSE HELPERS:
// Every endpoint sends JSON through these two functions so that successes
// and failures have the same shape everywhere.
//
// Error responses always look like:
//   {"error": "confirmation_timeout", "message": "..."}
//
// The error field is machine-readable (the frontend switches on it); the
// message is for humans.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/farhanm/clubchain/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code. Headers and
// status must be set before the first body write; Encode writes the body.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// THE MAPPING:
// The service layer speaks in apperror sentinels; this is the one place
// they become status codes. Three bands matter here:
//
//	4xx — the client sent something wrong (validation, auth, missing rows)
//	502 — an upstream chain component misbehaved (relay, paymaster, events)
//	504 — a pipeline stage ran out of time; the operation MAY still land
//	      on-chain later, so the client must not assume it failed
//
// Timeouts get a distinct band because they are the only errors where the
// truthful answer is "unknown": the transaction might confirm after we
// stopped waiting. AppError.Message is client-safe by construction — raw
// upstream detail lives in the error's internal cause, which reaches logs
// through Error() but never this response.
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
		case errors.Is(err, apperror.ErrSubmissionTimeout):
			status = http.StatusGatewayTimeout
			errorType = "submission_timeout"
		case errors.Is(err, apperror.ErrHashTimeout):
			status = http.StatusGatewayTimeout
			errorType = "hash_timeout"
		case errors.Is(err, apperror.ErrConfirmationTimeout):
			status = http.StatusGatewayTimeout
			errorType = "confirmation_timeout"
		case errors.Is(err, apperror.ErrProvisioning):
			status = http.StatusBadGateway
			errorType = "provisioning_failed"
		case errors.Is(err, apperror.ErrTxRejected):
			status = http.StatusBadGateway
			errorType = "transaction_rejected"
		case errors.Is(err, apperror.ErrEventNotFound):
			status = http.StatusBadGateway
			errorType = "event_not_found"
		case errors.Is(err, apperror.ErrStoreConflict):
			// The transaction confirmed but the local mirror refused the
			// write — a server-side inconsistency, not a client mistake.
			status = http.StatusInternalServerError
			errorType = "storage_conflict"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — never leak internal detail (SQL, RPC payloads, paths).
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
