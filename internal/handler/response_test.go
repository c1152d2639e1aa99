package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhanm/clubchain/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
	}{
		{
			name:      "validation",
			err:       apperror.ValidationFailed("name", "club name is required"),
			status:    http.StatusBadRequest,
			errorType: "validation_error",
		},
		{
			name:      "not found",
			err:       apperror.NotFound("club", "7"),
			status:    http.StatusNotFound,
			errorType: "not_found",
		},
		{
			name:      "forbidden",
			err:       apperror.Forbidden("not your club"),
			status:    http.StatusForbidden,
			errorType: "forbidden",
		},
		{
			name:      "submission timeout",
			err:       apperror.StageTimeout(apperror.ErrSubmissionTimeout, "submission"),
			status:    http.StatusGatewayTimeout,
			errorType: "submission_timeout",
		},
		{
			name:      "hash timeout",
			err:       apperror.StageTimeout(apperror.ErrHashTimeout, "hash"),
			status:    http.StatusGatewayTimeout,
			errorType: "hash_timeout",
		},
		{
			name:      "confirmation timeout",
			err:       apperror.StageTimeout(apperror.ErrConfirmationTimeout, "confirmation"),
			status:    http.StatusGatewayTimeout,
			errorType: "confirmation_timeout",
		},
		{
			name:      "provisioning",
			err:       apperror.Provisioning(errors.New("factory unreachable")),
			status:    http.StatusBadGateway,
			errorType: "provisioning_failed",
		},
		{
			name:      "rejected",
			err:       apperror.TxRejected("0xabc"),
			status:    http.StatusBadGateway,
			errorType: "transaction_rejected",
		},
		{
			name:      "event not found",
			err:       apperror.EventNotFound("ClubCreated", "0xabc"),
			status:    http.StatusBadGateway,
			errorType: "event_not_found",
		},
		{
			name:      "store conflict",
			err:       apperror.StoreConflict(errors.New("FOREIGN KEY constraint failed")),
			status:    http.StatusInternalServerError,
			errorType: "storage_conflict",
		},
		{
			name:      "conflict",
			err:       apperror.Conflict("user", "g-1"),
			status:    http.StatusConflict,
			errorType: "conflict",
		},
		{
			name:      "wrapped still maps",
			err:       fmt.Errorf("creating club: %w", apperror.TxRejected("0xabc")),
			status:    http.StatusBadGateway,
			errorType: "transaction_rejected",
		},
		{
			name:      "unknown error is generic 500",
			err:       errors.New("pq: duplicate key value violates unique constraint"),
			status:    http.StatusInternalServerError,
			errorType: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.errorType, body.Error)
		})
	}
}

func TestWriteError_SanitizesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("dial tcp 10.0.0.5:8545: connection refused"))

	// Raw upstream detail must never reach the client.
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), "An internal error occurred")
}

func TestWriteError_UpstreamDetailNeverReachesClient(t *testing.T) {
	// Errors that wrap a real upstream failure carry it for logs only.
	// RPC endpoints, SQL text, and the like must not appear in any body.
	tests := []struct {
		name   string
		err    error
		detail string
	}{
		{
			name:   "provisioning cause",
			err:    apperror.Provisioning(errors.New(`Post "http://10.0.0.5:8545": connection refused`)),
			detail: "10.0.0.5",
		},
		{
			name:   "store conflict cause",
			err:    apperror.StoreConflict(errors.New("inserting club 7: FOREIGN KEY constraint failed")),
			detail: "FOREIGN KEY",
		},
		{
			name:   "wrapped provisioning cause",
			err:    fmt.Errorf("creating club: %w", apperror.Provisioning(errors.New("rpc unreachable at 10.0.0.5"))),
			detail: "10.0.0.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
			assert.NotContains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]int64{"clubId": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"clubId": 7}`, rec.Body.String())
}
