package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// Chain pipeline errors. Each stage of the transaction pipeline has its
	// own sentinel so callers can tell exactly where an attempt died without
	// parsing error strings.
	ErrProvisioning        = errors.New("account provisioning failed")
	ErrSubmissionTimeout   = errors.New("transaction submission timed out")
	ErrHashTimeout         = errors.New("waiting for transaction hash timed out")
	ErrConfirmationTimeout = errors.New("waiting for confirmation timed out")
	ErrTxRejected          = errors.New("transaction rejected")
	ErrEventNotFound       = errors.New("expected event not found in receipt")
	ErrStoreConflict       = errors.New("store constraint violation")
)

type AppError struct {
	Err     error  // sentinel identifying the error class
	Message string // human-readable, safe to return to clients
	Field   string // optional: field causing the error

	// cause carries the underlying failure (raw RPC or SQL errors) for
	// logs. It is deliberately excluded from Message: Message is what the
	// HTTP layer sends to clients, and upstream endpoints, SQL text, and
	// file paths must never travel that way.
	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
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

// Provisioning wraps an RPC or relay failure during smart-account setup.
// Not retried internally — the caller decides whether to retry the whole
// user-facing action. The cause appears in logs only, never in the client
// message.
func Provisioning(cause error) *AppError {
	return &AppError{
		Err:     ErrProvisioning,
		Message: "account provisioning failed",
		cause:   cause,
	}
}

// StageTimeout maps a relay stage to its timeout sentinel.
// The stage name appears in the message so operators can see which deadline
// fired; the sentinel lets callers branch on it with errors.Is.
func StageTimeout(sentinel error, stage string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf("transaction %s stage timed out", stage),
	}
}

// TxRejected indicates the chain reported a failed status for a mined
// transaction. This is terminal for the attempt: the transaction landed
// on-chain but did not have the intended effect.
func TxRejected(txHash string) *AppError {
	return &AppError{
		Err:     ErrTxRejected,
		Message: fmt.Sprintf("transaction %s was rejected on-chain", txHash),
	}
}

// EventNotFound indicates a confirmed transaction did not emit the expected
// domain event. The transaction succeeded but produced no usable identifier
// — this must never be silently treated as success.
func EventNotFound(event, txHash string) *AppError {
	return &AppError{
		Err:     ErrEventNotFound,
		Message: fmt.Sprintf("transaction %s emitted no %s event", txHash, event),
	}
}

// StoreConflict wraps a constraint violation outside the idempotent insert
// paths (e.g. a missing foreign key). The raw SQL error stays in the cause,
// for logs only.
func StoreConflict(cause error) *AppError {
	return &AppError{
		Err:     ErrStoreConflict,
		Message: "storage conflict recording confirmed state",
		cause:   cause,
	}
}
