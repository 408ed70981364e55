package core

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors, rejected synchronously at submission.
var (
	ErrInvalidOperationName  = errors.New("qih: invalid operation name (must be alphanumeric, start with letter)")
	ErrOperationNameTooLong  = errors.New("qih: operation name too long")
	ErrInvalidTimeout        = errors.New("qih: timeout_seconds must be positive")
	ErrInvalidPriority       = errors.New("qih: invalid priority")
	ErrInputsTooLarge        = errors.New("qih: request inputs exceed size limit")
	ErrIdempotencyKeyTooLong = errors.New("qih: idempotency key exceeds maximum length")
)

// Job control errors.
var (
	ErrNotFound         = errors.New("qih: job not found")
	ErrPermissionDenied = errors.New("qih: job not owned by caller")
	ErrNotCancellable   = errors.New("qih: job already finished")
	ErrNotRetryable     = errors.New("qih: job is not in a failed state")
	ErrNoSolver         = errors.New("qih: no solver available for operation")
)

// CancelledByUser is the error string recorded on a job that was cancelled by
// its owner.
const CancelledByUser = "cancelled by user"

// SolverTimeoutError indicates a solver exceeded the request's timeout.
type SolverTimeoutError struct {
	Solver  string
	Timeout time.Duration
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf("solver %s timed out after %v", e.Solver, e.Timeout)
}

// SolverError indicates a solver backend raised an error.
type SolverError struct {
	Solver string
	Err    error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver %s: %v", e.Solver, e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}
