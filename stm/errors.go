package stm

import "errors"

// Errors returned by Atomically and friends. Validation-failed and retry
// are internal signals consumed by the driver and never escape Atomically;
// they have no exported sentinel.
var (
	// ErrMaxRetries is returned when a call exceeded its configured
	// MaxRetries option.
	ErrMaxRetries = errors.New("stm: exceeded max retries")

	// ErrMaxConflicts is returned when a call exceeded its configured
	// MaxConflicts option with ConflictThrow resolution.
	ErrMaxConflicts = errors.New("stm: exceeded max conflicts")

	// ErrRetryTimeout is returned when a blocking Retry wait exceeded its
	// deadline (the smaller of the per-Retry deadline and MaxRetryWait).
	ErrRetryTimeout = errors.New("stm: retry wait timed out")

	// ErrInAtomic is returned by Inconsistently when called from within a
	// running transaction on the same goroutine.
	ErrInAtomic = errors.New("stm: operation not allowed inside a transaction")
)

// retryPanic is the internal signal thrown by Retry. It carries the
// deadline the caller asked to wait up to.
type retryPanic struct {
	deadline Deadline
}

// validationFailedPanic is the internal signal thrown when an eager
// Var.Validate call observes a variable whose version has moved. Nested
// re-raises it so it reaches the root driver.
type validationFailedPanic struct{}
