package deferred

import "errors"

// ErrNotDone is returned by GetResult when the producer has not yet set a
// value or an error.
var ErrNotDone = errors.New("deferred: result not done")

// ErrAlreadyDone is the panic value raised by Value.Done or Value.Fail
// when the value side has already been completed once -- a programmer
// error, the same way closing an already-closed channel panics.
var ErrAlreadyDone = errors.New("deferred: already done")

// ErrInvalidResult is returned by operations on a zero-value Result that
// was never derived from a Value.
var ErrInvalidResult = errors.New("deferred: result has no associated value")

// ErrBrokenPromise is the failure delivered to every consumer when the
// last value-side handle is garbage collected without Done or Fail ever
// having been called.
var ErrBrokenPromise = errors.New("deferred: broken promise")
