package stm

import (
	"fmt"

	"github.com/pkg/errors"
)

// capturedValue is what an ExceptionCapture actually stores: either an
// error (wrapped with a stack trace at the capture site) or an arbitrary
// panic value, whichever was captured.
type capturedValue struct {
	err      error
	panicVal any
}

// ExceptionCapture is a type-erased container that stores a throwable
// value captured inside one transaction and re-throws it later, possibly
// from a different transaction or outside of any transaction at all. It
// is itself implemented as a Var, so capture and reset participate in the
// normal commit/rollback protocol like any other transactional write.
type ExceptionCapture struct {
	v *Var[*capturedValue]
}

// NewExceptionCapture returns an empty capture.
func NewExceptionCapture() *ExceptionCapture {
	return &ExceptionCapture{v: NewVar[*capturedValue](nil)}
}

// Capture stores an arbitrary panic value, replacing whatever was
// captured before.
func (c *ExceptionCapture) Capture(v any, tx *Tx) {
	c.v.Set(&capturedValue{panicVal: v}, tx)
}

// CaptureErr stores err, wrapped with errors.WithStack so the original
// capture site's stack trace survives a later re-throw from elsewhere.
func (c *ExceptionCapture) CaptureErr(err error, tx *Tx) {
	c.v.Set(&capturedValue{err: errors.WithStack(err)}, tx)
}

// CaptureFrom copies another capture's value into c, so c can forward it.
func (c *ExceptionCapture) CaptureFrom(other *ExceptionCapture, tx *Tx) {
	c.v.Set(other.v.Get(tx), tx)
}

// HasCaptured reports whether anything is currently captured.
func (c *ExceptionCapture) HasCaptured(tx *Tx) bool {
	return c.v.Get(tx) != nil
}

// Reset clears the capture.
func (c *ExceptionCapture) Reset(tx *Tx) {
	c.v.Set(nil, tx)
}

// CapturedError returns the captured value as an error, suitable for a
// consumer that wants the failure without re-panicking: an error captured
// with CaptureErr is returned in its errors.WithStack wrapping (so
// errors.Is still matches the original), an error value captured with
// Capture is returned as-is, and any other value captured with Capture is
// formatted with fmt.Errorf. Returns nil if nothing is captured.
func (c *ExceptionCapture) CapturedError(tx *Tx) error {
	cv := c.v.Get(tx)
	if cv == nil {
		return nil
	}
	if cv.err != nil {
		return cv.err
	}
	if err, ok := cv.panicVal.(error); ok {
		return err
	}
	return fmt.Errorf("%v", cv.panicVal)
}

// ThrowCaptured re-panics the captured value, if any, with its original
// shape: the exact value passed to Capture, or the errors.WithStack-
// wrapped error passed to CaptureErr. It is a no-op if nothing is
// captured.
func (c *ExceptionCapture) ThrowCaptured(tx *Tx) {
	cv := c.v.Get(tx)
	if cv == nil {
		return
	}
	if cv.err != nil {
		panic(cv.err)
	}
	panic(cv.panicVal)
}
