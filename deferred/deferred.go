/*
Package deferred implements a single-assignment, transactional
promise/future pair built on package stm, grounded on the original's
wstm/deferred_result.h: a Value is the producer ("promise") side, a
Result is the consumer ("future") side, and both sides observe the same
underlying state through Vars, so the usual STM commit/conflict/retry
rules govern setting and reading a result.

	v := deferred.NewValue[int]()
	r := v.Result()
	go func() { v.Done(42) }()
	n, err := r.GetResult(tx)
*/
package deferred

import (
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/bretthall/gostm/internal/plist"
	"github.com/bretthall/gostm/stm"
)

// logger is this package's diagnostic sink, defaulting to the standard
// logrus logger the same way stm.logger does.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the logger used for this package's diagnostic
// messages, such as the warning logged when a Value is garbage collected
// without ever being completed. Passing nil restores the default.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}

// sub is one OnDone subscriber.
type sub struct {
	id uint64
	fn func()
}

// resultCore holds everything a deferred result actually owns. Value and
// Result are thin handles onto the same core.
type resultCore[T any] struct {
	done        *stm.Var[bool]
	failure     *stm.ExceptionCapture
	value       *stm.Var[*T]
	subscribers *stm.Var[plist.List[sub]]
	readerCount *stm.Var[int64]
	nextSubID   atomic.Uint64
}

func newCore[T any]() *resultCore[T] {
	return &resultCore[T]{
		done:        stm.NewVar(false),
		failure:     stm.NewExceptionCapture(),
		value:       stm.NewVar[*T](nil),
		subscribers: stm.NewVar(plist.Empty[sub]()),
		readerCount: stm.NewVar[int64](0),
	}
}

// fireSubscribers schedules every current subscriber to run exactly once,
// in registration order, as an after-hook, and clears the subscriber list.
func fireSubscribers[T any](core *resultCore[T], tx *stm.Tx) {
	subs := core.subscribers.Get(tx)
	core.subscribers.Set(plist.Empty[sub](), tx)
	tx.After(func() {
		// The list is built with Cons, so its head is the newest
		// subscriber; run them oldest first.
		var fns []func()
		subs.ForEach(func(s sub) { fns = append(fns, s.fn) })
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// brokenPromiseCleanup runs when a Value is garbage collected: if it was
// never completed, it auto-fails with ErrBrokenPromise so every Result
// observes a definite outcome instead of hanging forever. It is passed
// core, not the Value itself, so runtime.AddCleanup does not keep the
// Value reachable (see NewValue).
func brokenPromiseCleanup[T any](core *resultCore[T]) {
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		if core.done.Get(tx) {
			return struct{}{}, nil
		}
		logger.Warn("deferred: value collected without being completed, breaking promise")
		core.failure.CaptureErr(ErrBrokenPromise, tx)
		core.done.Set(true, tx)
		fireSubscribers(core, tx)
		return struct{}{}, nil
	})
}

// Value is the producer side of a deferred result.
type Value[T any] struct {
	core *resultCore[T]
}

// NewValue returns a new, pending deferred result.
func NewValue[T any]() *Value[T] {
	core := newCore[T]()
	v := &Value[T]{core: core}
	runtime.AddCleanup(v, brokenPromiseCleanup[T], core)
	return v
}

func (v *Value[T]) complete(tx *stm.Tx, set func(*stm.Tx)) {
	if v.core.done.Get(tx) {
		panic(ErrAlreadyDone)
	}
	set(tx)
	v.core.done.Set(true, tx)
	fireSubscribers(v.core, tx)
}

// Done completes the result successfully with result. Panics with
// ErrAlreadyDone if the result was already completed. If tx is given, the
// completion participates in that transaction's commit; otherwise it runs
// in its own Atomically call.
func (v *Value[T]) Done(result T, tx ...*stm.Tx) {
	set := func(tx *stm.Tx) {
		val := result
		v.core.value.Set(&val, tx)
	}
	if len(tx) > 0 {
		v.complete(tx[0], set)
		return
	}
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.complete(tx, set)
		return struct{}{}, nil
	})
}

// Fail completes the result with a failure. Panics with ErrAlreadyDone if
// the result was already completed.
func (v *Value[T]) Fail(err error, tx ...*stm.Tx) {
	set := func(tx *stm.Tx) {
		v.core.failure.CaptureErr(err, tx)
	}
	if len(tx) > 0 {
		v.complete(tx[0], set)
		return
	}
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.complete(tx, set)
		return struct{}{}, nil
	})
}

// IsDone reports whether the result has been completed yet.
func (v *Value[T]) IsDone(tx *stm.Tx) bool {
	return v.core.done.Get(tx)
}

// HasReaders reports whether any Result derived from v has not yet been
// released with Result.Release. A Result that is dropped without Release
// still counts.
func (v *Value[T]) HasReaders(tx *stm.Tx) bool {
	return v.core.readerCount.Get(tx) > 0
}

// Result derives a new consumer handle onto the same result, incrementing
// the reader count.
func (v *Value[T]) Result() *Result[T] {
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.core.readerCount.Set(v.core.readerCount.Get(tx)+1, tx)
		return struct{}{}, nil
	})
	return &Result[T]{core: v.core}
}

// Result is the consumer side of a deferred result.
type Result[T any] struct {
	core *resultCore[T]
}

// IsDone reports whether the result has been completed yet. A zero-value
// Result (one never derived from a Value) reports true and carries
// ErrInvalidResult, surfaced through GetResult/ThrowError.
func (r *Result[T]) IsDone(tx *stm.Tx) bool {
	if r.core == nil {
		return true
	}
	return r.core.done.Get(tx)
}

// Failed reports whether the result completed with a failure. Always
// false before completion.
func (r *Result[T]) Failed(tx *stm.Tx) bool {
	if r.core == nil {
		return true
	}
	if !r.core.done.Get(tx) {
		return false
	}
	return r.core.failure.HasCaptured(tx)
}

// GetResult returns the completed value, or ErrNotDone if the producer
// has not completed it yet, or the captured failure if it failed.
func (r *Result[T]) GetResult(tx *stm.Tx) (T, error) {
	var zero T
	if r.core == nil {
		return zero, ErrInvalidResult
	}
	if !r.core.done.Get(tx) {
		return zero, ErrNotDone
	}
	if err := r.core.failure.CapturedError(tx); err != nil {
		return zero, err
	}
	val := r.core.value.Get(tx)
	if val == nil {
		return zero, nil
	}
	return *val, nil
}

// ThrowError re-panics the captured failure, if any. A no-op if the
// result succeeded or is not yet done.
func (r *Result[T]) ThrowError(tx *stm.Tx) {
	if r.core == nil {
		panic(ErrInvalidResult)
	}
	r.core.failure.ThrowCaptured(tx)
}

// RetryIfNotDone calls stm.Retry if the result is not yet done, bounded by
// deadline.
func (r *Result[T]) RetryIfNotDone(tx *stm.Tx, deadline ...stm.Deadline) {
	if r.core == nil || r.core.done.Get(tx) {
		return
	}
	d := stm.Unlimited()
	if len(deadline) > 0 {
		d = deadline[0]
	}
	stm.Retry(tx, d)
}

// Wait blocks until the result is done or deadline passes, returning
// false only on timeout.
func (r *Result[T]) Wait(deadline ...stm.Deadline) bool {
	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		r.RetryIfNotDone(tx, deadline...)
		return struct{}{}, nil
	})
	return err == nil
}

// Connection represents an OnDone subscription that can later be
// cancelled.
type Connection struct {
	disconnect func()
}

// Disconnect cancels the subscription. Safe to call more than once, and
// a no-op on the Connection returned when the subscriber ran immediately
// because the result was already done.
func (conn Connection) Disconnect() {
	if conn.disconnect != nil {
		conn.disconnect()
	}
}

// OnDone registers cb to run, outside of any transaction, exactly once
// when the result becomes done. If it is already done, cb is scheduled
// to run immediately (as an after-hook of tx, or of cb's own Atomically
// call) and the returned Connection is a no-op.
func (r *Result[T]) OnDone(cb func(), tx ...*stm.Tx) Connection {
	if r.core == nil {
		return Connection{}
	}
	body := func(tx *stm.Tx) Connection {
		if r.core.done.Get(tx) {
			tx.After(cb)
			return Connection{}
		}
		id := r.core.nextSubID.Add(1)
		cur := r.core.subscribers.Get(tx)
		r.core.subscribers.Set(cur.Cons(sub{id: id, fn: cb}), tx)
		return Connection{disconnect: func() {
			stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
				cur := r.core.subscribers.Get(tx)
				r.core.subscribers.Set(cur.Filter(func(s sub) bool { return s.id != id }), tx)
				return struct{}{}, nil
			})
		}}
	}
	if len(tx) > 0 {
		return body(tx[0])
	}
	conn, _ := stm.Atomically(func(tx *stm.Tx) (Connection, error) {
		return body(tx), nil
	})
	return conn
}

// Release unregisters r as a reader, decrementing the value's reader
// count.
func (r *Result[T]) Release(tx *stm.Tx) {
	if r.core == nil {
		return
	}
	r.core.readerCount.Set(r.core.readerCount.Get(tx)-1, tx)
}

// Done returns an already-completed Result, for tests and APIs that need
// to hand back a result without a live producer.
func Done[T any](result T) *Result[T] {
	v := NewValue[T]()
	v.Done(result)
	return v.Result()
}

// Fail returns an already-failed Result.
func Fail[T any](err error) *Result[T] {
	v := NewValue[T]()
	v.Fail(err)
	return v.Result()
}
