package stm

import "sync/atomic"

// localKeys is the process-wide counter handing out unique keys to
// transaction-local value sites, mirroring the original's
// Internal::GetTransactionLocalKey().
var localKeys atomic.Uint64

func nextLocalKey() uint64 {
	return localKeys.Add(1)
}

// Local is a value scoped to a single transaction (and visible to its
// sub-transactions), the Go analogue of WTransactionLocalValue<T>. Unlike
// a Var, a Local's value never outlives the transaction that set it and
// never participates in conflict detection: it is plain transaction-scoped
// storage, not a shared memory cell.
type Local[T any] struct {
	key uint64
}

// NewLocal allocates a new transaction-local value site.
func NewLocal[T any]() *Local[T] {
	return &Local[T]{key: nextLocalKey()}
}

// Get returns the value tx (or an ancestor frame) has stored, if any.
func (l *Local[T]) Get(tx *Tx) (T, bool) {
	for f := tx.cur; f != nil; f = f.parent {
		if v, ok := f.locals[l.key]; ok {
			return v.(T), true
		}
	}
	var zero T
	return zero, false
}

// Set stores v in the current frame, returning the previous value (or the
// zero value if none was set at this nesting level or above).
func (l *Local[T]) Set(v T, tx *Tx) T {
	old, _ := l.Get(tx)
	tx.cur.locals[l.key] = v
	return old
}

// LocalFlag is a Local[bool] with a convenient test-and-set operation: the
// common case of "have we already done this once in this transaction".
type LocalFlag struct {
	local Local[bool]
}

// NewLocalFlag allocates a new transaction-local flag site.
func NewLocalFlag() *LocalFlag {
	return &LocalFlag{local: Local[bool]{key: nextLocalKey()}}
}

// TestAndSet returns the flag's previous value (false if never set) and
// sets it to true in the current frame.
func (f *LocalFlag) TestAndSet(tx *Tx) bool {
	was, _ := f.local.Get(tx)
	f.local.Set(true, tx)
	return was
}
