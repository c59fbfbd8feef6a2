package channel

import "github.com/bretthall/gostm/stm"

// Reader is a cursor into a Channel's message stream. Each Reader advances
// independently; many Readers on the same Channel each see every write
// made after their own creation.
type Reader[T any] struct {
	core   *channelCore[T]
	cursor *stm.Var[*node[T]]
}

// Peek returns the next unread message without consuming it, or false if
// none is available yet.
func (r *Reader[T]) Peek(tx *stm.Tx) (T, bool) {
	cur := r.cursor.Get(tx)
	if cur.initial {
		return cur.data, true
	}
	nxt := cur.next.Get(tx)
	if nxt == nil {
		var zero T
		return zero, false
	}
	return nxt.data, true
}

// ReadAtomic consumes and returns the next unread message, or false if
// none is available yet.
func (r *Reader[T]) ReadAtomic(tx *stm.Tx) (T, bool) {
	cur := r.cursor.Get(tx)
	if cur.initial {
		nxt := cur.next.Get(tx)
		r.cursor.Set(nxt, tx)
		return cur.data, true
	}
	nxt := cur.next.Get(tx)
	if nxt == nil {
		var zero T
		return zero, false
	}
	r.cursor.Set(nxt, tx)
	return nxt.data, true
}

// ReadRetry is ReadAtomic, but calls stm.Retry instead of returning false
// when no message is available yet.
func (r *Reader[T]) ReadRetry(tx *stm.Tx, deadline ...stm.Deadline) (T, bool) {
	if v, ok := r.ReadAtomic(tx); ok {
		return v, true
	}
	d := stm.Unlimited()
	if len(deadline) > 0 {
		d = deadline[0]
	}
	stm.Retry(tx, d)
	panic("unreachable")
}

// ReadAll consumes and returns every currently available message, in
// write order.
func (r *Reader[T]) ReadAll(tx *stm.Tx) []T {
	var out []T
	for {
		v, ok := r.ReadAtomic(tx)
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// ReadAllNow is ReadAll wrapped in its own Atomically call, with a
// conflict limit that falls back to running locked -- guaranteeing
// forward progress even under heavy concurrent writers (spec §4.4's "run
// this with a conflict limit and fall back to run locked").
func (r *Reader[T]) ReadAllNow() []T {
	out, _ := stm.Atomically(func(tx *stm.Tx) ([]T, error) {
		return r.ReadAll(tx), nil
	}, stm.MaxConflicts(10, stm.ConflictRunLocked))
	return out
}

// Wait blocks until a message becomes available or deadline passes,
// returning false only on timeout.
func (r *Reader[T]) Wait(deadline ...stm.Deadline) bool {
	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		if _, ok := r.Peek(tx); !ok {
			d := stm.Unlimited()
			if len(deadline) > 0 {
				d = deadline[0]
			}
			stm.Retry(tx, d)
		}
		return struct{}{}, nil
	})
	return err == nil
}

// Release unregisters r as a reader of its channel, decrementing the
// reader count. A channel with no readers drops future writes instead of
// accumulating them. Go's garbage collector reclaims whatever remains of
// r's cursor chain without the iterative deque the original needs to
// avoid recursive-destructor stack overflow -- there are no destructors
// here to re-enter and no recursion involved in collecting a linked list,
// so Release need only drop its own reference.
func (r *Reader[T]) Release(tx *stm.Tx) {
	r.core.readerCount.Set(r.core.readerCount.Get(tx)-1, tx)
	r.cursor.Set(nil, tx)
}

// ReleaseNow is Release wrapped in its own Atomically call.
func (r *Reader[T]) ReleaseNow() {
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		r.Release(tx)
		return struct{}{}, nil
	})
}

// Copy returns a new Reader positioned at the same point in the stream as
// r, advancing independently from then on.
func (r *Reader[T]) Copy(tx *stm.Tx) *Reader[T] {
	r.core.readerCount.Set(r.core.readerCount.Get(tx)+1, tx)
	cur := r.cursor.Get(tx)
	return &Reader[T]{core: r.core, cursor: stm.NewVar(cur)}
}
