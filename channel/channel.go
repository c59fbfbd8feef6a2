/*
Package channel implements a multi-cast, transactional, FIFO channel built
on package stm, grounded on the original's wstm/channel.h. The node list is
a linked list of stm.Var-held next-pointers; each reader holds a cursor
into that list, so many readers can independently consume the same stream
of writes at their own pace, and a write with no readers is simply dropped.

	c := channel.New[int]()
	r := c.NewReader(tx)
	c.Write(1, tx)
	v, ok := r.ReadAtomic(tx)
*/
package channel

import (
	"sync/atomic"
	"weak"

	"github.com/sirupsen/logrus"

	"github.com/bretthall/gostm/internal/plist"
	"github.com/bretthall/gostm/stm"
)

// logger is this package's diagnostic sink, defaulting to the standard
// logrus logger the same way stm.logger does.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the logger used for this package's diagnostic
// messages, such as the warning logged when a write is dropped because
// the channel has no readers. Passing nil restores the default.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}

// node is one message in a channel's linked list. next is a Var so a
// writer can append to the chain transactionally; nodes are otherwise
// immutable once constructed.
type node[T any] struct {
	data    T
	next    *stm.Var[*node[T]]
	initial bool
}

// writeSub is one subscriber to a channel's write signal.
type writeSub struct {
	id uint64
	fn func()
}

// channelCore holds everything a channel actually owns. Channel keeps a
// strong reference to one; Writer and ReadOnlyChannel keep only a weak
// reference, so once the owning Channel (and every Reader keeping the core
// reachable) is gone, ReadOnlyChannel.NewReader returns ErrInvalidChannel
// and Writer's writes report false, rather than keeping an abandoned
// channel's node chain alive forever.
type channelCore[T any] struct {
	tail        *stm.Var[*node[T]]
	readerCount *stm.Var[int]
	writeSubs   *stm.Var[plist.List[writeSub]]
	readerInit  func(*stm.Tx) T
	nextSubID   atomic.Uint64
}

// Channel is a multi-cast transactional FIFO.
type Channel[T any] struct {
	core *channelCore[T]
}

// New returns a new, empty channel. If readerInit is given, every reader
// created afterward receives an extra "initial" message first, built by
// calling readerInit under the same transaction that creates the reader.
func New[T any](readerInit ...func(*stm.Tx) T) *Channel[T] {
	core := &channelCore[T]{
		tail:        stm.NewVar[*node[T]](&node[T]{next: stm.NewVar[*node[T]](nil)}),
		readerCount: stm.NewVar(0),
		writeSubs:   stm.NewVar(plist.Empty[writeSub]()),
	}
	if len(readerInit) > 0 {
		core.readerInit = readerInit[0]
	}
	return &Channel[T]{core: core}
}

func writeCore[T any](core *channelCore[T], v T, tx *stm.Tx) {
	if core.readerCount.Get(tx) == 0 {
		// No one is listening: dropping here means no node is ever
		// allocated that survives this commit (spec invariant 11).
		logger.Warn("channel: dropping write, no readers")
		return
	}
	newNode := &node[T]{data: v, next: stm.NewVar[*node[T]](nil)}
	oldTail := core.tail.Get(tx)
	oldTail.next.Set(newNode, tx)
	core.tail.Set(newNode, tx)

	subs := core.writeSubs.Get(tx)
	if !subs.IsEmpty() {
		tx.After(func() {
			subs.ForEach(func(s writeSub) { s.fn() })
		})
	}
}

// Write appends v to the channel under tx, or drops it if the channel
// currently has no readers.
func (c *Channel[T]) Write(v T, tx *stm.Tx) {
	writeCore(c.core, v, tx)
}

// WriteNow is Write wrapped in its own Atomically call.
func (c *Channel[T]) WriteNow(v T) {
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		c.Write(v, tx)
		return struct{}{}, nil
	})
}

// Connection represents a subscription that can later be cancelled.
type Connection struct {
	disconnect func()
}

// Disconnect cancels the subscription. Safe to call more than once.
func (conn Connection) Disconnect() {
	if conn.disconnect != nil {
		conn.disconnect()
	}
}

// ConnectWriteSignal registers h to be called, outside of any
// transaction, once after every committed transaction whose write appended
// a message. A write dropped because the channel has no readers does not
// fire it.
func (c *Channel[T]) ConnectWriteSignal(h func()) Connection {
	id := c.core.nextSubID.Add(1)
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		cur := c.core.writeSubs.Get(tx)
		c.core.writeSubs.Set(cur.Cons(writeSub{id: id, fn: h}), tx)
		return struct{}{}, nil
	})
	return Connection{disconnect: func() {
		stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
			cur := c.core.writeSubs.Get(tx)
			c.core.writeSubs.Set(cur.Filter(func(s writeSub) bool { return s.id != id }), tx)
			return struct{}{}, nil
		})
	}}
}

func newReaderFromCore[T any](core *channelCore[T], tx *stm.Tx) *Reader[T] {
	cursor := core.tail.Get(tx)
	if core.readerInit != nil {
		initVal := core.readerInit(tx)
		cursor = &node[T]{data: initVal, next: stm.NewVar(cursor), initial: true}
	}
	core.readerCount.Set(core.readerCount.Get(tx)+1, tx)
	return &Reader[T]{core: core, cursor: stm.NewVar(cursor)}
}

// NewReader creates a reader positioned at the channel's current tail: it
// will observe only writes made after this call (plus, if the channel was
// constructed with a readerInit function, one extra initial message).
func (c *Channel[T]) NewReader(tx *stm.Tx) *Reader[T] {
	return newReaderFromCore(c.core, tx)
}

// ReadOnly returns a read-only view of the channel that holds only a weak
// reference to it, the Go analogue of the original's WReadOnlyChannel.
func (c *Channel[T]) ReadOnly() *ReadOnlyChannel[T] {
	return &ReadOnlyChannel[T]{weak: weak.Make(c.core)}
}

// Writer returns a detached writer holding only a weak reference to the
// channel.
func (c *Channel[T]) Writer() *Writer[T] {
	return &Writer[T]{weak: weak.Make(c.core)}
}

// ReadOnlyChannel is a weak-referencing read-only view of a Channel.
type ReadOnlyChannel[T any] struct {
	weak weak.Pointer[channelCore[T]]
}

// NewReader creates a reader on the underlying channel, or returns
// ErrInvalidChannel if it has already been collected.
func (ro *ReadOnlyChannel[T]) NewReader(tx *stm.Tx) (*Reader[T], error) {
	core := ro.weak.Value()
	if core == nil {
		return nil, ErrInvalidChannel
	}
	return newReaderFromCore(core, tx), nil
}

// Writer is a detached, weak-referencing handle that can write to a
// channel without keeping it alive on its own.
type Writer[T any] struct {
	weak weak.Pointer[channelCore[T]]
}

// WriteAtomic writes v under tx, returning false (and writing nothing) if
// the underlying channel has already been collected.
func (w *Writer[T]) WriteAtomic(v T, tx *stm.Tx) bool {
	core := w.weak.Value()
	if core == nil {
		return false
	}
	writeCore(core, v, tx)
	return true
}

// Write is WriteAtomic wrapped in its own Atomically call.
func (w *Writer[T]) Write(v T) bool {
	ok, _ := stm.Atomically(func(tx *stm.Tx) (bool, error) {
		return w.WriteAtomic(v, tx), nil
	})
	return ok
}
