// Package plist implements an immutable, structurally-shared singly-linked
// list, grounded on the original's wstm/persistent_list.h. It backs the
// deferred result's subscriber list (package deferred) and anywhere else a
// commit-time snapshot-then-merge wants O(1) prepend with cheap sharing
// between the old and new versions.
package plist

// node is a shared, immutable list cell. Because List never mutates a
// node after construction, the same node chain can be (and is) shared by
// any number of List values.
type node[T any] struct {
	value T
	next  *node[T]
}

// List is an immutable singly-linked list. The zero value is the empty
// list.
type List[T any] struct {
	head *node[T]
	len  int
}

// Empty returns the empty list. Equivalent to the zero value of List[T].
func Empty[T any]() List[T] {
	return List[T]{}
}

// Cons returns a new list with v prepended, sharing l's existing chain.
func (l List[T]) Cons(v T) List[T] {
	return List[T]{head: &node[T]{value: v, next: l.head}, len: l.len + 1}
}

// Head returns the first element and true, or the zero value and false if
// l is empty.
func (l List[T]) Head() (T, bool) {
	if l.head == nil {
		var zero T
		return zero, false
	}
	return l.head.value, true
}

// Tail returns the list with the first element removed. Tail of the empty
// list is the empty list.
func (l List[T]) Tail() List[T] {
	if l.head == nil {
		return l
	}
	return List[T]{head: l.head.next, len: l.len - 1}
}

// IsEmpty reports whether l has no elements.
func (l List[T]) IsEmpty() bool {
	return l.head == nil
}

// Len returns the number of elements in l.
func (l List[T]) Len() int {
	return l.len
}

// ForEach calls f with every element of l, head first.
func (l List[T]) ForEach(f func(T)) {
	for n := l.head; n != nil; n = n.next {
		f(n.value)
	}
}

// Filter returns a new list containing only the elements for which pred
// returns true, preserving order. Used, for example, to drop a single
// subscriber id on Disconnect.
func (l List[T]) Filter(pred func(T) bool) List[T] {
	// Collect matches head-to-tail, then build the result back-to-front
	// with Cons so the new list shares no mutable state with l and
	// preserves order without recursion (a long list must not blow the
	// stack to filter, mirroring the original's iterative-release
	// discipline for long chains).
	var kept []T
	l.ForEach(func(v T) {
		if pred(v) {
			kept = append(kept, v)
		}
	})
	out := Empty[T]()
	for i := len(kept) - 1; i >= 0; i-- {
		out = out.Cons(kept[i])
	}
	return out
}
