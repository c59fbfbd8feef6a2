/*
Package stm provides Software Transactional Memory for Go: composable,
nestable, optimistic transactions over versioned shared variables.

STM is an alternative to hand-rolled locking. A Var[T] holds a versioned
snapshot of a value of type T; transactions read and write Vars through a
*Tx handle, and Atomically drives the validate/commit/retry protocol:

	x := stm.NewVar(3)
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		cur := x.Get(tx)
		x.Set(cur-1, tx)
		return struct{}{}, nil
	})

Transactions may call Retry at any point. Retry aborts the current attempt
without committing anything, and blocks the call to Atomically until one of
the variables read so far changes, at which point the body runs again:

	stm.Atomically(func(tx *stm.Tx) (int, error) {
		cur := x.Get(tx)
		if cur == 0 {
			stm.Retry(tx)
		}
		x.Set(cur-1, tx)
		return cur, nil
	})

Transaction bodies must not have externally visible side effects: a body may
run more than once before it commits. Schedule side effects with After,
which runs once, outside any transaction, after a successful root commit.

Unlike the package this one is descended from, Retry and the internal
validation-failed signal are implemented with panic/recover rather than a
single string sentinel, and a body returns (R, error) instead of using bare
interface{} assertions for its reads -- generics remove the need for either.
*/
package stm
