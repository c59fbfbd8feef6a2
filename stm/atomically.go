package stm

// runProtected runs fn, recovering the three kinds of non-local exit a
// transactional body can use: Retry's panic, the internal
// validation-failed signal, and any other panic value, which is treated
// the same way a C++ exception would be -- caught here only so on-fail
// hooks can run before it is re-raised to the caller of Atomically/Nested.
func runProtected[R any](fn func() (R, error)) (result R, err error, retry *retryPanic, validationFailed bool, foreignPanic any) {
	defer func() {
		if r := recover(); r != nil {
			switch p := r.(type) {
			case retryPanic:
				retry = &p
			case validationFailedPanic:
				validationFailed = true
			default:
				foreignPanic = r
			}
		}
	}()
	result, err = fn()
	return
}

// Retry aborts the current transaction attempt without committing
// anything and blocks the enclosing Atomically call until one of the
// variables read so far changes, up to deadline (the smaller of deadline
// and the call's MaxRetryWait option, if any). With no deadline argument
// the wait is unbounded.
//
// Retry panics internally; it must only be called from within a
// transactional body passed to Atomically or Nested, and the panic must
// not be recovered by caller code before it reaches the driver.
func Retry(tx *Tx, deadline ...Deadline) {
	d := Unlimited()
	if len(deadline) > 0 {
		d = deadline[0]
	}
	panic(retryPanic{deadline: d})
}

// commit attempts to commit the root frame: a read-commit (validate under
// shared, or reuse an already-held upgrade) if there is nothing to write,
// otherwise a write-commit (validate under upgrade, promote to exclusive,
// install every set record, notify, demote). Returns false on a
// validation conflict, in which case the caller should restart.
func commit(root *frame) bool {
	if len(root.set) == 0 {
		if root.upgradeHeld {
			return validateAll(root)
		}
		theLock.rLock()
		ok := validateAll(root)
		theLock.rUnlock()
		return ok
	}

	commitLock(root)
	if !validateAll(root) {
		releaseUpgrade(root)
		return false
	}

	theLock.promote()
	// dead holds the records displaced by this commit. It is a purely
	// local slice: once commit returns, nothing keeps it reachable, so by
	// the time Atomically runs the after-hooks (after root.reset(), which
	// happens next) the prior records are already unreferenced, matching
	// spec §3/§9's "drop the dead records before running after-hooks"
	// without needing an explicit free -- Go's GC does the rest.
	dead := make([]any, 0, len(root.set))
	for v, slot := range root.set {
		dead = append(dead, v.commitSet(slot))
	}
	theLock.notifyCommit()
	theLock.demote()
	releaseUpgrade(root)
	_ = dead
	return true
}

// Atomically runs f as a top-level transaction, driving the full
// validate/commit/retry protocol of spec §4.2 until it either commits
// successfully or gives up per the configured options:
//
//   - if f returns a non-nil error, on-fail hooks run, the frame is
//     cleared, and the error is returned as-is;
//   - if f panics with any value other than Retry's internal signal,
//     on-fail hooks run and the panic is re-raised to Atomically's caller;
//   - if f calls Retry, on-fail hooks run and the call blocks until a
//     read variable changes or the deadline passes (ErrRetryTimeout), or
//     MaxRetries is exceeded (ErrMaxRetries);
//   - if validation fails (another transaction committed a conflicting
//     write first), on-fail hooks run and the attempt restarts, subject
//     to MaxConflicts;
//   - otherwise before-commit hooks run, then the attempt commits; a
//     conflicting commit restarts exactly like a validation failure.
func Atomically[R any](f func(*Tx) (R, error), opts ...Option) (R, error) {
	o := resolveOptions(opts)
	root := newFrame(nil)
	tx := &Tx{cur: root}

	markAtomicActive()
	defer markAtomicInactive()

	// The ConflictRunLocked fallback below (commitLock) can leave the root
	// frame holding the upgrade slot across several loop iterations, on
	// purpose, to guarantee the next attempt commits. But once this call
	// returns or panics by any path -- success, a returned error, a
	// foreign panic, MaxRetries, or a retry timeout -- that hold must be
	// released exactly once, or the upgrade slot leaks process-wide and
	// every future write-commit blocks on uLock() forever. A read-only
	// commit (commit()'s upgradeHeld branch) never releases it itself, so
	// this defer is the one place that does, regardless of which exit path
	// is taken; commit()'s write-commit path already released it via
	// releaseUpgrade, so upgradeHeld is already false there and this is a
	// no-op.
	defer func() {
		if root.upgradeHeld {
			releaseUpgrade(root)
		}
	}()

	var badCommits, retries uint32

	for {
		if o.maxConflicts.limited && badCommits >= o.maxConflicts.n {
			if o.conflictRes == ConflictThrow {
				var zero R
				return zero, ErrMaxConflicts
			}
			logger.Warn("stm: exceeded max conflicts, running locked")
			commitLock(root)
		}

		result, err, retry, validationFailed, foreignPanic := runProtected(func() (R, error) {
			r, e := f(tx)
			if e != nil {
				return r, e
			}
			for _, h := range root.beforeCommit {
				h(tx)
			}
			return r, nil
		})

		switch {
		case validationFailed:
			badCommits++
			root.runOnFail()
			root.reset()
			continue

		case retry != nil:
			retries++
			if o.maxRetries.limited && retries > o.maxRetries.n {
				root.runOnFail()
				root.reset()
				var zero R
				return zero, ErrMaxRetries
			}
			root.runOnFail()
			deadline := retry.deadline.earlier(o.maxRetryWait)
			changed := waitForChanges(root, deadline)
			root.reset()
			if !changed {
				var zero R
				return zero, ErrRetryTimeout
			}
			continue

		case foreignPanic != nil:
			root.runOnFail()
			root.reset()
			panic(foreignPanic)

		case err != nil:
			root.runOnFail()
			root.reset()
			var zero R
			return zero, err

		default:
			if !commit(root) {
				badCommits++
				root.runOnFail()
				root.reset()
				continue
			}
			afters := root.after
			root.reset()
			for _, a := range afters {
				a()
			}
			return result, nil
		}
	}
}

// Nested runs f as a sub-transaction of parent, sharing parent's global
// lock hold but its own frame: a fresh got/set/locals and hook queues that
// either merge into parent's frame on success, or -- on validation
// failure, Retry, a returned error, or a panic -- run this level's on-fail
// hooks, merge only what was read up to the root frame, and propagate.
// Unlike Atomically, Nested never loops; restart is always driven by the
// root Atomically call.
func Nested[R any](parent *Tx, f func(*Tx) (R, error)) (R, error) {
	child := newFrame(parent.cur)
	tx := &Tx{cur: child}
	root := tx.root()

	result, err, retry, validationFailed, foreignPanic := runProtected(func() (R, error) {
		return f(tx)
	})

	switch {
	case validationFailed:
		child.runOnFail()
		child.mergeGetsToRoot(root)
		panic(validationFailedPanic{})

	case retry != nil:
		child.runOnFail()
		child.mergeGetsToRoot(root)
		panic(*retry)

	case foreignPanic != nil:
		child.runOnFail()
		child.mergeGetsToRoot(root)
		panic(foreignPanic)

	case err != nil:
		child.runOnFail()
		child.mergeGetsToRoot(root)
		var zero R
		return zero, err

	default:
		child.mergeToParent()
		return result, nil
	}
}
