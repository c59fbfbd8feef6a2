package stm

import (
	"sync"
	"time"
)

// globalLock is the single process-wide read/write/exclusive lock described
// in spec §4.2: many shared holders, one upgrade holder (which coexists
// with shards), promoted to exclusive only for the value-swap phase of a
// write-commit. Go's standard library has no upgradeable RWMutex (unlike
// the original's boost::upgrade_mutex), so this is hand-rolled on top of
// sync.Mutex and sync.Cond -- the one piece of the runtime with no library
// in the retrieval pack to reach for.
//
// A second condition variable, commitCond, is the "commit signal": it is
// broadcast after every successful write-commit, and is what blocking
// Retry waits wake up on.
type globalLock struct {
	mu         sync.Mutex
	stateCond  *sync.Cond
	commitCond *sync.Cond

	readers     int
	upgradeHeld bool
	exclusive   bool
}

func newGlobalLock() *globalLock {
	l := &globalLock{}
	l.stateCond = sync.NewCond(&l.mu)
	l.commitCond = sync.NewCond(&l.mu)
	return l
}

// theLock is the one global lock shared by every Var and transaction in
// the process, matching the original's single static s_readMutex.
var theLock = newGlobalLock()

func (l *globalLock) rLock() {
	l.mu.Lock()
	for l.exclusive {
		l.stateCond.Wait()
	}
	l.readers++
	l.mu.Unlock()
}

func (l *globalLock) rUnlock() {
	l.mu.Lock()
	l.readers--
	if l.readers == 0 {
		l.stateCond.Broadcast()
	}
	l.mu.Unlock()
}

// uLock acquires the upgrade slot. Upgrade coexists with any number of
// shared holders; only one transaction may hold it at a time.
func (l *globalLock) uLock() {
	l.mu.Lock()
	for l.upgradeHeld || l.exclusive {
		l.stateCond.Wait()
	}
	l.upgradeHeld = true
	l.mu.Unlock()
}

func (l *globalLock) uUnlock() {
	l.mu.Lock()
	l.upgradeHeld = false
	l.stateCond.Broadcast()
	l.mu.Unlock()
}

// promote marks the lock exclusive, so no new shared holder can enter, and
// then waits for every existing shared holder to drain. The caller must
// already hold upgrade, and must have
// released any shared hold of its own first (see commitLock).
func (l *globalLock) promote() {
	l.mu.Lock()
	l.exclusive = true
	for l.readers > 0 {
		l.stateCond.Wait()
	}
	l.mu.Unlock()
}

// demote ends the exclusive phase, letting blocked readers back in. The
// caller still holds upgrade afterwards and must release it separately.
func (l *globalLock) demote() {
	l.mu.Lock()
	l.exclusive = false
	l.stateCond.Broadcast()
	l.mu.Unlock()
}

// notifyCommit wakes every transaction blocked in waitForCommit. Called
// once per successful write-commit, while still holding exclusive.
func (l *globalLock) notifyCommit() {
	l.commitCond.Broadcast()
}

// waitForCommit blocks until either a commit is notified or the deadline
// passes, whichever is first. The caller must already hold a shared lock
// (via rLock); waitForCommit drops that hold for the duration of the wait
// -- decrementing readers and waking anyone blocked on the reader count
// draining, the same way rUnlock does -- and reacquires it before
// returning, so a transaction parked here does not block a committing
// writer's promote() from ever draining readers. Without this, a parked
// retryer and a promoting writer deadlock on each other: the writer can't
// promote until readers drains, and the reader never drains until the
// writer's commit notifies it, which can't happen until promote returns.
func (l *globalLock) waitForCommit(deadline Deadline) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.readers--
	if l.readers == 0 {
		l.stateCond.Broadcast()
	}

	if deadline.IsUnlimited() {
		l.commitCond.Wait()
	} else if d := time.Until(deadline.Time()); d > 0 {
		timer := time.AfterFunc(d, func() {
			l.mu.Lock()
			l.commitCond.Broadcast()
			l.mu.Unlock()
		})
		l.commitCond.Wait()
		timer.Stop()
	}

	for l.exclusive {
		l.stateCond.Wait()
	}
	l.readers++
}
