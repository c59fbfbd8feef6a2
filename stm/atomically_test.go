package stm_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bretthall/gostm/stm"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Scenario 2: two writers conflict. Both read v1 and v2 and write their
// sum into one of them; if they overlap, the one that commits second
// restarts. The test checks that the final state is one of the two valid
// orderings.
func TestTwoWritersConflict(t *testing.T) {
	v1 := stm.NewVar(1)
	v2 := stm.NewVar(1)

	var wg sync.WaitGroup
	wg.Add(2)
	start := make(chan struct{})

	go func() {
		defer wg.Done()
		<-start
		stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
			a, b := v1.Get(tx), v2.Get(tx)
			v1.Set(a+b, tx)
			return struct{}{}, nil
		})
	}()
	go func() {
		defer wg.Done()
		<-start
		stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
			a, b := v1.Get(tx), v2.Get(tx)
			v2.Set(a+b, tx)
			return struct{}{}, nil
		})
	}()
	close(start)
	wg.Wait()

	got1, got2 := v1.GetReadOnly(), v2.GetReadOnly()
	valid := (got1 == 2 && got2 == 3) || (got1 == 3 && got2 == 2)
	if !valid {
		t.Fatalf("final values (%d, %d) are not one of (2,3) or (3,2)", got1, got2)
	}
}

// Scenario 3: a transaction blocked in Retry wakes up once the variable
// it read changes, and returns the new value without timing out.
func TestRetryWakesOnWrite(t *testing.T) {
	v := stm.NewVar(0)
	result := make(chan int, 1)

	go func() {
		got, err := stm.Atomically(func(tx *stm.Tx) (int, error) {
			if v.Get(tx) == 0 {
				stm.Retry(tx)
			}
			return v.Get(tx), nil
		})
		if err != nil {
			t.Errorf("Atomically returned error: %v", err)
			return
		}
		result <- got
	}()

	time.Sleep(30 * time.Millisecond)
	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.Set(10, tx)
		return struct{}{}, nil
	})

	select {
	case got := <-result:
		if got != 10 {
			t.Fatalf("got %d, want 10", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry never woke up")
	}
}

// Scenario 4: the same retry, but with no write and a short MaxRetryWait,
// must time out with ErrRetryTimeout.
func TestRetryTimeout(t *testing.T) {
	v := stm.NewVar(0)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		if v.Get(tx) == 0 {
			stm.Retry(tx)
		}
		return struct{}{}, nil
	}, stm.MaxRetryWait(stm.After(10*time.Millisecond)))

	if !errors.Is(err, stm.ErrRetryTimeout) {
		t.Fatalf("err = %v, want ErrRetryTimeout", err)
	}
}

func TestMaxRetriesExceeded(t *testing.T) {
	v := stm.NewVar(0)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.Get(tx)
		// Change v from a separate transaction before retrying, so every
		// Retry wakes at once and the retry count, not a timeout, ends
		// the call.
		stm.Atomically(func(tx2 *stm.Tx) (struct{}, error) {
			v.Set(v.Get(tx2)+1, tx2)
			return struct{}{}, nil
		})
		stm.Retry(tx, stm.After(time.Millisecond))
		return struct{}{}, nil
	}, stm.MaxRetries(2))

	if !errors.Is(err, stm.ErrMaxRetries) {
		t.Fatalf("err = %v, want ErrMaxRetries", err)
	}
}

func TestUserErrorPropagates(t *testing.T) {
	sentinel := errors.New("boom")
	onFailRan := false

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		tx.OnFail(func() { onFailRan = true })
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
	if !onFailRan {
		t.Fatal("on-fail hook did not run for a returned error")
	}
}

func TestUserPanicPropagates(t *testing.T) {
	onFailRan := false
	defer func() {
		r := recover()
		if r != "kaboom" {
			t.Fatalf("recovered %v, want %q", r, "kaboom")
		}
		if !onFailRan {
			t.Fatal("on-fail hook did not run before panic propagated")
		}
	}()

	stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		tx.OnFail(func() { onFailRan = true })
		panic("kaboom")
	})
}

// Invariant 6: before-commit hooks see the same transaction handle and
// their effects are part of the same commit.
func TestBeforeCommitHookParticipatesInCommit(t *testing.T) {
	v := stm.NewVar(0)
	w := stm.NewVar(0)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.Set(1, tx)
		tx.BeforeCommit(func(tx *stm.Tx) {
			w.Set(v.Get(tx)+1, tx)
		})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if got := w.GetReadOnly(); got != 2 {
		t.Fatalf("w.GetReadOnly() = %d, want 2", got)
	}
}

// Invariant 7/8: after-hooks run exactly once after a successful commit
// and never inside a transaction; on-fail hooks run once per failed
// attempt.
func TestAfterAndOnFailHookCounts(t *testing.T) {
	v := stm.NewVar(0)
	afterCount := 0
	onFailCount := 0
	attempt := 0

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		tx.After(func() { afterCount++ })
		tx.OnFail(func() { onFailCount++ })
		attempt++
		x := v.Get(tx)
		if attempt < 3 {
			// A separate transaction commits a write to v after this
			// attempt read it, so this attempt fails validation at commit.
			stm.Atomically(func(tx2 *stm.Tx) (struct{}, error) {
				v.Set(v.Get(tx2)+1, tx2)
				return struct{}{}, nil
			})
		}
		v.Set(x+1, tx)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if afterCount != 1 {
		t.Fatalf("afterCount = %d, want 1", afterCount)
	}
	if onFailCount != 2 {
		t.Fatalf("onFailCount = %d, want 2", onFailCount)
	}
}

func TestNestedSubTransactionRollback(t *testing.T) {
	v := stm.NewVar(1)
	w := stm.NewVar(1)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		v.Set(2, tx)
		func() {
			defer func() { recover() }()
			stm.Nested(tx, func(tx *stm.Tx) (struct{}, error) {
				w.Set(100, tx)
				_ = v.Get(tx)
				panic("sub-transaction failure")
			})
		}()
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	// w's set in the failed sub-transaction must not have reached the
	// parent: only v's write should be visible.
	if got := w.GetReadOnly(); got != 1 {
		t.Fatalf("w.GetReadOnly() = %d, want 1 (sub-transaction write should not have committed)", got)
	}
	if got := v.GetReadOnly(); got != 2 {
		t.Fatalf("v.GetReadOnly() = %d, want 2", got)
	}
}

func TestNestedSubTransactionSuccess(t *testing.T) {
	v := stm.NewVar(1)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		_, err := stm.Nested(tx, func(tx *stm.Tx) (struct{}, error) {
			v.Set(v.Get(tx)+1, tx)
			return struct{}{}, nil
		})
		return struct{}{}, err
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if got := v.GetReadOnly(); got != 2 {
		t.Fatalf("v.GetReadOnly() = %d, want 2", got)
	}
}
