package stm_test

import (
	"testing"

	"github.com/bretthall/gostm/stm"
)

// Scenario 1 from the spec: increment returns the pre-increment value and
// leaves the variable at its post-increment value.
func TestIncrement(t *testing.T) {
	v := stm.NewVar(1)

	got, err := stm.Atomically(func(tx *stm.Tx) (int, error) {
		x := v.Get(tx)
		v.Set(x+3, tx)
		return x, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if got != 1 {
		t.Fatalf("Atomically returned %d, want 1", got)
	}
	if final := v.GetReadOnly(); final != 4 {
		t.Fatalf("v.GetReadOnly() = %d, want 4", final)
	}
}

// Invariant 2: reading the same variable twice without an intervening set
// returns the same value.
func TestSnapshotReadIsStable(t *testing.T) {
	v := stm.NewVar(10)

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		a := v.Get(tx)
		b := v.Get(tx)
		if a != b {
			t.Fatalf("two reads of v in one transaction disagreed: %d != %d", a, b)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
}

// A variable set then gotten in the same transaction returns the set
// value, not the previously committed one.
func TestSetThenGetSeesSetValue(t *testing.T) {
	v := stm.NewVar("a")

	got, err := stm.Atomically(func(tx *stm.Tx) (string, error) {
		v.Set("b", tx)
		return v.Get(tx), nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if got != "b" {
		t.Fatalf("got %q, want %q", got, "b")
	}
}

// A write-only transaction does not conflict with a concurrent reader
// that never observed the variable: Set never records a got entry.
func TestSetDoesNotRecordARead(t *testing.T) {
	v := stm.NewVar(0)
	attempts := 0

	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		attempts++
		v.Set(1, tx)
		// A separate transaction commits a write to v before this one
		// commits; since Set recorded no read of v, that is no conflict.
		stm.Atomically(func(tx2 *stm.Tx) (struct{}, error) {
			v.Set(5, tx2)
			return struct{}{}, nil
		})
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("body ran %d times, want 1 (Set must not record a read)", attempts)
	}
	if got := v.GetReadOnly(); got != 1 {
		t.Fatalf("v.GetReadOnly() = %d, want 1", got)
	}
}

func TestGetInconsistent(t *testing.T) {
	v := stm.NewVar(5)

	got, err := stm.Inconsistently(func(i *stm.Inconsistent) (int, error) {
		return v.GetInconsistent(i), nil
	})
	if err != nil {
		t.Fatalf("Inconsistently returned error: %v", err)
	}
	if got != 5 {
		t.Fatalf("got %d, want 5", got)
	}
}

func TestInconsistentlyForbiddenInsideAtomic(t *testing.T) {
	_, err := stm.Atomically(func(tx *stm.Tx) (struct{}, error) {
		_, ierr := stm.Inconsistently(func(i *stm.Inconsistent) (struct{}, error) {
			return struct{}{}, nil
		})
		if ierr != stm.ErrInAtomic {
			t.Fatalf("Inconsistently inside Atomically returned %v, want ErrInAtomic", ierr)
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("Atomically returned error: %v", err)
	}
}
