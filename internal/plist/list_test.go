package plist_test

import (
	"testing"

	"github.com/bretthall/gostm/internal/plist"
)

func TestEmptyList(t *testing.T) {
	l := plist.Empty[int]()
	if !l.IsEmpty() {
		t.Fatal("Empty() is not IsEmpty")
	}
	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", l.Len())
	}
	if _, ok := l.Head(); ok {
		t.Fatal("Head() on empty list reported ok")
	}
}

func TestConsAndHead(t *testing.T) {
	l := plist.Empty[int]().Cons(3).Cons(2).Cons(1)
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	var got []int
	for !l.IsEmpty() {
		v, ok := l.Head()
		if !ok {
			t.Fatal("Head() reported not ok on a non-empty list")
		}
		got = append(got, v)
		l = l.Tail()
	}
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Cons never mutates the list it's called on: the original list must
// still see its own elements afterward.
func TestConsIsPersistent(t *testing.T) {
	base := plist.Empty[int]().Cons(1)
	extended := base.Cons(2)

	if base.Len() != 1 {
		t.Fatalf("base.Len() = %d, want 1", base.Len())
	}
	if extended.Len() != 2 {
		t.Fatalf("extended.Len() = %d, want 2", extended.Len())
	}
	v, _ := base.Head()
	if v != 1 {
		t.Fatalf("base.Head() = %d, want 1", v)
	}
}

func TestForEach(t *testing.T) {
	l := plist.Empty[int]().Cons(3).Cons(2).Cons(1)
	var sum int
	l.ForEach(func(v int) { sum += v })
	if sum != 6 {
		t.Fatalf("sum = %d, want 6", sum)
	}
}

func TestFilter(t *testing.T) {
	l := plist.Empty[int]()
	for i := 10; i >= 1; i-- {
		l = l.Cons(i)
	}
	evens := l.Filter(func(v int) bool { return v%2 == 0 })
	if evens.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", evens.Len())
	}
	var got []int
	evens.ForEach(func(v int) { got = append(got, v) })
	want := []int{2, 4, 6, 8, 10}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestFilterNoneMatch(t *testing.T) {
	l := plist.Empty[int]().Cons(1).Cons(3).Cons(5)
	filtered := l.Filter(func(v int) bool { return v%2 == 0 })
	if !filtered.IsEmpty() {
		t.Fatal("Filter with no matches did not return an empty list")
	}
}
