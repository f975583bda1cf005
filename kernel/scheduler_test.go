package kernel

import (
	"reflect"
	"testing"
)

func TestRoundRobinCycles(t *testing.T) {
	rr := NewRoundRobin()
	rr.Add(1)
	rr.Add(2)
	rr.Add(3)

	var got []ThreadID
	for i := 0; i < 4; i++ {
		tid, ok := rr.Next()
		if !ok {
			t.Fatalf("Next() ok = false at call %d", i)
		}
		got = append(got, tid)
	}
	if want := []ThreadID{1, 2, 3, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Next() sequence = %v, want %v", got, want)
	}
	if rr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rr.Len())
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	var rr RoundRobin
	if tid, ok := rr.Next(); ok {
		t.Fatalf("Next() = %d on empty queue, want none", tid)
	}
	// Zero value must accept adds.
	rr.Add(5)
	if tid, ok := rr.Next(); !ok || tid != 5 {
		t.Fatalf("Next() = (%d, %v), want (5, true)", tid, ok)
	}
}

func TestRoundRobinAddIsIdempotent(t *testing.T) {
	rr := NewRoundRobin()
	rr.Add(7)
	rr.Add(7)
	MarkReady(rr, 7)

	if got := rr.Ready(); !reflect.DeepEqual(got, []ThreadID{7}) {
		t.Fatalf("Ready() = %v, want [7]", got)
	}
}

func TestRoundRobinRemove(t *testing.T) {
	rr := NewRoundRobin()
	for _, tid := range []ThreadID{1, 2, 3} {
		rr.Add(tid)
	}

	rr.Remove(2)
	rr.Remove(2)
	MarkBlocked(rr, 99)

	if rr.Contains(2) {
		t.Fatal("Contains(2) = true after Remove")
	}
	var got []ThreadID
	for i := 0; i < 3; i++ {
		tid, _ := rr.Next()
		got = append(got, tid)
	}
	if want := []ThreadID{1, 3, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Next() sequence = %v, want %v", got, want)
	}
}

func TestRoundRobinReAddGoesToBack(t *testing.T) {
	rr := NewRoundRobin()
	rr.Add(1)
	rr.Add(2)
	rr.Remove(1)
	rr.Add(1)

	if got := rr.Ready(); !reflect.DeepEqual(got, []ThreadID{2, 1}) {
		t.Fatalf("Ready() = %v, want [2 1]", got)
	}
}
