package snapshot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestCompareCausalOrder covers property P7 (reflexive, antisymmetric,
// consistent with causality) and the worked example of scenario 4 in
// spec.md §8.
func TestCompareCausalOrder(t *testing.T) {
	a := Clock{Counters: []uint64{3, 0, 0}, Self: 0}
	b := Clock{Counters: []uint64{3, 1, 0}, Self: 1}
	if Compare(a, a) != Equal {
		t.Fatalf("reflexive: Compare(a,a) = %v, want Equal", Compare(a, a))
	}
	if got := Compare(a, b); got != Before {
		t.Fatalf("Compare(a,b) = %v, want Before", got)
	}
	if got := Compare(b, a); got != After {
		t.Fatalf("antisymmetric: Compare(b,a) = %v, want After", got)
	}
}

func TestCompareConcurrent(t *testing.T) {
	a := Clock{Counters: []uint64{3, 0, 0}, Self: 0}
	b := Clock{Counters: []uint64{2, 1, 0}, Self: 1}
	if got := Compare(a, b); got != Concurrent {
		t.Fatalf("Compare(a,b) = %v, want Concurrent", got)
	}
	if got := Compare(b, a); got != Concurrent {
		t.Fatalf("Compare(b,a) = %v, want Concurrent (symmetric)", got)
	}
}

func TestCompareVoidOnNilCounters(t *testing.T) {
	var a Clock
	b := NewClock(3, 0)
	if got := Compare(a, b); got != OrderVoid {
		t.Fatalf("Compare(nil,b) = %v, want OrderVoid", got)
	}
}

func TestMaxComponentwise(t *testing.T) {
	a := Clock{Counters: []uint64{1, 5, 0}, Self: 0}
	b := Clock{Counters: []uint64{3, 2}, Self: 1}
	m := Max(a, b)
	want := []uint64{3, 5, 0}
	if diff := cmp.Diff(want, m.Counters); diff != "" {
		t.Fatalf("Max counters mismatch (-want +got):\n%s", diff)
	}
}

func TestTickIncrementsSelfOnly(t *testing.T) {
	c := NewClock(3, 1)
	c.Tick()
	if c.Counters[0] != 0 || c.Counters[1] != 1 || c.Counters[2] != 0 {
		t.Fatalf("Tick affected wrong component: %v", c.Counters)
	}
}

func TestNewClockCapsAtMaxNodes(t *testing.T) {
	c := NewClock(MaxClockNodes+10, 0)
	if len(c.Counters) != MaxClockNodes {
		t.Fatalf("len = %d, want %d", len(c.Counters), MaxClockNodes)
	}
}
