package genalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seraph-os/sls/pkg/region"
)

func TestFreeListFirstFitTakesHeadOverExactMatch(t *testing.T) {
	a, r := newTestAllocator(t)

	small := a.Alloc(32)
	big := a.Alloc(128)
	// Exhaust the bump path so the next Alloc is served from the free list.
	rest := r.Size() - int(r.Genesis().NextAllocOffset)
	require.NotEqual(t, region.VoidOffset, a.Alloc(rest))
	a.Free(small, 32)
	a.Free(big, 128)

	// head is `big` (freed last), then `small`; first-fit takes `big` for
	// a 32-byte request even though `small` would be an exact match.
	got := a.Alloc(32)
	require.Equal(t, big, got)
}

func TestFreeListAcyclicAfterManyFreesAndAllocs(t *testing.T) {
	a, _ := newTestAllocator(t)

	var ptrs []uint64
	for i := 0; i < 50; i++ {
		ptrs = append(ptrs, a.Alloc(64))
	}
	for _, p := range ptrs {
		a.Free(p, 64)
	}

	// Popping 50 times must terminate (P2) and return distinct offsets.
	seen := map[uint64]bool{}
	for i := 0; i < 50; i++ {
		p, _, ok := a.freeListPopFirstFit(64)
		require.True(t, ok, "pop %d should find a block", i)
		require.False(t, seen[p], "offset reused before being re-freed")
		seen[p] = true
	}
	_, _, ok := a.freeListPopFirstFit(64)
	require.False(t, ok, "list should be empty now")
}
