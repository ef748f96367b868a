// Package genalloc implements Component B of the SLS core: bump and
// free-list allocation inside a region, allocation-id/generation
// tracking for capability revocation, and the application root
// pointer. Grounded on the teacher's pkg/storage/kv.go pageAlloc/
// pageAppend/pageFree and pkg/storage/freelist.go, generalized from
// fixed-size B+Tree pages to arbitrary-size allocations.
package genalloc

import (
	"time"

	"github.com/seraph-os/sls/internal/logging"
	"github.com/seraph-os/sls/internal/metrics"
	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/slserr"
	"github.com/seraph-os/sls/pkg/threeval"
)

const (
	// Align8 is the bump-allocator alignment for ordinary allocations.
	Align8 = 8
)

// notAllocated is returned by Alloc/Calloc/AllocPages when the request
// cannot be satisfied; callers detect absence by comparing against it.
const notAllocated = region.VoidOffset

// Allocator manages bump and free-list allocation inside a region. It
// holds no memory of its own — its state is entirely the free-list
// chain and Genesis fields, per spec.md §3 "Ownership summary".
type Allocator struct {
	region *region.Region
	log    *logging.Logger
	met    *metrics.Metrics
}

// New wraps r with allocator operations. If r was just created, the
// generation table is laid out at GenTableOffset and NextAllocOffset is
// advanced past it.
func New(r *region.Region, met *metrics.Metrics) (*Allocator, error) {
	a := &Allocator{region: r, log: logging.Get().Component("genalloc"), met: met}

	g := r.Genesis()
	if g.NextAllocOffset == g.GenTableOffset {
		// Freshly created region: lay out the generation table now.
		buf, err := r.OffsetToPtr(g.GenTableOffset, GenTableSize)
		if err != nil {
			return nil, slserr.Wrap(slserr.Invalid, "genalloc.New", "gen table out of range", err)
		}
		initGenTable(genTable(buf))
		g.NextAllocOffset = g.GenTableOffset + GenTableSize
		r.PutGenesis(g)
	}
	return a, nil
}

func align(n, to uint64) uint64 { return (n + to - 1) / to * to }

// Alloc advances next_alloc_offset by n (8-byte aligned), falling back
// to the free list if the bump path would exceed the region. n==0
// returns a well-defined empty allocation at the current bump offset
// without consuming any space.
func (a *Allocator) Alloc(n int) uint64 {
	if n == 0 {
		return a.region.Genesis().NextAllocOffset
	}
	size := align(uint64(n), Align8)
	return a.alloc(size)
}

// AllocPages rounds both the starting offset and the size up to
// region.PageSize.
func (a *Allocator) AllocPages(n int) uint64 {
	if n == 0 {
		return notAllocated
	}
	size := align(uint64(n), region.PageSize)
	g := a.region.Genesis()
	aligned := align(g.NextAllocOffset, region.PageSize)
	if aligned != g.NextAllocOffset {
		g.NextAllocOffset = aligned
		a.region.PutGenesis(g)
	}
	return a.alloc(size)
}

// Calloc allocates n bytes and zero-fills them.
func (a *Allocator) Calloc(n int) uint64 {
	ptr := a.Alloc(n)
	if ptr == notAllocated {
		return notAllocated
	}
	buf, err := a.region.OffsetToPtr(ptr, n)
	if err != nil {
		return notAllocated
	}
	for i := range buf {
		buf[i] = 0
	}
	return ptr
}

func (a *Allocator) alloc(size uint64) uint64 {
	g := a.region.Genesis()

	if g.NextAllocOffset+size <= uint64(a.region.Size()) {
		ptr := g.NextAllocOffset
		g.NextAllocOffset += size
		g.TotalAllocated += size
		g.ModifiedAt = time.Now().UnixNano()
		a.region.PutGenesis(g)
		if a.met != nil {
			a.met.BytesAllocatedTotal.Add(float64(size))
		}
		return ptr
	}

	// Bump path exhausted: try the free list, first-fit.
	if size < freeNodeHeaderSize {
		size = freeNodeHeaderSize
	}
	if ptr, _, ok := a.freeListPopFirstFit(size); ok {
		g = a.region.Genesis()
		g.TotalAllocated += size
		g.ModifiedAt = time.Now().UnixNano()
		a.region.PutGenesis(g)
		if a.met != nil {
			a.met.BytesAllocatedTotal.Add(float64(size))
		}
		return ptr
	}

	return notAllocated
}

// Free appends a node at the freed block, linking it onto the free
// list and stamping it with the current root generation. An invalid
// pointer is recorded (logged) but never corrupts the chain: the
// function simply returns without touching anything.
func (a *Allocator) Free(ptr uint64, size int) {
	n := uint64(size)
	if n < freeNodeHeaderSize {
		n = freeNodeHeaderSize
	}
	if !a.region.Contains(ptr, int(n)) {
		a.log.Warn().Uint64("ptr", ptr).Int("size", size).Msg("free: invalid pointer ignored")
		return
	}

	g := a.region.Genesis()
	a.freeListPush(ptr, n, uint64(g.RootGeneration))

	g = a.region.Genesis()
	g.TotalFreed += n
	g.ModifiedAt = time.Now().UnixNano()
	a.region.PutGenesis(g)
	if a.met != nil {
		a.met.BytesFreedTotal.Add(float64(n))
	}
}

func (a *Allocator) headOffset() uint64 { return a.region.Genesis().FreeListOffset }

func (a *Allocator) setHeadOffset(v uint64) {
	g := a.region.Genesis()
	g.FreeListOffset = v
	a.region.PutGenesis(g)
}

// SetRoot writes ptr into Genesis as the application root. It refuses
// pointers outside the region.
func (a *Allocator) SetRoot(ptr uint64, size int) error {
	if !a.region.Contains(ptr, size) {
		return slserr.New(slserr.Invalid, "genalloc.SetRoot", "pointer outside region")
	}
	g := a.region.Genesis()
	g.AppRootOffset = ptr
	g.ModifiedAt = time.Now().UnixNano()
	a.region.PutGenesis(g)
	return nil
}

// Root returns the current application root offset, or
// region.VoidOffset if none has been set.
func (a *Allocator) Root() uint64 { return a.region.Genesis().AppRootOffset }

// AllocGeneration issues a new allocation identity, returning
// region.VoidOffset-free-form id (a uint32 slot index) with its
// generation counter initialized to 0.
func (a *Allocator) AllocGeneration() (id uint32, err error) {
	g := a.region.Genesis()
	buf, err := a.region.OffsetToPtr(g.GenTableOffset, GenTableSize)
	if err != nil {
		return 0, slserr.Wrap(slserr.Invalid, "genalloc.AllocGeneration", "gen table out of range", err)
	}
	table := genTable(buf)

	next := table.nextGeneration()
	if next >= GenMax {
		return 0, slserr.New(slserr.Exhausted, "genalloc.AllocGeneration", "generation table full")
	}

	table.setCounter(next, 0)
	table.setNextGeneration(next + 1)
	if next+1 > table.entryCount() {
		table.setEntryCount(next + 1)
	}
	return next, nil
}

// Revoke increments the stored counter for id and returns the new
// generation.
func (a *Allocator) Revoke(id uint32) (uint64, error) {
	g := a.region.Genesis()
	buf, err := a.region.OffsetToPtr(g.GenTableOffset, GenTableSize)
	if err != nil {
		return 0, slserr.Wrap(slserr.Invalid, "genalloc.Revoke", "gen table out of range", err)
	}
	table := genTable(buf)
	if id >= table.entryCount() {
		return 0, slserr.New(slserr.Invalid, "genalloc.Revoke", "id out of range")
	}
	next := table.counter(id) + 1
	table.setCounter(id, next)
	return next, nil
}

// CheckGeneration returns threeval.True iff table[id] == generation,
// threeval.False if it differs, and threeval.Void if id is out of
// range or unissued — per spec.md §4.B.
func (a *Allocator) CheckGeneration(id uint32, generation uint64) threeval.Bool {
	g := a.region.Genesis()
	buf, err := a.region.OffsetToPtr(g.GenTableOffset, GenTableSize)
	if err != nil {
		return threeval.Void
	}
	table := genTable(buf)
	if id >= table.entryCount() {
		return threeval.Void
	}
	return threeval.FromBool(table.counter(id) == generation)
}
