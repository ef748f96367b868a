// Package snapshot implements Component D of the SLS core: causal,
// vector-clock-timestamped views of a region whose included pages are
// preserved via copy-on-write as the live region continues to mutate.
// This component has no direct analogue in the teacher repo (TreeStore
// has no causal-snapshot facility); it is built in the teacher's idiom
// — a bounded, region-local engine with a state machine modeled on
// pkg/wal.Checkpointer's lifecycle shape, and COW pages allocated from
// the same allocator the rest of the core uses, per spec.md §4.D.
package snapshot

import (
	"sort"
	"time"

	"github.com/seraph-os/sls/internal/logging"
	"github.com/seraph-os/sls/internal/metrics"
	"github.com/seraph-os/sls/pkg/genalloc"
	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/slserr"
)

const (
	// MaxSnapshots is the number of snapshots that may be live per
	// region at once, per spec.md §4.D "Up to 8 snapshots live per
	// region".
	MaxSnapshots = 8

	// MaxCowPages bounds the COW array of a single snapshot, per
	// spec.md §4.D "each tracks up to 1024 COW pages".
	MaxCowPages = 1024
)

// State is a snapshot's lifecycle state.
type State int

const (
	Void State = iota
	Preparing
	Active
	Committed
	Restoring
	Failed
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Restoring:
		return "restoring"
	case Failed:
		return "failed"
	default:
		return "void"
	}
}

// cowEntry is one page preserved for a snapshot: the original 4 KiB
// content, copied into allocator-owned storage before the live region
// was overwritten.
type cowEntry struct {
	pageOffset uint64
	copyOffset uint64
	modTime    int64
	valid      bool
}

// Snapshot is a causally-timestamped, internally consistent view of a
// region. Per spec.md §3, it owns its COW copies for its lifetime (or
// until deletion, if committed).
type Snapshot struct {
	ID        uint64
	state     State
	clock     Clock
	wallClock time.Time
	epoch     uint64
	rootGen   uint32
	genesis   *region.Genesis // frozen copy captured at Begin
	desc      string

	included       map[uint64]bool // page offset -> included
	includedCount  int
	cow            []cowEntry
	cowByPage      map[uint64]int // page offset -> index into cow, for idempotence (I3)
}

// State returns the snapshot's current lifecycle state.
func (s *Snapshot) State() State { return s.state }

// Clock returns a copy of the snapshot's bound vector clock.
func (s *Snapshot) Clock() Clock { return s.clock.Clone() }

// Engine manages the bounded set of live snapshots for one region.
type Engine struct {
	region *region.Region
	alloc  *genalloc.Allocator
	log    *logging.Logger
	met    *metrics.Metrics

	nextID    uint64
	snapshots map[uint64]*Snapshot
	committed []uint64 // ids, oldest first, for List()
}

// New creates a snapshot engine over r/a.
func New(r *region.Region, a *genalloc.Allocator, met *metrics.Metrics) *Engine {
	return &Engine{
		region:    r,
		alloc:     a,
		log:       logging.Get().Component("snapshot"),
		met:       met,
		snapshots: make(map[uint64]*Snapshot),
	}
}

// Begin allocates a new snapshot record in Preparing state, capturing
// Genesis and a copy of the supplied vector clock. The engine keeps no
// clock of its own: with a nil clock the snapshot gets a fresh
// single-node zero clock.
func (e *Engine) Begin(clock *Clock) (*Snapshot, error) {
	if len(e.snapshots) >= MaxSnapshots {
		return nil, slserr.New(slserr.Exhausted, "snapshot.Begin", "snapshot table full")
	}

	g := e.region.Genesis()
	var c Clock
	if clock != nil {
		c = clock.Clone()
	} else {
		c = NewClock(1, 0)
	}

	e.nextID++
	s := &Snapshot{
		ID:        e.nextID,
		state:     Preparing,
		clock:     c,
		wallClock: time.Now(),
		epoch:     g.CurrentEpoch,
		rootGen:   g.RootGeneration,
		genesis:   g.Clone(),
		included:  make(map[uint64]bool),
		cowByPage: make(map[uint64]int),
	}
	e.snapshots[s.ID] = s
	if e.met != nil {
		e.met.SnapshotActive.Set(float64(e.activeCount()))
	}
	return s, nil
}

// Include expands [ptr, ptr+size) to page boundaries and unions them
// into the inclusion set. Only valid while Preparing.
func (e *Engine) Include(s *Snapshot, ptr uint64, size int) error {
	if s.state != Preparing {
		return slserr.New(slserr.Invalid, "snapshot.Include", "snapshot not Preparing")
	}
	if !e.region.Contains(ptr, size) {
		return slserr.New(slserr.Invalid, "snapshot.Include", "range outside region")
	}
	start := (ptr / region.PageSize) * region.PageSize
	end := ptr + uint64(size)
	for p := start; p < end; p += region.PageSize {
		if !s.included[p] {
			s.included[p] = true
			s.includedCount++
		}
	}
	return nil
}

// IncludeAll includes every page of the region.
func (e *Engine) IncludeAll(s *Snapshot) error {
	if s.state != Preparing {
		return slserr.New(slserr.Invalid, "snapshot.IncludeAll", "snapshot not Preparing")
	}
	for p := uint64(0); p < uint64(e.region.Size()); p += region.PageSize {
		if !s.included[p] {
			s.included[p] = true
			s.includedCount++
		}
	}
	return nil
}

// Activate transitions Preparing -> Active. After activation no more
// pages may be included.
//
// Open Question (a) is resolved here: Preparing does not install COW
// interception, so writes made between Begin and Activate are NOT
// preserved — they are visible through the snapshot once activated,
// matching the source's implication that only Active triggers CowPage.
func (e *Engine) Activate(s *Snapshot) error {
	if s.state != Preparing {
		return slserr.New(slserr.Invalid, "snapshot.Activate", "snapshot not Preparing")
	}
	s.state = Active
	return nil
}

// CowPage is the internal hook the transaction engine calls before
// every write to a page while any snapshot covering it is Active. It
// is idempotent per (snapshot, page): the first call copies the
// original 4 KiB into COW storage; later calls for the same page are
// no-ops (idempotence law I3).
func (e *Engine) CowPage(s *Snapshot, pageOffset uint64) error {
	if s.state != Active {
		return nil
	}
	if !s.included[pageOffset] {
		return nil
	}
	if _, done := s.cowByPage[pageOffset]; done {
		return nil
	}
	if len(s.cow) >= MaxCowPages {
		return slserr.New(slserr.Exhausted, "snapshot.CowPage", "COW page table full")
	}

	live, err := e.region.OffsetToPtr(pageOffset, region.PageSize)
	if err != nil {
		return err
	}
	copyOffset := e.alloc.AllocPages(region.PageSize)
	if copyOffset == region.VoidOffset {
		return slserr.New(slserr.OutOfSpace, "snapshot.CowPage", "no space for COW copy")
	}
	dst, err := e.region.OffsetToPtr(copyOffset, region.PageSize)
	if err != nil {
		return err
	}
	copy(dst, live)

	s.cowByPage[pageOffset] = len(s.cow)
	s.cow = append(s.cow, cowEntry{
		pageOffset: pageOffset,
		copyOffset: copyOffset,
		modTime:    time.Now().UnixNano(),
		valid:      true,
	})
	if e.met != nil {
		e.met.SnapshotCowPagesTotal.Inc()
	}
	return nil
}

// BeforeWrite notifies every Active snapshot covering pageOffset to
// preserve it before the caller's write lands. Wired as the
// transaction engine's dirty hook by the facade package, so it runs on
// every mark_dirty call; repeated calls for a page already preserved
// are no-ops because CowPage is idempotent.
func (e *Engine) BeforeWrite(pageOffset uint64, size int) {
	start := (pageOffset / region.PageSize) * region.PageSize
	end := pageOffset + uint64(size)
	for p := start; p < end; p += region.PageSize {
		for _, s := range e.snapshots {
			if s.state == Active {
				_ = e.CowPage(s, p)
			}
		}
	}
}

// Commit flushes COW storage, binds the snapshot's vector clock with a
// local tick (establishing happens-after with transactions that follow),
// and transitions Preparing/Active -> Committed.
func (e *Engine) Commit(s *Snapshot) error {
	if s.state != Active && s.state != Preparing {
		return slserr.New(slserr.Invalid, "snapshot.Commit", "snapshot not Preparing/Active")
	}
	for _, c := range s.cow {
		if err := e.region.SyncRange(c.copyOffset, region.PageSize); err != nil {
			s.state = Failed
			return err
		}
	}
	s.clock.Tick()
	s.state = Committed
	e.committed = append(e.committed, s.ID)
	if e.met != nil {
		e.met.SnapshotCommitsTotal.Inc()
		e.met.SnapshotActive.Set(float64(e.activeCount()))
	}
	e.log.Info().Uint64("snapshot_id", s.ID).Int("cow_pages", len(s.cow)).Msg("snapshot committed")
	return nil
}

// Abort is reachable from Preparing or Active; it frees COW copies and
// marks the snapshot disposable.
func (e *Engine) Abort(s *Snapshot) {
	if s.state != Preparing && s.state != Active {
		return
	}
	for _, c := range s.cow {
		e.alloc.Free(c.copyOffset, region.PageSize)
	}
	delete(e.snapshots, s.ID)
	s.state = Void
	if e.met != nil {
		e.met.SnapshotActive.Set(float64(e.activeCount()))
	}
}

// ReadPage returns the bytes the snapshot sees for the page containing
// ptr: the COW-preserved original if one was captured, otherwise the
// live region's current content (consistent with spec.md §8 invariant
// P5 since a page is only ever COW-copied the moment it is first
// overwritten after activation).
func (e *Engine) ReadPage(s *Snapshot, ptr uint64) ([]byte, error) {
	page := (ptr / region.PageSize) * region.PageSize
	if idx, ok := s.cowByPage[page]; ok {
		buf, err := e.region.OffsetToPtr(s.cow[idx].copyOffset, region.PageSize)
		if err != nil {
			return nil, err
		}
		out := make([]byte, region.PageSize)
		copy(out, buf)
		return out, nil
	}
	buf, err := e.region.OffsetToPtr(page, region.PageSize)
	if err != nil {
		return nil, err
	}
	out := make([]byte, region.PageSize)
	copy(out, buf)
	return out, nil
}

// Restore must be called on a Committed snapshot. It aborts all active
// transactions (via abortAllTxns, supplied by the facade to avoid a
// package-level dependency on pkg/txn), writes Genesis back from the
// frozen copy, writes each COW page's original bytes back to its live
// offset, bumps root generation to invalidate outstanding capabilities,
// and updates the live vector clock to max(live, snapshot) + self.
// Genesis is written last. A failure marks the snapshot Failed; nothing
// is rolled back, so pages already copied back (and, if the final sync
// fails, the rewritten Genesis) stay in the live region.
func (e *Engine) Restore(s *Snapshot, abortAllTxns func(), liveClock *Clock) error {
	if s.state != Committed {
		return slserr.New(slserr.Invalid, "snapshot.Restore", "snapshot not Committed")
	}
	s.state = Restoring
	if abortAllTxns != nil {
		abortAllTxns()
	}

	for _, c := range s.cow {
		src, err := e.region.OffsetToPtr(c.copyOffset, region.PageSize)
		if err != nil {
			s.state = Failed
			return err
		}
		dst, err := e.region.OffsetToPtr(c.pageOffset, region.PageSize)
		if err != nil {
			s.state = Failed
			return err
		}
		copy(dst, src)
	}

	g := s.genesis.Clone()
	g.RootGeneration = e.region.Genesis().RootGeneration + 1 // invalidate outstanding capabilities
	g.ModifiedAt = time.Now().UnixNano()
	e.region.PutGenesis(g)
	if err := e.region.Sync(); err != nil {
		s.state = Failed
		return err
	}

	if liveClock != nil {
		merged := Max(*liveClock, s.clock)
		merged.Tick()
		*liveClock = merged
	}

	s.state = Committed // restore leaves the snapshot itself intact, per spec "Committed" lifetime until deletion
	if e.met != nil {
		e.met.SnapshotRestoresTotal.Inc()
	}
	e.log.Info().Uint64("snapshot_id", s.ID).Msg("region restored from snapshot")
	return nil
}

// List returns committed snapshot ids ordered by capture time, oldest
// first.
func (e *Engine) List() []uint64 {
	out := make([]uint64, len(e.committed))
	copy(out, e.committed)
	// Ids are assigned in Begin order, so sorting by id orders by capture.
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns the snapshot record for id, or NotFound.
func (e *Engine) Get(id uint64) (*Snapshot, error) {
	s, ok := e.snapshots[id]
	if !ok {
		return nil, slserr.New(slserr.NotFound, "snapshot.Get", "no such snapshot")
	}
	return s, nil
}

// Delete is permitted only for Committed snapshots; it frees COW
// storage.
func (e *Engine) Delete(id uint64) error {
	s, ok := e.snapshots[id]
	if !ok {
		return slserr.New(slserr.NotFound, "snapshot.Delete", "no such snapshot")
	}
	if s.state != Committed {
		return slserr.New(slserr.Invalid, "snapshot.Delete", "snapshot not Committed")
	}
	for _, c := range s.cow {
		e.alloc.Free(c.copyOffset, region.PageSize)
	}
	delete(e.snapshots, id)
	for i, cid := range e.committed {
		if cid == id {
			e.committed = append(e.committed[:i], e.committed[i+1:]...)
			break
		}
	}
	return nil
}

func (e *Engine) activeCount() int {
	n := 0
	for _, s := range e.snapshots {
		if s.state == Active || s.state == Preparing {
			n++
		}
	}
	return n
}
