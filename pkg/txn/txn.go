// Package txn implements Component C of the SLS core: copy-before-write
// staging, commit-as-pointer-swap, abort-as-discard. Grounded on the
// teacher's pkg/storage/transaction.go (Begin/Commit/Abort wrapping a
// saved meta page) generalized from "save/restore the whole meta page"
// to per-page dirty tracking with bounded originals, per spec.md §4.C.
package txn

import (
	"time"

	"github.com/seraph-os/sls/internal/logging"
	"github.com/seraph-os/sls/internal/metrics"
	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/slserr"
)

const (
	// MaxConcurrent is the transaction pool size, per spec.md §4.C
	// "The pool holds at most 16 concurrent transactions".
	MaxConcurrent = 16

	// MaxDirtyEntries is the bound on a single transaction's dirty-page
	// list, per spec.md §3 "max 256 entries".
	MaxDirtyEntries = 256

	// MaxDirtyPages bounds a single mark_dirty call's size, per
	// spec.md §4.C "size <= PAGE * DIRTY_MAX_PAGES".
	MaxDirtyPages = 64
)

// State is a transaction's lifecycle state.
type State int

const (
	Void State = iota
	Active
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "void"
	}
}

// dirtyEntry records the pre-image of a byte range before its first
// in-transaction write. journalSlot is the index into the recovery
// journal holding a durable copy of original, or -1 if the range
// exceeded journalInlineSize and so is only abort-safe, not
// crash-safe (see journal.go).
type dirtyEntry struct {
	offset      uint64
	original    []byte
	journalSlot int
}

// Txn is an in-memory record of one transaction: a unique id, the
// epoch/root-generation it began from, and its bounded dirty-page list.
// It owns its dirty-page originals exclusively for its lifetime.
type Txn struct {
	id            uint64
	region        *region.Region
	engine        *Engine
	startEpoch    uint64
	startGen      uint32
	startedAt     time.Time
	state         State
	dirty         []dirtyEntry
	dirtyByOffset map[uint64]int // offset -> index into dirty, for mark_dirty idempotence
}

// ID returns the transaction's unique id.
func (t *Txn) ID() uint64 { return t.id }

// State returns the transaction's current state.
func (t *Txn) State() State { return t.state }

// Engine manages the bounded pool of concurrent transactions for one
// region.
type Engine struct {
	region *region.Region
	log    *logging.Logger
	met    *metrics.Metrics

	nextID uint64
	active map[uint64]*Txn
}

// New creates a transaction engine over r, bootstrapping the recovery
// journal on a freshly created region and replaying it on an existing
// one: any dirty-page original still present belongs to a transaction
// that began but never reached commit or abort before the process
// ended, so its pre-image is restored before this engine is handed
// back to the caller.
func New(r *region.Region, met *metrics.Metrics) *Engine {
	e := &Engine{
		region: r,
		log:    logging.Get().Component("txn"),
		met:    met,
		active: make(map[uint64]*Txn),
	}

	g := r.Genesis()
	if g.JournalOffset == region.VoidOffset {
		buf, err := r.OffsetToPtr(g.NextAllocOffset, JournalTableSize)
		if err == nil {
			initJournalTable(journalTable(buf))
			g.JournalOffset = g.NextAllocOffset
			g.NextAllocOffset += JournalTableSize
			r.PutGenesis(g)
			r.Sync()
		}
	} else {
		e.recoverJournal()
	}
	return e
}

// recoverJournal rolls back every pending journal entry still present
// from a prior process's unfinished transaction.
func (e *Engine) recoverJournal() {
	g := e.region.Genesis()
	buf, err := e.region.OffsetToPtr(g.JournalOffset, JournalTableSize)
	if err != nil {
		return
	}
	table := journalTable(buf)
	recovered := 0
	for i := 0; i < JournalCapacity; i++ {
		if table.txnID(i) == 0 {
			continue
		}
		offset := table.offset(i)
		size := int(table.size(i))
		live, err := e.region.OffsetToPtr(offset, size)
		if err == nil {
			copy(live, table.original(i)[:size])
			recovered++
		}
		table.clear(i)
	}
	if recovered > 0 {
		e.region.SyncRange(g.JournalOffset, JournalTableSize)
		e.log.Warn().Int("entries", recovered).Msg("recovered uncommitted transaction writes from journal")
	}
}

// journalWrite durably stages original into a free journal slot for
// txnID, returning the slot index, or -1 if original is too large to
// journal or no slot is free (the write remains abort-safe via the
// in-memory dirty list regardless).
func (e *Engine) journalWrite(txnID uint64, offset uint64, original []byte) int {
	if len(original) > journalInlineSize {
		return -1
	}
	g := e.region.Genesis()
	buf, err := e.region.OffsetToPtr(g.JournalOffset, JournalTableSize)
	if err != nil {
		return -1
	}
	table := journalTable(buf)
	for i := 0; i < JournalCapacity; i++ {
		if table.txnID(i) != 0 {
			continue
		}
		table.setTxnID(i, txnID)
		table.setOffset(i, offset)
		table.setSize(i, uint32(len(original)))
		copy(table.original(i), original)
		e.region.SyncRange(g.JournalOffset+uint64(slotOffset(i)), journalEntrySize)
		return i
	}
	return -1
}

// journalClear frees slot i, if any, and flushes the clear.
func (e *Engine) journalClear(slot int) {
	if slot < 0 {
		return
	}
	g := e.region.Genesis()
	buf, err := e.region.OffsetToPtr(g.JournalOffset, JournalTableSize)
	if err != nil {
		return
	}
	table := journalTable(buf)
	table.clear(slot)
	e.region.SyncRange(g.JournalOffset+uint64(slotOffset(slot)), journalEntrySize)
}

// Begin allocates a transaction id, records the current epoch and root
// generation, and returns an Active handle. Fails with Exhausted if 16
// transactions are already active.
func (e *Engine) Begin() (*Txn, error) {
	if len(e.active) >= MaxConcurrent {
		return nil, slserr.New(slserr.Exhausted, "txn.Begin", "transaction pool full")
	}

	g := e.region.Genesis()
	e.nextID++
	t := &Txn{
		id:            e.nextID,
		region:        e.region,
		engine:        e,
		startEpoch:    g.CurrentEpoch,
		startGen:      g.RootGeneration,
		startedAt:     time.Now(),
		state:         Active,
		dirtyByOffset: make(map[uint64]int),
	}
	e.active[t.id] = t
	if e.met != nil {
		e.met.TxnActive.Set(float64(len(e.active)))
	}
	return t, nil
}

// MarkDirty records the pre-image of [ptr, ptr+size) before the caller
// writes into it. If the same offset is marked twice, the first
// snapshot is authoritative and later calls are no-ops (idempotence
// law I2).
func (t *Txn) MarkDirty(ptr uint64, size int) error {
	if t.state != Active {
		return slserr.New(slserr.Invalid, "txn.MarkDirty", "transaction not active")
	}
	if size > region.PageSize*MaxDirtyPages {
		return slserr.New(slserr.Invalid, "txn.MarkDirty", "range exceeds DIRTY_MAX_PAGES")
	}
	if !t.region.Contains(ptr, size) {
		return slserr.New(slserr.Invalid, "txn.MarkDirty", "pointer outside region")
	}
	if _, exists := t.dirtyByOffset[ptr]; exists {
		return nil
	}
	if len(t.dirty) >= MaxDirtyEntries {
		return slserr.New(slserr.Exhausted, "txn.MarkDirty", "dirty-page list full")
	}

	live, err := t.region.OffsetToPtr(ptr, size)
	if err != nil {
		return err
	}
	original := make([]byte, size)
	copy(original, live)

	slot := t.engine.journalWrite(t.id, ptr, original)

	t.dirtyByOffset[ptr] = len(t.dirty)
	t.dirty = append(t.dirty, dirtyEntry{offset: ptr, original: original, journalSlot: slot})
	return nil
}

// Commit flushes all dirty regions, advances Genesis (commit_count,
// last_commit_at, current_epoch, and bumps root_generation to
// invalidate stale capabilities), flushes Genesis, and frees the
// dirty-page originals. If the transaction started from a root
// generation older than the current one, it reports Conflict instead
// (spec.md §4.C "Concurrency").
func (e *Engine) Commit(t *Txn) error {
	if t.state != Active {
		return slserr.New(slserr.Invalid, "txn.Commit", "transaction not active")
	}

	g := e.region.Genesis()
	if g.RootGeneration != t.startGen {
		e.abortLocked(t)
		if e.met != nil {
			e.met.TxnConflictsTotal.Inc()
		}
		return slserr.New(slserr.Conflict, "txn.Commit", "root generation advanced since begin")
	}

	start := time.Now()

	// Phase 1: flush all dirty regions to backing store.
	for _, d := range t.dirty {
		if err := e.region.SyncRange(d.offset, len(d.original)); err != nil {
			t.state = Aborted
			delete(e.active, t.id)
			return err
		}
	}

	// Phase 2: advance Genesis.
	g = e.region.Genesis()
	now := time.Now().UnixNano()
	g.LastCommitAt = now
	g.ModifiedAt = now
	g.CommitCount++
	g.CurrentEpoch++
	g.RootGeneration++
	e.region.PutGenesis(g)

	// Phase 3: flush Genesis.
	if err := e.region.SyncRange(0, region.PageSize); err != nil {
		t.state = Aborted
		delete(e.active, t.id)
		return err
	}

	// Phase 4: clear this transaction's journal entries (it is now
	// durably committed and will never need crash rollback), free the
	// in-memory dirty-page originals, and mark Committed.
	dirtyCount := len(t.dirty)
	for _, d := range t.dirty {
		e.journalClear(d.journalSlot)
	}
	t.dirty = nil
	t.dirtyByOffset = nil
	t.state = Committed
	delete(e.active, t.id)

	if e.met != nil {
		e.met.TxnActive.Set(float64(len(e.active)))
		e.met.TxnCommitsTotal.Inc()
		e.met.TxnCommitDuration.Observe(time.Since(start).Seconds())
		e.met.TxnDirtyPagesPerTxn.Observe(float64(dirtyCount))
	}
	e.log.Debug().Uint64("txn_id", t.id).Msg("committed")
	return nil
}

// Abort restores each dirty entry's preserved original to the live
// region, newest-first so repeated overlapping marks compose correctly,
// and sets state to Aborted. Abort is infallible: it only restores
// bytes already held in memory.
func (e *Engine) Abort(t *Txn) {
	if t.state != Active {
		return
	}
	e.abortLocked(t)
}

func (e *Engine) abortLocked(t *Txn) {
	for i := len(t.dirty) - 1; i >= 0; i-- {
		d := t.dirty[i]
		live, err := e.region.OffsetToPtr(d.offset, len(d.original))
		if err == nil {
			copy(live, d.original)
		}
		e.journalClear(d.journalSlot)
	}
	t.dirty = nil
	t.dirtyByOffset = nil
	t.state = Aborted
	delete(e.active, t.id)

	g := e.region.Genesis()
	g.AbortCount++
	g.ModifiedAt = time.Now().UnixNano()
	e.region.PutGenesis(g)

	if e.met != nil {
		e.met.TxnActive.Set(float64(len(e.active)))
		e.met.TxnAbortsTotal.Inc()
	}
}

// ActiveCount returns the number of currently Active transactions.
func (e *Engine) ActiveCount() int { return len(e.active) }

// AbortAll aborts every currently Active transaction. Used by the
// snapshot engine's Restore to guarantee no transaction observes a
// region that is being rewritten underneath it.
func (e *Engine) AbortAll() {
	for _, t := range e.active {
		e.abortLocked(t)
	}
}
