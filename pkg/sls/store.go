// Package sls is the facade that wires region, allocator, transaction
// engine, snapshot engine, and checkpoint registry into a single
// persistent store, per spec.md §2's overview of the five components
// acting as one system. It owns the one piece of coupling the
// component packages deliberately avoid to stay free of import cycles:
// the transaction engine must notify the snapshot engine before a
// write lands (cow_page), and the snapshot engine must abort every
// active transaction before a restore. Both are wired here through
// plain function values rather than a direct package dependency
// between pkg/txn and pkg/snapshot.
package sls

import (
	"sync"

	"github.com/seraph-os/sls/internal/logging"
	"github.com/seraph-os/sls/internal/metrics"
	"github.com/seraph-os/sls/pkg/checkpoint"
	"github.com/seraph-os/sls/pkg/genalloc"
	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/snapshot"
	"github.com/seraph-os/sls/pkg/txn"
)

// Store is an open persistent region with every SLS component wired
// together.
type Store struct {
	Region    *region.Region
	Alloc     *genalloc.Allocator
	Txns      *txn.Engine
	Snapshots *snapshot.Engine
	Types     *checkpoint.Registry
	Metrics   *metrics.Metrics

	log       *logging.Logger
	liveClock snapshot.Clock
}

// processMetrics is the one Metrics instance shared by every Store
// opened in this process; metrics.New registers its collectors with the
// default Prometheus registry, which accepts each name only once.
var (
	processMetricsOnce sync.Once
	processMetrics     *metrics.Metrics
)

// Open opens or creates the backing file at path with the given size
// (region.DefaultSize if zero) and constructs every component over it.
func Open(path string, size int) (*Store, error) {
	r, err := region.Open(path, size)
	if err != nil {
		return nil, err
	}

	processMetricsOnce.Do(func() { processMetrics = metrics.New() })
	met := processMetrics
	alloc, err := genalloc.New(r, met)
	if err != nil {
		r.Close()
		return nil, err
	}

	st := &Store{
		Region:    r,
		Alloc:     alloc,
		Txns:      txn.New(r, met),
		Snapshots: snapshot.New(r, alloc, met),
		Types:     checkpoint.NewRegistry(),
		Metrics:   met,
		log:       logging.Get().Component("sls"),
		liveClock: snapshot.NewClock(1, 0),
	}
	met.RegionSizeBytes.Set(float64(r.Size()))
	return st, nil
}

// Close flushes and unmaps the region.
func (s *Store) Close() error { return s.Region.Close() }

// Txn is a transaction handle that routes mark_dirty through the
// snapshot engine's copy-on-write hook before staging the
// copy-before-write original, so an Active snapshot covering the
// written page always sees its pre-write bytes.
type Txn struct {
	inner *txn.Txn
	store *Store
}

// Begin starts a new transaction.
func (s *Store) Begin() (*Txn, error) {
	t, err := s.Txns.Begin()
	if err != nil {
		return nil, err
	}
	return &Txn{inner: t, store: s}, nil
}

// ID returns the transaction's unique id.
func (t *Txn) ID() uint64 { return t.inner.ID() }

// State returns the transaction's current lifecycle state.
func (t *Txn) State() txn.State { return t.inner.State() }

// MarkDirty preserves ptr's pre-write bytes for both the transaction's
// own abort path and any Active snapshot covering the page, then
// records the transaction's copy-before-write original.
func (t *Txn) MarkDirty(ptr uint64, size int) error {
	t.store.Snapshots.BeforeWrite(ptr, size)
	return t.inner.MarkDirty(ptr, size)
}

// Commit commits t.
func (s *Store) Commit(t *Txn) error { return s.Txns.Commit(t.inner) }

// Abort aborts t.
func (s *Store) Abort(t *Txn) { s.Txns.Abort(t.inner) }

// BeginSnapshot starts a causal snapshot bound to the store's live
// vector clock.
func (s *Store) BeginSnapshot() (*snapshot.Snapshot, error) {
	return s.Snapshots.Begin(&s.liveClock)
}

// RestoreSnapshot aborts every active transaction and rewrites the
// region back to snap's captured state.
func (s *Store) RestoreSnapshot(snap *snapshot.Snapshot) error {
	return s.Snapshots.Restore(snap, s.Txns.AbortAll, &s.liveClock)
}

// LiveClock returns a copy of the store's current vector clock.
func (s *Store) LiveClock() snapshot.Clock { return s.liveClock.Clone() }

// NewCheckpoint creates a checkpoint bound to the store's type
// registry and region.
func (s *Store) NewCheckpoint(name string, maxEntries int, flags uint32) (*checkpoint.Checkpoint, error) {
	return checkpoint.Create(name, maxEntries, flags, s.Types, s.Region, s.Metrics)
}
