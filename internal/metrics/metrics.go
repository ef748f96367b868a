// Package metrics provides Prometheus metrics for the SLS core, built
// with promauto the same way the teacher's internal/metrics package
// instruments TreeStore's gRPC/db layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the SLS components publish
// to. A single instance is constructed per process and threaded into
// the allocator/txn/snapshot/checkpoint constructors; the region gauge
// is set by pkg/sls when it opens a store.
type Metrics struct {
	// Region / allocator.
	BytesAllocatedTotal prometheus.Counter
	BytesFreedTotal     prometheus.Counter
	FreeListLength      prometheus.Gauge
	RegionSizeBytes     prometheus.Gauge

	// Transactions.
	TxnActive           prometheus.Gauge
	TxnCommitsTotal     prometheus.Counter
	TxnAbortsTotal      prometheus.Counter
	TxnConflictsTotal   prometheus.Counter
	TxnCommitDuration   prometheus.Histogram
	TxnDirtyPagesPerTxn prometheus.Histogram

	// Snapshots.
	SnapshotActive        prometheus.Gauge
	SnapshotCommitsTotal   prometheus.Counter
	SnapshotRestoresTotal  prometheus.Counter
	SnapshotCowPagesTotal  prometheus.Counter

	// Checkpoints.
	CheckpointValidationsTotal prometheus.Counter
	CheckpointRecoveriesTotal  prometheus.Counter
	CheckpointFailuresByKind   *prometheus.CounterVec
}

// New creates and registers every SLS metric against the default
// Prometheus registry.
func New() *Metrics {
	return &Metrics{
		BytesAllocatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_bytes_allocated_total",
			Help: "Cumulative bytes handed out by the allocator.",
		}),
		BytesFreedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_bytes_freed_total",
			Help: "Cumulative bytes returned to the free list.",
		}),
		FreeListLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sls_free_list_length",
			Help: "Current number of nodes reachable from the free-list head.",
		}),
		RegionSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sls_region_size_bytes",
			Help: "Size of the mapped region in bytes.",
		}),
		TxnActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sls_txn_active",
			Help: "Number of transactions currently Active.",
		}),
		TxnCommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_txn_commits_total",
			Help: "Total committed transactions.",
		}),
		TxnAbortsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_txn_aborts_total",
			Help: "Total aborted transactions.",
		}),
		TxnConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_txn_conflicts_total",
			Help: "Total commits that observed a newer root generation.",
		}),
		TxnCommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sls_txn_commit_duration_seconds",
			Help:    "Duration of the commit flush/fsync sequence.",
			Buckets: prometheus.DefBuckets,
		}),
		TxnDirtyPagesPerTxn: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sls_txn_dirty_pages",
			Help:    "Number of dirty-page entries recorded per committed transaction.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		SnapshotActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sls_snapshot_active",
			Help: "Number of snapshots currently Active.",
		}),
		SnapshotCommitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_snapshot_commits_total",
			Help: "Total snapshots committed.",
		}),
		SnapshotRestoresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_snapshot_restores_total",
			Help: "Total restore operations performed from a committed snapshot.",
		}),
		SnapshotCowPagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_snapshot_cow_pages_total",
			Help: "Total pages copied on write to preserve snapshot isolation.",
		}),
		CheckpointValidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_checkpoint_validations_total",
			Help: "Total checkpoint validation runs.",
		}),
		CheckpointRecoveriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sls_checkpoint_recoveries_total",
			Help: "Total checkpoint recovery runs.",
		}),
		CheckpointFailuresByKind: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sls_checkpoint_failures_total",
			Help: "Invariant validation failures, by invariant kind.",
		}, []string{"kind"}),
	}
}
