package txn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seraph-os/sls/pkg/genalloc"
	"github.com/seraph-os/sls/pkg/region"
)

func newTestEngine(t *testing.T) (*Engine, *region.Region, *genalloc.Allocator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "r.db")
	r, err := region.Open(path, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	a, err := genalloc.New(r, nil)
	require.NoError(t, err)

	return New(r, nil), r, a
}

func write(t *testing.T, r *region.Region, ptr uint64, data []byte) {
	t.Helper()
	buf, err := r.OffsetToPtr(ptr, len(data))
	require.NoError(t, err)
	copy(buf, data)
}

func read(t *testing.T, r *region.Region, ptr uint64, n int) []byte {
	t.Helper()
	buf, err := r.OffsetToPtr(ptr, n)
	require.NoError(t, err)
	out := make([]byte, n)
	copy(out, buf)
	return out
}

// TestCommitMakesWritesDurable covers round-trip law R4.
func TestCommitMakesWritesDurable(t *testing.T) {
	e, r, a := newTestEngine(t)
	ptr := a.Alloc(16)

	tx, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.MarkDirty(ptr, 16))
	write(t, r, ptr, []byte("0123456789ABCDEF"))
	require.NoError(t, e.Commit(tx))

	require.Equal(t, Committed, tx.State())
	require.Equal(t, []byte("0123456789ABCDEF"), read(t, r, ptr, 16))
}

// TestAbortRestoresOriginal covers round-trip law R3 and invariant P4.
func TestAbortRestoresOriginal(t *testing.T) {
	e, r, a := newTestEngine(t)
	ptr := a.Alloc(16)
	write(t, r, ptr, []byte("original12345678"))

	tx, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.MarkDirty(ptr, 16))
	write(t, r, ptr, []byte("clobbered_______"))
	e.Abort(tx)

	require.Equal(t, Aborted, tx.State())
	require.Equal(t, []byte("original12345678"), read(t, r, ptr, 16))
}

// TestMarkDirtyIdempotent covers idempotence law I2: the first snapshot
// of the original is authoritative.
func TestMarkDirtyIdempotent(t *testing.T) {
	e, r, a := newTestEngine(t)
	ptr := a.Alloc(16)
	write(t, r, ptr, []byte("first___________"))

	tx, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.MarkDirty(ptr, 16))
	write(t, r, ptr, []byte("second__________"))
	require.NoError(t, tx.MarkDirty(ptr, 16)) // no-op: original already captured
	write(t, r, ptr, []byte("third___________"))

	e.Abort(tx)
	require.Equal(t, []byte("first___________"), read(t, r, ptr, 16))
}

func TestOverlappingMarksRestoreNewestFirst(t *testing.T) {
	e, r, a := newTestEngine(t)
	base := a.Alloc(32)
	write(t, r, base, []byte("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))

	tx, err := e.Begin()
	require.NoError(t, err)

	require.NoError(t, tx.MarkDirty(base, 16))
	write(t, r, base, []byte("BBBBBBBBBBBBBBBB"))

	require.NoError(t, tx.MarkDirty(base+8, 16))
	write(t, r, base+8, []byte("CCCCCCCCCCCCCCCC"))

	e.Abort(tx)
	require.Equal(t, []byte("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"), read(t, r, base, 32))
}

func TestCommitBumpsEpochAndGeneration(t *testing.T) {
	e, r, a := newTestEngine(t)
	ptr := a.Alloc(16)

	before := r.Genesis()
	tx, err := e.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.MarkDirty(ptr, 16))
	require.NoError(t, e.Commit(tx))

	after := r.Genesis()
	require.Greater(t, after.CurrentEpoch, before.CurrentEpoch)
	require.Greater(t, after.RootGeneration, before.RootGeneration)
	require.Equal(t, before.CommitCount+1, after.CommitCount)
}

func TestConcurrentCommitConflict(t *testing.T) {
	e, r, a := newTestEngine(t)
	ptr1 := a.Alloc(16)
	ptr2 := a.Alloc(16)
	_ = r

	tx1, err := e.Begin()
	require.NoError(t, err)
	tx2, err := e.Begin()
	require.NoError(t, err)

	require.NoError(t, tx1.MarkDirty(ptr1, 16))
	require.NoError(t, e.Commit(tx1))

	require.NoError(t, tx2.MarkDirty(ptr2, 16))
	err = e.Commit(tx2)
	require.Error(t, err)
	require.Equal(t, Aborted, tx2.State())
}

func TestBeginExhausted(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for i := 0; i < MaxConcurrent; i++ {
		_, err := e.Begin()
		require.NoError(t, err)
	}
	_, err := e.Begin()
	require.Error(t, err)
}

func TestMarkDirtyExhausted(t *testing.T) {
	e, _, a := newTestEngine(t)
	tx, err := e.Begin()
	require.NoError(t, err)

	for i := 0; i < MaxDirtyEntries; i++ {
		ptr := a.Alloc(8)
		require.NoError(t, tx.MarkDirty(ptr, 8))
	}
	ptr := a.Alloc(8)
	require.Error(t, tx.MarkDirty(ptr, 8))
}

func TestMarkDirtyRejectsOutOfRange(t *testing.T) {
	e, r, _ := newTestEngine(t)
	tx, err := e.Begin()
	require.NoError(t, err)
	require.Error(t, tx.MarkDirty(uint64(r.Size())+8, 8))
}
