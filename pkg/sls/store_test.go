package sls

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seraph-os/sls/pkg/region"
)

// TestCrashSafety covers end-to-end scenario 1: a committed
// transaction's bytes survive a simulated crash; an uncommitted one's
// do not.
func TestCrashSafety(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	st, err := Open(path, 1<<20)
	require.NoError(t, err)

	ptr := st.Alloc.Alloc(4)

	t1, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, t1.MarkDirty(ptr, 4))
	buf, err := st.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	copy(buf, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, st.Commit(t1))

	t2, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, t2.MarkDirty(ptr, 4))
	buf, err = st.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	copy(buf, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	// Simulate a crash: close the region without committing t2. Close
	// flushes t2's write to the file, so reopening must roll it back from
	// the recovery journal.
	require.NoError(t, st.Region.Close())

	st2, err := Open(path, 0)
	require.NoError(t, err)
	defer st2.Close()

	got, err := st2.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, got)
}

// TestSnapshotCowScenario covers end-to-end scenario 3.
func TestSnapshotCowScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	st, err := Open(path, 1<<20)
	require.NoError(t, err)
	defer st.Close()

	ptr := st.Alloc.AllocPages(region.PageSize)

	t1, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, t1.MarkDirty(ptr, 4))
	buf, err := st.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	copy(buf, []byte{0x01, 0x02, 0x03, 0x04})
	require.NoError(t, st.Commit(t1))

	snap, err := st.BeginSnapshot()
	require.NoError(t, err)
	require.NoError(t, st.Snapshots.Include(snap, ptr, 4))
	require.NoError(t, st.Snapshots.Activate(snap))

	t2, err := st.Begin()
	require.NoError(t, err)
	require.NoError(t, t2.MarkDirty(ptr, 4))
	buf, err = st.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	copy(buf, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, st.Commit(t2))

	view, err := st.Snapshots.ReadPage(snap, ptr)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), view[0])
	require.Equal(t, byte(0x02), view[1])
	require.Equal(t, byte(0x03), view[2])
	require.Equal(t, byte(0x04), view[3])

	require.NoError(t, st.Snapshots.Commit(snap))
	require.NoError(t, st.RestoreSnapshot(snap))

	live, err := st.Region.OffsetToPtr(ptr, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, live)
}
