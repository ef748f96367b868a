package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seraph-os/sls/pkg/genalloc"
	"github.com/seraph-os/sls/pkg/region"
)

func newTestEngine(t *testing.T) (*Engine, *region.Region, *genalloc.Allocator) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "r.db")
	r, err := region.Open(path, 2<<20)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	a, err := genalloc.New(r, nil)
	require.NoError(t, err)

	return New(r, a, nil), r, a
}

func writePage(t *testing.T, r *region.Region, offset uint64, fill byte) {
	t.Helper()
	buf, err := r.OffsetToPtr(offset, region.PageSize)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = fill
	}
}

func TestBeginIncludeActivateCommit(t *testing.T) {
	e, _, a := newTestEngine(t)
	ptr := a.AllocPages(region.PageSize)

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.Equal(t, Preparing, s.State())

	require.NoError(t, e.Include(s, ptr, region.PageSize))
	require.NoError(t, e.Activate(s))
	require.Equal(t, Active, s.State())

	require.NoError(t, e.Commit(s))
	require.Equal(t, Committed, s.State())
	require.Contains(t, e.List(), s.ID)
}

// TestCowPageIdempotent covers idempotence law I3: repeated CowPage
// calls for the same (snapshot, page) only capture the first original.
func TestCowPageIdempotent(t *testing.T) {
	e, r, a := newTestEngine(t)
	page := a.AllocPages(region.PageSize)
	writePage(t, r, page, 'A')

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.IncludeAll(s))
	require.NoError(t, e.Activate(s))

	require.NoError(t, e.CowPage(s, page))
	writePage(t, r, page, 'B')
	require.NoError(t, e.CowPage(s, page)) // no-op: page already preserved
	writePage(t, r, page, 'C')

	require.Len(t, s.cow, 1)
	buf, err := e.ReadPage(s, page)
	require.NoError(t, err)
	require.True(t, bytes.Equal(buf, bytes.Repeat([]byte{'A'}, region.PageSize)))
}

// TestReadPagePreservesOriginal covers invariant P5: a committed
// snapshot's view of an overwritten page is frozen at activation time.
func TestReadPagePreservesOriginal(t *testing.T) {
	e, r, a := newTestEngine(t)
	page := a.AllocPages(region.PageSize)
	writePage(t, r, page, 'X')

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.IncludeAll(s))
	require.NoError(t, e.Activate(s))

	e.BeforeWrite(page, region.PageSize)
	writePage(t, r, page, 'Y')
	require.NoError(t, e.Commit(s))

	buf, err := e.ReadPage(s, page)
	require.NoError(t, err)
	require.True(t, bytes.Equal(buf, bytes.Repeat([]byte{'X'}, region.PageSize)))

	live, err := r.OffsetToPtr(page, region.PageSize)
	require.NoError(t, err)
	require.True(t, bytes.Equal(live, bytes.Repeat([]byte{'Y'}, region.PageSize)))
}

// TestPreparingDoesNotInterceptWrites resolves Open Question (a):
// writes made while a snapshot is Preparing are not preserved.
func TestPreparingDoesNotInterceptWrites(t *testing.T) {
	e, r, a := newTestEngine(t)
	page := a.AllocPages(region.PageSize)
	writePage(t, r, page, 'X')

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.IncludeAll(s))

	e.BeforeWrite(page, region.PageSize) // snapshot still Preparing: no-op
	writePage(t, r, page, 'Z')
	require.Empty(t, s.cow)

	require.NoError(t, e.Activate(s))
	buf, err := e.ReadPage(s, page)
	require.NoError(t, err)
	require.True(t, bytes.Equal(buf, bytes.Repeat([]byte{'Z'}, region.PageSize)))
}

// TestRestoreRevertsRegion covers round-trip law R5.
func TestRestoreRevertsRegion(t *testing.T) {
	e, r, a := newTestEngine(t)
	page := a.AllocPages(region.PageSize)
	writePage(t, r, page, 'A')

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.IncludeAll(s))
	require.NoError(t, e.Activate(s))

	before := r.Genesis()

	e.BeforeWrite(page, region.PageSize)
	writePage(t, r, page, 'B')
	require.NoError(t, e.Commit(s))

	writePage(t, r, page, 'C') // further drift after commit

	abortCalled := false
	live := NewClock(1, 0)
	require.NoError(t, e.Restore(s, func() { abortCalled = true }, &live))
	require.True(t, abortCalled)

	buf, err := r.OffsetToPtr(page, region.PageSize)
	require.NoError(t, err)
	require.True(t, bytes.Equal(buf, bytes.Repeat([]byte{'A'}, region.PageSize)))

	after := r.Genesis()
	require.Greater(t, after.RootGeneration, before.RootGeneration)
}

func TestAbortFreesCowStorage(t *testing.T) {
	e, r, a := newTestEngine(t)
	page := a.AllocPages(region.PageSize)
	writePage(t, r, page, 'A')

	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.IncludeAll(s))
	require.NoError(t, e.Activate(s))
	require.NoError(t, e.CowPage(s, page))

	e.Abort(s)
	require.Equal(t, Void, s.State())
	_, err = e.Get(s.ID)
	require.Error(t, err)
}

func TestBeginExhausted(t *testing.T) {
	e, _, _ := newTestEngine(t)
	for i := 0; i < MaxSnapshots; i++ {
		_, err := e.Begin(nil)
		require.NoError(t, err)
	}
	_, err := e.Begin(nil)
	require.Error(t, err)
}

func TestDeleteOnlyCommitted(t *testing.T) {
	e, _, a := newTestEngine(t)
	ptr := a.AllocPages(region.PageSize)
	s, err := e.Begin(nil)
	require.NoError(t, err)
	require.NoError(t, e.Include(s, ptr, region.PageSize))

	require.Error(t, e.Delete(s.ID)) // still Preparing

	require.NoError(t, e.Activate(s))
	require.NoError(t, e.Commit(s))
	require.NoError(t, e.Delete(s.ID))
	require.Empty(t, e.List())
}
