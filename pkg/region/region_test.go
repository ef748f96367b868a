package region

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seraph-os/sls/pkg/slserr"
)

func TestOpenCreatesRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")

	r, err := Open(path, 1<<20)
	require.NoError(t, err)
	defer r.Close()

	g := r.Genesis()
	require.Equal(t, GenesisMagic, g.Magic)
	require.Equal(t, GenesisVersion, g.Version)
	require.Equal(t, VoidOffset, g.AppRootOffset)
	require.Equal(t, uint64(GenesisSize), g.NextAllocOffset)
}

// TestRoundTripOpen covers round-trip law R1: open(create); close;
// open: magic, version and next-bump offset all match.
func TestRoundTripOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")

	r1, err := Open(path, 1<<20)
	require.NoError(t, err)
	g1 := r1.Genesis()
	require.NoError(t, r1.Close())

	r2, err := Open(path, 0)
	require.NoError(t, err)
	defer r2.Close()
	g2 := r2.Genesis()

	require.Equal(t, g1.Magic, g2.Magic)
	require.Equal(t, g1.Version, g2.Version)
	require.Equal(t, g1.NextAllocOffset, g2.NextAllocOffset)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")

	r, err := Open(path, 1<<20)
	require.NoError(t, err)
	g := r.Genesis()
	g.Magic = 0xdeadbeef
	r.PutGenesis(g)
	require.NoError(t, r.Close())

	_, err = Open(path, 0)
	require.Error(t, err)
	require.True(t, slserr.Is(err, slserr.BadFormat))
}

func TestOpenRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	r, err := Open(path, 1<<20)
	require.NoError(t, err)
	g := r.Genesis()
	g.NextAllocOffset = uint64(r.Size()) + 1<<20
	r.PutGenesis(g)
	require.NoError(t, r.Close())

	_, err = Open(path, 0)
	require.Error(t, err)
	require.True(t, slserr.Is(err, slserr.Truncated))
}

func TestOffsetToPtrBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	r, err := Open(path, 1<<20)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.OffsetToPtr(uint64(r.Size())-4, 4)
	require.NoError(t, err)

	_, err = r.OffsetToPtr(uint64(r.Size())-4, 8)
	require.Error(t, err)

	_, err = r.OffsetToPtr(VoidOffset, 4)
	require.Error(t, err)
}

func TestSyncIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	r, err := Open(path, 1<<20)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Sync())
	require.NoError(t, r.Sync())
}
