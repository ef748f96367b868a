// Package region implements Component A of the SLS core: it opens or
// creates the backing file, maps it as one contiguous byte arena, and
// exposes the addressing and sync primitives every other component is
// built on. It is grounded on the teacher's pkg/storage/kv.go mmap/fd
// management, generalized from treestore's read-only mmap-plus-pwrite
// log style to a read-write mmap presenting the whole region as
// directly addressable memory, per spec.md §3 "Region".
package region

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/seraph-os/sls/internal/logging"
	"github.com/seraph-os/sls/pkg/slserr"
)

const (
	// PageSize is the fixed page size used for alignment and sync
	// granularity throughout the core.
	PageSize = 4096

	// DefaultSize is used when a caller creates a region without
	// specifying one.
	DefaultSize = 64 << 20 // 64 MiB

	// MaxSize is the largest region this package will create or open.
	MaxSize = 4 << 30 // 4 GiB

	// MaxPathLen mirrors spec.md §6 "Path length: 256 bytes including
	// terminator" — enforced defensively since Go strings aren't
	// NUL-terminated, but external callers may hand these paths to
	// kernel-side code that does enforce it.
	MaxPathLen = 256

	// VoidOffset is the encoding of "no allocation" used throughout
	// Genesis and the free list, and the sentinel the allocator returns
	// when a request cannot be satisfied. This package works in offsets
	// only and has no pointer-to-offset conversion.
	VoidOffset = ^uint64(0)
)

// Region is a contiguous, page-aligned byte range mapped from a backing
// file. All persistent offsets are measured from its base.
type Region struct {
	path string
	fd   *os.File
	data []byte // the full mmap; data[0:GenesisSize] is the Genesis record

	log *logging.Logger
}

// Open opens an existing region file or creates a new one of
// requestedSize (DefaultSize if zero), per spec.md §4.A.
func Open(path string, requestedSize int) (*Region, error) {
	if len(path) > MaxPathLen {
		return nil, slserr.New(slserr.Invalid, "region.Open", "path exceeds MaxPathLen")
	}
	if requestedSize == 0 {
		requestedSize = DefaultSize
	}
	if requestedSize > MaxSize {
		return nil, slserr.New(slserr.Invalid, "region.Open", "requested size exceeds MaxSize")
	}

	log := logging.Get().Component("region")

	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, slserr.Wrap(slserr.IoError, "region.Open", "open backing file", err)
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, slserr.Wrap(slserr.IoError, "region.Open", "stat backing file", err)
	}

	r := &Region{path: path, fd: fd, log: log}

	if info.Size() == 0 {
		if err := r.create(requestedSize); err != nil {
			fd.Close()
			return nil, err
		}
		log.Info().Str("path", path).Int("size", requestedSize).Msg("region created")
		return r, nil
	}

	if err := r.recover(int(info.Size())); err != nil {
		fd.Close()
		return nil, err
	}
	log.Info().Str("path", path).Int64("size", info.Size()).Msg("region opened")
	return r, nil
}

// create zero-fills a new file of size n, maps it, and writes an
// initial Genesis.
func (r *Region) create(n int) error {
	if err := r.fd.Truncate(int64(n)); err != nil {
		return slserr.Wrap(slserr.IoError, "region.create", "truncate backing file", err)
	}

	data, err := unix.Mmap(int(r.fd.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return slserr.Wrap(slserr.IoError, "region.create", "mmap", err)
	}
	r.data = data

	now := time.Now().UnixNano()
	genTableOffset := uint64(GenesisSize)
	// GenTableSize is defined in pkg/genalloc but Genesis only stores the
	// offset; the allocator package lays out its own header at that
	// offset the first time it runs on a freshly created region.
	g := &Genesis{
		Magic:               GenesisMagic,
		Version:             GenesisVersion,
		RootGeneration:      0,
		AppRootOffset:       VoidOffset,
		FreeListOffset:      VoidOffset,
		GenTableOffset:      genTableOffset,
		SnapshotIndexOffset: VoidOffset,
		NextAllocOffset:     genTableOffset, // allocator bumps this past its table on first use
		JournalOffset:       VoidOffset,     // txn engine points this at its journal table on first use
		CreatedAt:           now,
		ModifiedAt:          now,
	}
	copy(r.data[0:GenesisSize], g.Encode())
	return r.Sync()
}

// recover validates the Genesis of an existing file and maps it. Per
// spec.md §4.A, recovery is exactly "validate Genesis" — O(1).
func (r *Region) recover(fileSize int) error {
	data, err := unix.Mmap(int(r.fd.Fd()), 0, fileSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return slserr.Wrap(slserr.IoError, "region.recover", "mmap", err)
	}
	r.data = data

	if fileSize < GenesisSize {
		return slserr.New(slserr.Truncated, "region.recover", "file shorter than Genesis")
	}

	g := DecodeGenesis(r.data[0:GenesisSize])
	if g.Magic != GenesisMagic {
		return slserr.New(slserr.BadFormat, "region.recover", "genesis magic mismatch")
	}
	if g.Version != GenesisVersion {
		return slserr.New(slserr.BadFormat, "region.recover", "genesis version mismatch")
	}
	if uint64(fileSize) < g.NextAllocOffset {
		return slserr.New(slserr.Truncated, "region.recover", "file shorter than next-bump offset")
	}
	return nil
}

// Size returns the mapped region size in bytes.
func (r *Region) Size() int { return len(r.data) }

// Bytes returns the full backing slice. Callers outside this package
// should prefer OffsetToPtr-scoped slices, but the allocator needs raw
// access to lay out its own structures.
func (r *Region) Bytes() []byte { return r.data }

// Genesis reads the current Genesis record.
func (r *Region) Genesis() *Genesis {
	return DecodeGenesis(r.data[0:GenesisSize])
}

// PutGenesis writes g back to offset 0. Callers are responsible for
// calling Sync or SyncRange afterwards if durability is required before
// returning to their own caller (the transaction engine controls this
// ordering explicitly, per spec.md §4.C).
func (r *Region) PutGenesis(g *Genesis) {
	copy(r.data[0:GenesisSize], g.Encode())
}

// OffsetToPtr returns a byte slice view of length n starting at offset
// k, or an error if the range falls outside the region.
func (r *Region) OffsetToPtr(k uint64, n int) ([]byte, error) {
	if k == VoidOffset {
		return nil, slserr.New(slserr.Invalid, "region.OffsetToPtr", "void offset")
	}
	end := k + uint64(n)
	if n < 0 || k >= uint64(len(r.data)) || end > uint64(len(r.data)) || end < k {
		return nil, slserr.New(slserr.Invalid, "region.OffsetToPtr", fmt.Sprintf("range [%d,%d) outside region of size %d", k, end, len(r.data)))
	}
	return r.data[k:end], nil
}

// Contains reports whether the half-open range [k, k+n) lies entirely
// within [0, Size()).
func (r *Region) Contains(k uint64, n int) bool {
	if k == VoidOffset || n < 0 {
		return false
	}
	end := k + uint64(n)
	return k < uint64(len(r.data)) && end <= uint64(len(r.data)) && end >= k
}

// Sync flushes the entire mapping to the backing store.
func (r *Region) Sync() error {
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return slserr.Wrap(slserr.IoError, "region.Sync", "msync", err)
	}
	return nil
}

// SyncRange flushes the page-aligned range covering [offset,
// offset+length).
func (r *Region) SyncRange(offset uint64, length int) error {
	start := (offset / PageSize) * PageSize
	end := offset + uint64(length)
	end = ((end + PageSize - 1) / PageSize) * PageSize
	if end > uint64(len(r.data)) {
		end = uint64(len(r.data))
	}
	if start >= end {
		return nil
	}
	if err := unix.Msync(r.data[start:end], unix.MS_SYNC); err != nil {
		return slserr.Wrap(slserr.IoError, "region.SyncRange", "msync", err)
	}
	return nil
}

// Close flushes, unmaps, and closes the backing file. Idempotent.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	if err := r.Sync(); err != nil {
		return err
	}
	if err := unix.Munmap(r.data); err != nil {
		return slserr.Wrap(slserr.IoError, "region.Close", "munmap", err)
	}
	r.data = nil
	if err := r.fd.Close(); err != nil {
		return slserr.Wrap(slserr.IoError, "region.Close", "close file", err)
	}
	return nil
}

// Path returns the backing file path.
func (r *Region) Path() string { return r.path }
