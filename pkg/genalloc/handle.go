package genalloc

import (
	"github.com/seraph-os/sls/pkg/slserr"
	"github.com/seraph-os/sls/pkg/threeval"
)

// Handle is the typed capability described in spec.md's Design Notes:
// "Expose a typed handle that couples an offset with a capability
// (alloc_id, generation); dereferencing validates the generation
// before producing a transient borrow of the region bytes." It
// replaces the raw persisted-pointer pattern the original source used,
// since a mapped region's base address differs across opens — only
// offsets are ever persisted.
type Handle struct {
	Offset     uint64
	Size       int
	AllocID    uint32
	Generation uint64
}

// NewHandle issues a fresh allocation identity for ptr/size and returns
// a Handle over it. Most callers that don't need revocation should just
// use an Allocator's raw offsets; Handle is for capabilities that must
// be revocable independent of freeing the backing bytes (e.g. a
// checkpoint entry outliving the object it describes).
func NewHandle(a *Allocator, offset uint64, size int) (Handle, error) {
	id, err := a.AllocGeneration()
	if err != nil {
		return Handle{}, err
	}
	return Handle{Offset: offset, Size: size, AllocID: id, Generation: 0}, nil
}

// Deref validates the handle's generation against the allocator's
// current table and, if still valid, returns a transient byte slice
// borrow of the region bytes it names.
func (h Handle) Deref(a *Allocator) ([]byte, error) {
	switch a.CheckGeneration(h.AllocID, h.Generation) {
	case threeval.False:
		return nil, slserr.New(slserr.Invalid, "Handle.Deref", "capability revoked")
	case threeval.Void:
		return nil, slserr.New(slserr.Invalid, "Handle.Deref", "unknown allocation id")
	}
	buf, err := a.region.OffsetToPtr(h.Offset, h.Size)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Valid reports whether the handle's capability is still current,
// without producing a borrow.
func (h Handle) Valid(a *Allocator) bool {
	v, ok := threeval.ToBool(a.CheckGeneration(h.AllocID, h.Generation))
	return ok && v
}
