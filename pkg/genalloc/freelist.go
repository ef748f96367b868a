package genalloc

import (
	"encoding/binary"

	"github.com/seraph-os/sls/pkg/region"
)

// freeNodeHeaderSize is {next_offset uint64, size uint64, freed_gen uint64},
// per spec.md §3 "Free list": "Each node stores next_offset, size, and
// the generation at which it was freed." This is a variable-size
// singly linked chain inlined at the freed offset itself — grounded on
// the teacher's pkg/storage/freelist.go linked-list-of-arrays layout,
// generalized from fixed BTREE_PAGE_SIZE slot arrays to one node per
// freed block (a freed block is at minimum freeNodeHeaderSize bytes;
// the allocator never hands out anything smaller than that, see
// alloc.go's minimum alignment).
const freeNodeHeaderSize = 24

// freeNode is a view over a freed block's header, written in place.
type freeNode []byte

func (n freeNode) next() uint64     { return binary.LittleEndian.Uint64(n[0:8]) }
func (n freeNode) setNext(v uint64) { binary.LittleEndian.PutUint64(n[0:8], v) }

func (n freeNode) size() uint64     { return binary.LittleEndian.Uint64(n[8:16]) }
func (n freeNode) setSize(v uint64) { binary.LittleEndian.PutUint64(n[8:16], v) }

func (n freeNode) freedGen() uint64     { return binary.LittleEndian.Uint64(n[16:24]) }
func (n freeNode) setFreedGen(v uint64) { binary.LittleEndian.PutUint64(n[16:24], v) }

// freeListPush links a freed block of the given size at offset onto the
// head of the chain and stamps it with generation, then installs it as
// the new head.
func (a *Allocator) freeListPush(offset, size, generation uint64) {
	buf, err := a.region.OffsetToPtr(offset, int(size))
	if err != nil {
		// Caller validated offset/size already; this would indicate a
		// corrupt free list rather than caller error.
		return
	}
	node := freeNode(buf)
	node.setNext(a.headOffset())
	node.setSize(size)
	node.setFreedGen(generation)
	a.setHeadOffset(offset)

	if a.met != nil {
		a.met.FreeListLength.Inc()
	}
}

// freeListPopFirstFit scans the chain from headOffset for the first
// node whose size is >= want, unlinks it, and returns its
// (offset, size). ok is false if no block is large enough.
//
// P2 (free-list traversal terminates in <= total-ever-freed steps) is
// maintained by construction: the chain is strictly acyclic because
// nodes are only ever linked once, at free time, and never revisited
// after being popped.
func (a *Allocator) freeListPopFirstFit(want uint64) (offset, size uint64, ok bool) {
	const maxSteps = GenMax * 64 // generous acyclicity backstop, see P2
	prevOffset := region.VoidOffset
	cur := a.headOffset()

	for steps := 0; cur != region.VoidOffset && steps < maxSteps; steps++ {
		buf, err := a.region.OffsetToPtr(cur, freeNodeHeaderSize)
		if err != nil {
			return 0, 0, false
		}
		node := freeNode(buf)
		nodeSize := node.size()

		if nodeSize >= want {
			next := node.next()
			if prevOffset == region.VoidOffset {
				a.setHeadOffset(next)
			} else {
				prevBuf, err := a.region.OffsetToPtr(prevOffset, freeNodeHeaderSize)
				if err != nil {
					return 0, 0, false
				}
				freeNode(prevBuf).setNext(next)
			}
			if a.met != nil {
				a.met.FreeListLength.Dec()
			}
			return cur, nodeSize, true
		}

		prevOffset = cur
		cur = node.next()
	}
	return 0, 0, false
}
