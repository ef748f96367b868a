package genalloc

import "encoding/binary"

// GenMax is the maximum number of allocation identities the generation
// table can track, per spec.md §3 "GEN_MAX (4096)".
const GenMax = 4096

// genTableHeaderSize is {entry_count uint32, next_generation uint32,
// reserved uint64} followed by GenMax uint64 counters.
const genTableHeaderSize = 16

// GenTableSize is the total persisted size of the generation table,
// which Genesis.GenTableOffset points at.
const GenTableSize = genTableHeaderSize + GenMax*8

// genTable is a thin view over the raw bytes backing the generation
// table, analogous to how the teacher's btree.BNode wraps a []byte
// page in place rather than copying it.
type genTable []byte

func (t genTable) entryCount() uint32     { return binary.LittleEndian.Uint32(t[0:4]) }
func (t genTable) setEntryCount(v uint32) { binary.LittleEndian.PutUint32(t[0:4], v) }

// nextGeneration is, despite the name the spec gives it, the next
// *allocation identity* to hand out (its slot in the table), not a
// per-slot generation counter — those live in counter(id) below.
func (t genTable) nextGeneration() uint32     { return binary.LittleEndian.Uint32(t[4:8]) }
func (t genTable) setNextGeneration(v uint32) { binary.LittleEndian.PutUint32(t[4:8], v) }

func (t genTable) counter(id uint32) uint64 {
	off := genTableHeaderSize + int(id)*8
	return binary.LittleEndian.Uint64(t[off : off+8])
}

func (t genTable) setCounter(id uint32, v uint64) {
	off := genTableHeaderSize + int(id)*8
	binary.LittleEndian.PutUint64(t[off:off+8], v)
}

// initGenTable zero-initializes a freshly allocated table region.
func initGenTable(t genTable) {
	for i := range t {
		t[i] = 0
	}
}
