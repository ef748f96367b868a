package region

import "encoding/binary"

// GenesisSize is the fixed, aligned size of the Genesis record at
// offset 0, per spec.md §3 "a fixed 256-byte record".
const GenesisSize = 256

// GenesisMagic is the persisted 64-bit LE magic ("SERAPHAT" as the
// spec.md §6 constant 0x5345524150484154).
const GenesisMagic uint64 = 0x5345524150484154

// GenesisVersion is the only format version this package writes or
// accepts.
const GenesisVersion uint32 = 1

// Genesis is the sole reachable root of a region: everything else is
// found by following one of its offsets. Field layout (little-endian,
// offsets into the 256-byte record):
//
//	0   magic               uint64
//	8   version             uint32
//	12  rootGeneration      uint32
//	16  appRootOffset       uint64
//	24  freeListOffset      uint64
//	32  genTableOffset      uint64
//	40  snapshotIndexOffset uint64  (Open Question (c): fixed field added here)
//	48  nextAllocOffset     uint64
//	56  totalAllocated      uint64
//	64  totalFreed          uint64
//	72  createdAt           int64
//	80  modifiedAt          int64
//	88  lastCommitAt        int64
//	96  commitCount         uint64
//	104 abortCount          uint64
//	112 currentEpoch        uint64
//	120 journalOffset       uint64
//	128..255 reserved (zero)
type Genesis struct {
	Magic               uint64
	Version             uint32
	RootGeneration      uint32
	AppRootOffset       uint64
	FreeListOffset      uint64
	GenTableOffset      uint64
	SnapshotIndexOffset uint64
	NextAllocOffset     uint64
	TotalAllocated      uint64
	TotalFreed          uint64
	CreatedAt           int64
	ModifiedAt          int64
	LastCommitAt        int64
	CommitCount         uint64
	AbortCount          uint64
	CurrentEpoch        uint64
	JournalOffset       uint64
}

// Encode serializes g into a GenesisSize byte buffer.
func (g *Genesis) Encode() []byte {
	buf := make([]byte, GenesisSize)
	binary.LittleEndian.PutUint64(buf[0:], g.Magic)
	binary.LittleEndian.PutUint32(buf[8:], g.Version)
	binary.LittleEndian.PutUint32(buf[12:], g.RootGeneration)
	binary.LittleEndian.PutUint64(buf[16:], g.AppRootOffset)
	binary.LittleEndian.PutUint64(buf[24:], g.FreeListOffset)
	binary.LittleEndian.PutUint64(buf[32:], g.GenTableOffset)
	binary.LittleEndian.PutUint64(buf[40:], g.SnapshotIndexOffset)
	binary.LittleEndian.PutUint64(buf[48:], g.NextAllocOffset)
	binary.LittleEndian.PutUint64(buf[56:], g.TotalAllocated)
	binary.LittleEndian.PutUint64(buf[64:], g.TotalFreed)
	binary.LittleEndian.PutUint64(buf[72:], uint64(g.CreatedAt))
	binary.LittleEndian.PutUint64(buf[80:], uint64(g.ModifiedAt))
	binary.LittleEndian.PutUint64(buf[88:], uint64(g.LastCommitAt))
	binary.LittleEndian.PutUint64(buf[96:], g.CommitCount)
	binary.LittleEndian.PutUint64(buf[104:], g.AbortCount)
	binary.LittleEndian.PutUint64(buf[112:], g.CurrentEpoch)
	binary.LittleEndian.PutUint64(buf[120:], g.JournalOffset)
	return buf
}

// DecodeGenesis parses a GenesisSize buffer into a Genesis.
func DecodeGenesis(buf []byte) *Genesis {
	g := &Genesis{}
	g.Magic = binary.LittleEndian.Uint64(buf[0:])
	g.Version = binary.LittleEndian.Uint32(buf[8:])
	g.RootGeneration = binary.LittleEndian.Uint32(buf[12:])
	g.AppRootOffset = binary.LittleEndian.Uint64(buf[16:])
	g.FreeListOffset = binary.LittleEndian.Uint64(buf[24:])
	g.GenTableOffset = binary.LittleEndian.Uint64(buf[32:])
	g.SnapshotIndexOffset = binary.LittleEndian.Uint64(buf[40:])
	g.NextAllocOffset = binary.LittleEndian.Uint64(buf[48:])
	g.TotalAllocated = binary.LittleEndian.Uint64(buf[56:])
	g.TotalFreed = binary.LittleEndian.Uint64(buf[64:])
	g.CreatedAt = int64(binary.LittleEndian.Uint64(buf[72:]))
	g.ModifiedAt = int64(binary.LittleEndian.Uint64(buf[80:]))
	g.LastCommitAt = int64(binary.LittleEndian.Uint64(buf[88:]))
	g.CommitCount = binary.LittleEndian.Uint64(buf[96:])
	g.AbortCount = binary.LittleEndian.Uint64(buf[104:])
	g.CurrentEpoch = binary.LittleEndian.Uint64(buf[112:])
	g.JournalOffset = binary.LittleEndian.Uint64(buf[120:])
	return g
}

// Clone returns a deep copy, used by the snapshot engine to freeze a
// Genesis image at capture time.
func (g *Genesis) Clone() *Genesis {
	c := *g
	return &c
}
