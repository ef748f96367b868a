package checkpoint

import "github.com/seraph-os/sls/pkg/region"

// Kind enumerates the invariant rules a type's instances may be
// validated against, per spec.md §4.E.
type Kind int

const (
	KindVoid Kind = iota
	NotNullPtr
	NullablePtr
	NoCycle
	ArrayBounds
	Refcount
	Range
	Custom
)

func (k Kind) String() string {
	switch k {
	case NotNullPtr:
		return "not_null_ptr"
	case NullablePtr:
		return "nullable_ptr"
	case NoCycle:
		return "no_cycle"
	case ArrayBounds:
		return "array_bounds"
	case Refcount:
		return "refcount"
	case Range:
		return "range"
	case Custom:
		return "custom"
	default:
		return "void"
	}
}

// CustomValidator is the user-supplied whole-check hook for a Custom
// invariant. It receives the decoded instance bytes and reports
// whether they satisfy the invariant.
type CustomValidator func(instance []byte) (bool, error)

// CustomRecoverer repairs an instance that failed a Custom invariant.
// It reports whether the repair was applied.
type CustomRecoverer func(instance []byte) (bool, error)

// InstanceValidator is the optional whole-instance hook installed with
// SetTypeValidator, run last after every per-field invariant.
type InstanceValidator func(instance []byte) (bool, error)

// Invariant is a single declarative rule on a field of a registered
// type. Only the fields relevant to Kind are meaningful; this mirrors
// the tagged-union invariant description called for in spec.md §9's
// design notes.
type Invariant struct {
	Kind Kind

	// NotNullPtr / NullablePtr: pointer-sized field offset.
	FieldOffset int

	// NoCycle: offset of the next-pointer field within the instance
	// (spec.md's "cycle.next_offset").
	NextOffset int

	// ArrayBounds: count field offset/size, element size, and the
	// optional maximum count (0 means unbounded).
	CountOffset int
	CountSize   int // 1, 2, 4, or 8 bytes
	ElemSize    int
	MaxCount    uint64

	// Refcount: signed field offset/size, minimum, and whether values
	// below 1 are a failure regardless of MinCount.
	MinCount int64
	LiveOnly bool

	// Range: signed field offset/size and inclusive bounds.
	Min int64
	Max int64

	// Refcount and Range share FieldOffset/FieldSize for their integer
	// field.
	FieldSize int

	// Custom: user-supplied hooks.
	Validator CustomValidator
	Recoverer CustomRecoverer

	// AutoRecoverable gates whether Recover attempts a repair for this
	// invariant. NotNullPtr is never recoverable regardless of this flag,
	// per spec.md §4.E.
	AutoRecoverable bool
}

func readUint(buf []byte, offset, size int) uint64 {
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(buf[offset+i]) << (8 * i)
	}
	return v
}

func writeUint(buf []byte, offset, size int, v uint64) {
	for i := 0; i < size; i++ {
		buf[offset+i] = byte(v >> (8 * i))
	}
}

func readInt(buf []byte, offset, size int) int64 {
	u := readUint(buf, offset, size)
	shift := uint(64 - 8*size)
	return int64(u<<shift) >> shift // sign-extend
}

func writeInt(buf []byte, offset, size int, v int64) {
	writeUint(buf, offset, size, uint64(v))
}

func readPtr(buf []byte, offset int) uint64 {
	return readUint(buf, offset, 8)
}

func writePtr(buf []byte, offset int, v uint64) {
	writeUint(buf, offset, 8, v)
}

// floydCycle walks next-links starting at start via Floyd's
// tortoise-and-hare, capped at maxDepth steps, and reports whether the
// two pointers ever meet. Recovery treats the validated entry itself as
// the last pre-cycle node: clearing its own next field is always
// sufficient to break a cycle that loops back to it, per spec.md §4.E
// scenario 5.
func floydCycle(r *region.Region, start uint64, nextOffset, maxDepth int) bool {
	follow := func(p uint64) (uint64, bool) {
		if p == region.VoidOffset {
			return region.VoidOffset, false
		}
		buf, err := r.OffsetToPtr(p, nextOffset+8)
		if err != nil {
			return region.VoidOffset, false
		}
		return readPtr(buf, nextOffset), true
	}

	slow, fast := start, start
	for i := 0; i < maxDepth; i++ {
		var ok bool
		fast, ok = follow(fast)
		if !ok {
			return false
		}
		fast, ok = follow(fast)
		if !ok {
			return false
		}
		slow, ok = follow(slow)
		if !ok {
			return false
		}
		if slow == fast {
			return true
		}
	}
	return false
}
