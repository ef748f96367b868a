package checkpoint

import (
	"github.com/seraph-os/sls/pkg/region"
	"github.com/seraph-os/sls/pkg/slserr"
)

// CheckRecord is one line of the detailed validation report: which
// entry and invariant were checked, and the outcome. InvariantIndex is
// -1 for the type's whole-instance validator.
type CheckRecord struct {
	EntryIndex       int
	InvariantIndex   int
	TypeID           int
	FieldOffset      int
	Pass             bool
	Kind             slserr.Kind // meaningful only when !Pass
	RecoverAttempted bool
	Recovered        bool
}

// Report accumulates one CheckRecord per check performed across a
// validation or recovery pass, per spec.md §4.E "the optional detailed
// report accumulates one record per check".
type Report struct {
	Records       []CheckRecord
	FailedEntries int
	FirstFailure  *CheckRecord
}

// Validate checks every entry against its type's invariants, in
// order, running the type's instance validator last. It never returns
// an error for a failing invariant — failures are recorded in the
// returned Report; Validate only errors on structural problems (a
// dangling type id, an out-of-range pointer).
func (c *Checkpoint) Validate() (*Report, error) {
	report := &Report{}

	for ei, entry := range c.Entries {
		if !c.region.Contains(entry.Ptr, entry.AllocSize) {
			return nil, slserr.New(slserr.Invalid, "checkpoint.Validate", "entry pointer outside region")
		}
		t, err := c.registry.Type(entry.TypeID)
		if err != nil {
			return nil, err
		}
		instance, err := c.region.OffsetToPtr(entry.Ptr, entry.AllocSize)
		if err != nil {
			return nil, err
		}

		entryFailed := false
		for ii, inv := range t.Invariants {
			pass, kind := checkInvariant(c.region, entry, instance, inv)
			rec := CheckRecord{EntryIndex: ei, InvariantIndex: ii, TypeID: entry.TypeID, FieldOffset: inv.FieldOffset, Pass: pass, Kind: kind}
			report.Records = append(report.Records, rec)
			if !pass {
				entryFailed = true
				if report.FirstFailure == nil {
					rc := rec
					report.FirstFailure = &rc
				}
				if c.met != nil {
					c.met.CheckpointFailuresByKind.WithLabelValues(kind.String()).Inc()
				}
			}
		}

		if t.Validator != nil {
			pass, err := t.Validator(instance)
			if err != nil {
				pass = false
			}
			rec := CheckRecord{EntryIndex: ei, InvariantIndex: -1, TypeID: entry.TypeID, Pass: pass, Kind: slserr.CustomFailed}
			report.Records = append(report.Records, rec)
			if !pass {
				entryFailed = true
				if report.FirstFailure == nil {
					rc := rec
					report.FirstFailure = &rc
				}
				if c.met != nil {
					c.met.CheckpointFailuresByKind.WithLabelValues(slserr.CustomFailed.String()).Inc()
				}
			}
		}

		if entryFailed {
			report.FailedEntries++
		}
	}

	return report, nil
}

// checkInvariant applies a single invariant rule to instance (the
// decoded bytes of entry's allocation), returning pass/fail and, on
// failure, the taxonomy Kind to surface.
func checkInvariant(r *region.Region, entry Entry, instance []byte, inv Invariant) (bool, slserr.Kind) {
	switch inv.Kind {
	case NotNullPtr:
		p := readPtr(instance, inv.FieldOffset)
		if p == region.VoidOffset {
			return false, slserr.NullViolation
		}
		return true, 0

	case NullablePtr:
		p := readPtr(instance, inv.FieldOffset)
		if p == region.VoidOffset {
			return true, 0
		}
		if !r.Contains(p, 0) {
			return false, slserr.NullViolation
		}
		return true, 0

	case NoCycle:
		if floydCycle(r, entry.Ptr, inv.NextOffset, MaxCycleDepth) {
			return false, slserr.CycleDetected
		}
		return true, 0

	case ArrayBounds:
		count := readUint(instance, inv.CountOffset, inv.CountSize)
		if inv.MaxCount != 0 && count > inv.MaxCount {
			return false, slserr.BoundsExceeded
		}
		if count*uint64(inv.ElemSize) > uint64(entry.AllocSize) {
			return false, slserr.BoundsExceeded
		}
		return true, 0

	case Refcount:
		v := readInt(instance, inv.FieldOffset, inv.FieldSize)
		if v < inv.MinCount {
			return false, slserr.RefcountInvalid
		}
		if inv.LiveOnly && v < 1 {
			return false, slserr.RefcountInvalid
		}
		return true, 0

	case Range:
		v := readInt(instance, inv.FieldOffset, inv.FieldSize)
		if v < inv.Min || v > inv.Max {
			return false, slserr.RangeExceeded
		}
		return true, 0

	case Custom:
		if inv.Validator == nil {
			return true, 0
		}
		pass, err := inv.Validator(instance)
		if err != nil || !pass {
			return false, slserr.CustomFailed
		}
		return true, 0

	default:
		return true, 0
	}
}
