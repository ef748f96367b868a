package checkpoint

import "github.com/seraph-os/sls/pkg/region"

// Recover re-validates every entry and repairs any failing invariant
// marked AutoRecoverable. Failures reported by a type's whole-instance
// validator are not repaired: there is no instance-level recovery hook,
// and the validator is only run again by the final re-validation.
// NotNullPtr failures are never repaired, per spec.md §4.E. After
// repair, Recover re-validates and reports whether every entry now
// passes.
func (c *Checkpoint) Recover() (fullyRecovered bool, report *Report, err error) {
	report, err = c.Validate()
	if err != nil {
		return false, nil, err
	}
	if report.FailedEntries == 0 {
		return true, report, nil
	}

	for i := range report.Records {
		rec := &report.Records[i]
		if rec.Pass || rec.InvariantIndex < 0 {
			continue
		}
		entry := c.Entries[rec.EntryIndex]
		t, terr := c.registry.Type(entry.TypeID)
		if terr != nil {
			return false, report, terr
		}
		inv := t.Invariants[rec.InvariantIndex]
		if !inv.AutoRecoverable || inv.Kind == NotNullPtr {
			continue
		}

		instance, ierr := c.region.OffsetToPtr(entry.Ptr, entry.AllocSize)
		if ierr != nil {
			return false, report, ierr
		}

		rec.RecoverAttempted = true
		rec.Recovered = recoverInvariant(c.region, entry, instance, inv)
	}

	post, err := c.Validate()
	if err != nil {
		return false, report, err
	}
	return post.FailedEntries == 0, post, nil
}

// recoverInvariant applies the kind-specific repair spec.md §4.E
// prescribes, returning whether a repair was made.
func recoverInvariant(r *region.Region, entry Entry, instance []byte, inv Invariant) bool {
	switch inv.Kind {
	case NullablePtr:
		writePtr(instance, inv.FieldOffset, region.VoidOffset)
		return true

	case NoCycle:
		// The last pre-cycle node, per this package's floydCycle
		// semantics, is the entry's own pointer: clearing its next field
		// always breaks a cycle that loops back to it.
		writePtr(instance, inv.NextOffset, region.VoidOffset)
		return true

	case ArrayBounds:
		maxCount := inv.MaxCount
		fit := uint64(0)
		if inv.ElemSize > 0 {
			fit = uint64(entry.AllocSize) / uint64(inv.ElemSize)
		}
		clamp := fit
		if maxCount != 0 && maxCount < clamp {
			clamp = maxCount
		}
		writeUint(instance, inv.CountOffset, inv.CountSize, clamp)
		return true

	case Refcount:
		v := int64(1)
		if !inv.LiveOnly {
			v = inv.MinCount
		}
		writeInt(instance, inv.FieldOffset, inv.FieldSize, v)
		return true

	case Range:
		v := readInt(instance, inv.FieldOffset, inv.FieldSize)
		if v < inv.Min {
			v = inv.Min
		} else if v > inv.Max {
			v = inv.Max
		}
		writeInt(instance, inv.FieldOffset, inv.FieldSize, v)
		return true

	case Custom:
		if inv.Recoverer == nil {
			return false
		}
		ok, err := inv.Recoverer(instance)
		return err == nil && ok

	default:
		return false
	}
}
