// Package checkpoint implements Component E of the SLS core: a
// declarative type registry and a semantic checkpoint engine that
// validates and repairs typed invariants over region-resident
// instances. Grounded on the teacher's pkg/wal.Checkpointer for the
// overall shape (a bounded, explicitly-constructed manager with a
// create/validate/recover lifecycle) and on pkg/genalloc/gentable.go
// for the "bounded table with a linear find" pattern used by the type
// registry, generalized from fixed counters to declarative invariant
// lists, per spec.md §4.E and §9's "avoid ambient globals" note.
package checkpoint

import (
	"github.com/seraph-os/sls/pkg/slserr"
)

const (
	// MaxTypes is the type registry capacity, per spec.md §6 "Type
	// registry: 64 types".
	MaxTypes = 64

	// MaxInvariantsPerType bounds a single type's invariant list, per
	// spec.md §6 "32 invariants each".
	MaxInvariantsPerType = 32

	// MaxCycleDepth bounds NoCycle traversal, per spec.md §4.E "cap
	// traversal depth at 65536".
	MaxCycleDepth = 65536
)

// Type is a registered instance layout: its fixed size, the invariants
// checked against its fields, and an optional whole-instance validator
// run after every per-field invariant.
type Type struct {
	ID         int
	Name       string
	Size       int
	Invariants []Invariant
	Validator  InstanceValidator
}

// Registry is a process-local, explicitly constructed table of
// registered types. It is never a package-level global: callers own an
// instance and thread it through Checkpoint.Create, matching spec.md
// §9's guidance to encapsulate "the primordial" type table as an
// explicit context.
type Registry struct {
	types []*Type
}

// NewRegistry returns an empty type registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterType assigns the next free type id to name/size and returns
// it. Fails with Exhausted once MaxTypes types are registered.
func (r *Registry) RegisterType(name string, size int) (int, error) {
	if len(r.types) >= MaxTypes {
		return 0, slserr.New(slserr.Exhausted, "checkpoint.RegisterType", "type registry full")
	}
	id := len(r.types)
	r.types = append(r.types, &Type{ID: id, Name: name, Size: size})
	return id, nil
}

// AddInvariant appends inv to typeID's invariant list. Fails with
// Exhausted once MaxInvariantsPerType invariants are attached.
func (r *Registry) AddInvariant(typeID int, inv Invariant) error {
	t, err := r.typeAt(typeID)
	if err != nil {
		return err
	}
	if len(t.Invariants) >= MaxInvariantsPerType {
		return slserr.New(slserr.Exhausted, "checkpoint.AddInvariant", "invariant list full")
	}
	t.Invariants = append(t.Invariants, inv)
	return nil
}

// SetTypeValidator installs the optional whole-instance hook for
// typeID, run after all per-field invariants.
func (r *Registry) SetTypeValidator(typeID int, v InstanceValidator) error {
	t, err := r.typeAt(typeID)
	if err != nil {
		return err
	}
	t.Validator = v
	return nil
}

// FindType performs the linear lookup spec.md §4.E calls for.
func (r *Registry) FindType(name string) (int, error) {
	for _, t := range r.types {
		if t.Name == name {
			return t.ID, nil
		}
	}
	return 0, slserr.New(slserr.NotFound, "checkpoint.FindType", "no type registered with that name")
}

// Type returns the registered type at id.
func (r *Registry) Type(id int) (*Type, error) {
	return r.typeAt(id)
}

func (r *Registry) typeAt(id int) (*Type, error) {
	if id < 0 || id >= len(r.types) {
		return nil, slserr.New(slserr.Invalid, "checkpoint.typeAt", "type id out of range")
	}
	return r.types[id], nil
}
