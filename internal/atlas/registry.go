package atlas

import (
	"fmt"
	"sync"

	"github.com/abuklea/voxelito/internal/world"
)

// AirName is the reserved material name for empty cells. It always maps
// to id 0 and owns no texture variant.
const AirName = "air"

// MaterialDef declares one logical material and its texture variants.
// Multiple variants share the material name but get distinct ids, so a
// scene can show visual variety within one material.
type MaterialDef struct {
	Name     string
	Variants []string // image file names, relative to the assets dir
}

// Variant is one registered texture variant.
type Variant struct {
	ID   world.MaterialID
	Name string // owning material name
	File string
}

// Registry is the deterministically ordered mapping from material name to
// material ids, built once at startup from declarations and passed by
// reference to every consumer. Ids follow declaration order starting at 1.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	nameToIDs map[string][]world.MaterialID
	variants  []Variant
}

// NewRegistry builds a registry from ordered material declarations.
func NewRegistry(defs []MaterialDef) (*Registry, error) {
	r := &Registry{
		names:     []string{AirName},
		nameToIDs: map[string][]world.MaterialID{AirName: {0}},
	}
	next := world.MaterialID(1)
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("material with empty name")
		}
		if _, exists := r.nameToIDs[def.Name]; exists {
			return nil, fmt.Errorf("duplicate material %q", def.Name)
		}
		if len(def.Variants) == 0 {
			return nil, fmt.Errorf("material %q declares no variants", def.Name)
		}
		ids := make([]world.MaterialID, 0, len(def.Variants))
		for _, file := range def.Variants {
			if int(next) == 0 {
				return nil, fmt.Errorf("material id space exhausted at %q", def.Name)
			}
			r.variants = append(r.variants, Variant{ID: next, Name: def.Name, File: file})
			ids = append(ids, next)
			next++
		}
		r.names = append(r.names, def.Name)
		r.nameToIDs[def.Name] = ids
	}
	return r, nil
}

// IDs returns the material ids registered for a name, or nil.
func (r *Registry) IDs(name string) []world.MaterialID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameToIDs[name]
}

// Names returns all material names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// NameToIDs returns a copy of the full name→ids mapping, in the shape the
// chunk store's scene loader consumes.
func (r *Registry) NameToIDs() map[string][]world.MaterialID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]world.MaterialID, len(r.nameToIDs))
	for name, ids := range r.nameToIDs {
		cp := make([]world.MaterialID, len(ids))
		copy(cp, ids)
		out[name] = cp
	}
	return out
}

// Variants returns all registered texture variants in id order.
func (r *Registry) Variants() []Variant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Variant, len(r.variants))
	copy(out, r.variants)
	return out
}

// removeVariant drops a variant whose source image is missing. The atlas
// build calls this during startup; afterwards the registry is immutable.
func (r *Registry) removeVariant(id world.MaterialID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.variants {
		if v.ID == id {
			ids := r.nameToIDs[v.Name]
			for k, vid := range ids {
				if vid == id {
					r.nameToIDs[v.Name] = append(ids[:k], ids[k+1:]...)
					break
				}
			}
			r.variants = append(r.variants[:i], r.variants[i+1:]...)
			return
		}
	}
}
