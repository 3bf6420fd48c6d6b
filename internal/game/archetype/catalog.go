package archetype

import (
	"errors"
	"fmt"
)

// ErrUnknownArchetype is returned when an archetype ID is not in the catalog.
var ErrUnknownArchetype = errors.New("unknown archetype")

// Catalog holds all loaded archetypes indexed by ID.
type Catalog struct {
	archetypes map[string]*Archetype
}

// NewCatalog returns an empty Catalog.
//
// Postcondition: all internal maps are initialised.
func NewCatalog() *Catalog {
	return &Catalog{
		archetypes: make(map[string]*Archetype),
	}
}

// Register adds a to the catalog.
//
// Precondition:  a must not be nil.
// Postcondition: Archetype(a.ID) returns (a, true); returns error if a.ID
// already registered.
func (c *Catalog) Register(a *Archetype) error {
	if _, exists := c.archetypes[a.ID]; exists {
		return fmt.Errorf("archetype: Catalog.Register: archetype ID %q already registered", a.ID)
	}
	c.archetypes[a.ID] = a
	return nil
}

// Archetype returns the Archetype for the given id and whether it was found.
//
// Postcondition: ok is true iff the id is registered.
func (c *Catalog) Archetype(id string) (*Archetype, bool) {
	a, ok := c.archetypes[id]
	return a, ok
}

// Require returns the Archetype for the given id or ErrUnknownArchetype.
// Loaders reconstructing saved state use this so a stale reference fails
// loudly instead of silently guessing.
func (c *Catalog) Require(id string) (*Archetype, error) {
	a, ok := c.archetypes[id]
	if !ok {
		return nil, fmt.Errorf("archetype: Catalog.Require: archetype ID %q: %w", id, ErrUnknownArchetype)
	}
	return a, nil
}

// All returns all registered Archetypes in unspecified order.
//
// Postcondition: len(result) == number of registered archetypes.
func (c *Catalog) All() []*Archetype {
	out := make([]*Archetype, 0, len(c.archetypes))
	for _, a := range c.archetypes {
		out = append(out, a)
	}
	return out
}

// LoadCatalog loads every archetype under dir into a fresh Catalog.
//
// Postcondition: the returned catalog holds one Archetype per file; duplicate
// IDs across files are an error.
func LoadCatalog(dir string) (*Catalog, error) {
	archetypes, err := LoadArchetypes(dir)
	if err != nil {
		return nil, err
	}
	c := NewCatalog()
	for _, a := range archetypes {
		if err := c.Register(a); err != nil {
			return nil, err
		}
	}
	return c, nil
}
