package shape

import (
	"errors"
	"fmt"
)

// Sentinel errors for shape lookups.
var (
	// ErrUnknownShape is returned when a shape ID is not registered.
	ErrUnknownShape = errors.New("unknown shape")
	// ErrInvalidRotation is returned when a rotation index is outside the
	// shape's declared range.
	ErrInvalidRotation = errors.New("invalid rotation")
)

// Registry holds all loaded shape definitions indexed by ID.
type Registry struct {
	shapes map[string]*Definition
}

// NewRegistry returns an empty Registry.
//
// Postcondition: all internal maps are initialised.
func NewRegistry() *Registry {
	return &Registry{
		shapes: make(map[string]*Definition),
	}
}

// Register adds d to the registry.
//
// Precondition:  d must not be nil.
// Postcondition: Definition(d.ID) returns (d, true); returns error if d.ID
// already registered.
func (r *Registry) Register(d *Definition) error {
	if _, exists := r.shapes[d.ID]; exists {
		return fmt.Errorf("shape: Registry.Register: shape ID %q already registered", d.ID)
	}
	r.shapes[d.ID] = d
	return nil
}

// Definition returns the Definition for the given id and whether it was found.
//
// Postcondition: ok is true iff the id is registered.
func (r *Registry) Definition(id string) (*Definition, bool) {
	d, ok := r.shapes[id]
	return d, ok
}

// Variant returns the cell offsets for the given shape at the given rotation.
//
// Postcondition: the returned slice is shared and must not be modified.
func (r *Registry) Variant(id string, rotation int) ([]Offset, error) {
	d, ok := r.shapes[id]
	if !ok {
		return nil, fmt.Errorf("shape: Registry.Variant: shape ID %q: %w", id, ErrUnknownShape)
	}
	return d.Variant(rotation)
}

// RotationCount returns the number of distinct orientations for the given shape.
func (r *Registry) RotationCount(id string) (int, error) {
	d, ok := r.shapes[id]
	if !ok {
		return 0, fmt.Errorf("shape: Registry.RotationCount: shape ID %q: %w", id, ErrUnknownShape)
	}
	return d.Rotations, nil
}

// Normalize maps an arbitrary rotation index into the shape's valid range by
// wrapping modulo the rotation count. Callers cycling through orientations use
// this to step from the last variant back to the first.
func (r *Registry) Normalize(id string, rotation int) (int, error) {
	d, ok := r.shapes[id]
	if !ok {
		return 0, fmt.Errorf("shape: Registry.Normalize: shape ID %q: %w", id, ErrUnknownShape)
	}
	n := rotation % d.Rotations
	if n < 0 {
		n += d.Rotations
	}
	return n, nil
}

// All returns all registered Definitions in unspecified order.
//
// Postcondition: len(result) == number of registered shapes.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, 0, len(r.shapes))
	for _, d := range r.shapes {
		out = append(out, d)
	}
	return out
}
