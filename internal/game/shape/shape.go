// Package shape defines the polyomino footprints items occupy on an
// inventory grid. A shape is a set of relative cell offsets plus a declared
// rotation count; the distinct orientations are precomputed once at build
// time so placement checks never re-derive geometry.
package shape

import (
	"errors"
	"fmt"
	"sort"
)

// Offset is a cell position relative to a shape's anchor. DX grows to the
// right, DY grows downward. Normalised shapes always include non-negative
// offsets with at least one cell on each zero axis.
type Offset struct {
	DX int
	DY int
}

// Definition is a shape with all of its rotation variants precomputed.
// Variant 0 is the normalised base pattern; variant N is the base rotated
// 90 degrees clockwise N times and re-normalised to the origin.
type Definition struct {
	ID        string
	Rotations int
	variants  [][]Offset
}

// NewDefinition builds a Definition from a base cell pattern.
//
// Precondition:  id is non-empty, rotations is in 1..4, cells is a non-empty
// set of distinct offsets.
// Postcondition: all rotation variants are precomputed and normalised.
func NewDefinition(id string, rotations int, cells []Offset) (*Definition, error) {
	d := &Definition{ID: id, Rotations: rotations}
	if err := d.build(cells); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Definition) build(cells []Offset) error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.Rotations < 1 || d.Rotations > 4 {
		errs = append(errs, fmt.Errorf("Rotations must be in 1..4; got %d", d.Rotations))
	}
	if len(cells) == 0 {
		errs = append(errs, errors.New("Cells must not be empty"))
	}
	seen := make(map[Offset]bool, len(cells))
	for _, c := range cells {
		if seen[c] {
			errs = append(errs, fmt.Errorf("Cells must be distinct; offset (%d,%d) repeats", c.DX, c.DY))
		}
		seen[c] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("shape %q validation failed: %v", d.ID, errs)
	}

	base := normalize(cells)
	d.variants = make([][]Offset, d.Rotations)
	d.variants[0] = base
	for i := 1; i < d.Rotations; i++ {
		d.variants[i] = rotate90(d.variants[i-1])
	}
	return nil
}

// Variant returns the cell offsets for the given rotation index.
//
// Precondition:  rotation is in 0..Rotations-1.
// Postcondition: the returned slice is shared and must not be modified.
func (d *Definition) Variant(rotation int) ([]Offset, error) {
	if rotation < 0 || rotation >= d.Rotations {
		return nil, fmt.Errorf("shape %q: rotation %d outside 0..%d: %w",
			d.ID, rotation, d.Rotations-1, ErrInvalidRotation)
	}
	return d.variants[rotation], nil
}

// RotationCount returns the number of distinct orientations.
func (d *Definition) RotationCount() int {
	return d.Rotations
}

// Size returns the number of cells the shape covers. Rotation never changes
// the cell count, so the base variant is authoritative.
func (d *Definition) Size() int {
	return len(d.variants[0])
}

// normalize shifts offsets so the minimum DX and DY are both zero and sorts
// them row-major for deterministic iteration.
func normalize(cells []Offset) []Offset {
	minDX, minDY := cells[0].DX, cells[0].DY
	for _, c := range cells[1:] {
		if c.DX < minDX {
			minDX = c.DX
		}
		if c.DY < minDY {
			minDY = c.DY
		}
	}
	out := make([]Offset, len(cells))
	for i, c := range cells {
		out[i] = Offset{DX: c.DX - minDX, DY: c.DY - minDY}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DY != out[j].DY {
			return out[i].DY < out[j].DY
		}
		return out[i].DX < out[j].DX
	})
	return out
}

// rotate90 rotates a normalised pattern 90 degrees clockwise. A cell at
// (dx, dy) in a pattern of height h maps to (h-1-dy, dx), which keeps the
// result anchored at the origin.
func rotate90(cells []Offset) []Offset {
	maxDY := 0
	for _, c := range cells {
		if c.DY > maxDY {
			maxDY = c.DY
		}
	}
	out := make([]Offset, len(cells))
	for i, c := range cells {
		out[i] = Offset{DX: maxDY - c.DY, DY: c.DX}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DY != out[j].DY {
			return out[i].DY < out[j].DY
		}
		return out[i].DX < out[j].DX
	})
	return out
}
