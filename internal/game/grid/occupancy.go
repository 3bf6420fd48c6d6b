package grid

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is returned when a caller bypasses the
// validate-then-commit discipline: occupying a cell that is out of bounds,
// already owned by another instance, or double-registering an instance.
var ErrInvariantViolation = errors.New("occupancy invariant violation")

// OccupancyStore owns the cell-to-instance mapping for one grid. It performs
// no placement search of its own; callers validate placements first and then
// commit through Occupy. The store still guards each write so a skipped
// validation surfaces as ErrInvariantViolation instead of silent corruption.
type OccupancyStore struct {
	width      int
	height     int
	cells      map[Cell]string
	footprints map[string][]Cell
}

// NewOccupancyStore returns an empty store for a width x height grid.
//
// Precondition:  width and height are positive.
// Postcondition: every cell in [0,width) x [0,height) is free.
func NewOccupancyStore(width, height int) (*OccupancyStore, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("grid: NewOccupancyStore: dimensions must be positive; got %dx%d", width, height)
	}
	return &OccupancyStore{
		width:      width,
		height:     height,
		cells:      make(map[Cell]string),
		footprints: make(map[string][]Cell),
	}, nil
}

// Width returns the grid width in cells.
func (o *OccupancyStore) Width() int {
	return o.width
}

// Height returns the grid height in cells.
func (o *OccupancyStore) Height() int {
	return o.height
}

// InBounds reports whether c lies inside the grid.
func (o *OccupancyStore) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Col < o.width && c.Row >= 0 && c.Row < o.height
}

// CellOwner returns the instance ID occupying c and whether the cell is
// occupied at all.
func (o *OccupancyStore) CellOwner(c Cell) (string, bool) {
	id, ok := o.cells[c]
	return id, ok
}

// OccupiedCells returns the footprint registered for the given instance and
// whether the instance occupies anything.
//
// Postcondition: the returned slice is shared and must not be modified.
func (o *OccupancyStore) OccupiedCells(id string) ([]Cell, bool) {
	cells, ok := o.footprints[id]
	return cells, ok
}

// OccupiedCount returns the number of occupied cells across the whole grid.
func (o *OccupancyStore) OccupiedCount() int {
	return len(o.cells)
}

// Occupy marks every cell in cells as owned by id. The write is atomic: on
// any violation nothing is recorded.
//
// Precondition:  cells were validated free and in bounds by the caller, and
// id holds no prior footprint.
// Postcondition: CellOwner(c) == id for every c in cells, or the store is
// unchanged and an error wrapping ErrInvariantViolation is returned.
func (o *OccupancyStore) Occupy(id string, cells []Cell) error {
	if id == "" {
		return fmt.Errorf("grid: OccupancyStore.Occupy: empty instance ID: %w", ErrInvariantViolation)
	}
	if len(cells) == 0 {
		return fmt.Errorf("grid: OccupancyStore.Occupy: instance %s has empty footprint: %w", id, ErrInvariantViolation)
	}
	if _, exists := o.footprints[id]; exists {
		return fmt.Errorf("grid: OccupancyStore.Occupy: instance %s already occupies the grid: %w", id, ErrInvariantViolation)
	}
	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		if !o.InBounds(c) {
			return fmt.Errorf("grid: OccupancyStore.Occupy: cell %s outside %dx%d grid: %w",
				c, o.width, o.height, ErrInvariantViolation)
		}
		if owner, occupied := o.cells[c]; occupied {
			return fmt.Errorf("grid: OccupancyStore.Occupy: cell %s already owned by %s: %w",
				c, owner, ErrInvariantViolation)
		}
		if seen[c] {
			return fmt.Errorf("grid: OccupancyStore.Occupy: cell %s repeats in footprint: %w", c, ErrInvariantViolation)
		}
		seen[c] = true
	}

	footprint := make([]Cell, len(cells))
	copy(footprint, cells)
	for _, c := range footprint {
		o.cells[c] = id
	}
	o.footprints[id] = footprint
	return nil
}

// Release frees every cell owned by id. Releasing an unknown instance is a
// no-op.
//
// Postcondition: no cell maps to id.
func (o *OccupancyStore) Release(id string) {
	cells, ok := o.footprints[id]
	if !ok {
		return
	}
	for _, c := range cells {
		delete(o.cells, c)
	}
	delete(o.footprints, id)
}
