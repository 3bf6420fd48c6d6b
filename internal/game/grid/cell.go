// Package grid implements the 2D inventory surface: cell-level occupancy
// bookkeeping, placement validation against bounds and existing occupants,
// and the item-instance store that owns everything placed on the grid.
package grid

import (
	"fmt"

	"github.com/duskhollow/packrat/internal/game/shape"
)

// Cell is an absolute grid coordinate. Col grows to the right, Row grows
// downward; (0,0) is the top-left corner.
type Cell struct {
	Col int
	Row int
}

// Offset returns the cell displaced from c by the given shape offset.
func (c Cell) Offset(o shape.Offset) Cell {
	return Cell{Col: c.Col + o.DX, Row: c.Row + o.DY}
}

// String renders the cell as "(col,row)" for error messages and logs.
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Col, c.Row)
}

// Footprint expands a shape variant into the absolute cells it covers when
// anchored at anchor.
//
// Postcondition: len(result) == len(offsets).
func Footprint(anchor Cell, offsets []shape.Offset) []Cell {
	cells := make([]Cell, len(offsets))
	for i, o := range offsets {
		cells[i] = anchor.Offset(o)
	}
	return cells
}
