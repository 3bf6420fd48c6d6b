package grid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/shape"
)

// Sentinel errors for grid item operations.
var (
	// ErrItemNotFound is returned when an instance ID is not in the store.
	ErrItemNotFound = errors.New("item not found")
	// ErrNoSpaceAvailable is returned when no anchor and rotation
	// combination fits an item into the grid.
	ErrNoSpaceAvailable = errors.New("no space available")
)

// ItemInstance is one physical item sitting in the grid. Exactly one
// instance exists per logical item at any time; an item equipped to a slot
// has no ItemInstance until it returns to the grid.
type ItemInstance struct {
	ID        string
	Archetype *archetype.Archetype
	Anchor    Cell
	Rotation  int
}

// Store is the item-instance registry for one grid, backed by an
// OccupancyStore for cell bookkeeping and a shape.Registry for footprint
// geometry. All mutations keep the occupancy mapping and the instance table
// in lockstep.
type Store struct {
	occupancy *OccupancyStore
	shapes    *shape.Registry
	items     map[string]*ItemInstance
}

// NewStore returns an empty Store over the given occupancy store and shape
// registry.
//
// Precondition:  occupancy and shapes are non-nil.
// Postcondition: the store holds no items.
func NewStore(occupancy *OccupancyStore, shapes *shape.Registry) *Store {
	return &Store{
		occupancy: occupancy,
		shapes:    shapes,
		items:     make(map[string]*ItemInstance),
	}
}

// Width returns the grid width in cells.
func (s *Store) Width() int {
	return s.occupancy.Width()
}

// Height returns the grid height in cells.
func (s *Store) Height() int {
	return s.occupancy.Height()
}

// Len returns the number of items in the grid.
func (s *Store) Len() int {
	return len(s.items)
}

// GetItem returns a copy of the instance with the given id and whether it
// was found. Mutating the copy has no effect on the store.
func (s *Store) GetItem(id string) (ItemInstance, bool) {
	inst, ok := s.items[id]
	if !ok {
		return ItemInstance{}, false
	}
	return *inst, true
}

// ItemAt returns a copy of the instance covering the given cell and whether
// the cell is occupied.
func (s *Store) ItemAt(c Cell) (ItemInstance, bool) {
	id, ok := s.occupancy.CellOwner(c)
	if !ok {
		return ItemInstance{}, false
	}
	return s.GetItem(id)
}

// GetAllItems returns a snapshot of every instance, ordered row-major by
// anchor and then by ID so enumeration is deterministic.
func (s *Store) GetAllItems() []ItemInstance {
	out := make([]ItemInstance, 0, len(s.items))
	for _, inst := range s.items {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Anchor.Row != out[j].Anchor.Row {
			return out[i].Anchor.Row < out[j].Anchor.Row
		}
		if out[i].Anchor.Col != out[j].Anchor.Col {
			return out[i].Anchor.Col < out[j].Anchor.Col
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NormalizeRotation wraps an arbitrary rotation index into the shape's valid
// range. Clients cycling orientations send count without caring that it means
// a return to rotation zero.
func (s *Store) NormalizeRotation(shapeID string, rotation int) (int, error) {
	return s.shapes.Normalize(shapeID, rotation)
}

// CanPlace reports whether the given shape at the given rotation fits at
// anchor: every footprint cell must be in bounds and either free or owned by
// excludeID. Passing the empty string as excludeID excludes nothing. Pure
// query; never mutates the store.
func (s *Store) CanPlace(anchor Cell, shapeID string, rotation int, excludeID string) bool {
	variant, err := s.shapes.Variant(shapeID, rotation)
	if err != nil {
		return false
	}
	for _, off := range variant {
		c := anchor.Offset(off)
		if !s.occupancy.InBounds(c) {
			return false
		}
		if owner, occupied := s.occupancy.CellOwner(c); occupied && owner != excludeID {
			return false
		}
	}
	return true
}

// IsValidPosition reports whether inst would fit at anchor in its current
// rotation, ignoring the cells inst itself occupies. Callers moving or
// rotating an item validate here first, then commit through SetGridPosition
// or SetRotation.
func (s *Store) IsValidPosition(anchor Cell, inst ItemInstance) bool {
	if inst.Archetype == nil {
		return false
	}
	return s.CanPlace(anchor, inst.Archetype.ShapeID, inst.Rotation, inst.ID)
}

// FindPlacement searches for an anchor and rotation that fit the given
// shape. With a preferred anchor only that anchor is tried, across rotations
// in index order. Without one, each rotation scans anchors row-major from
// the top-left; the first fit wins. Pure query; never mutates the store.
//
// Postcondition: returns ErrNoSpaceAvailable if no combination fits.
func (s *Store) FindPlacement(shapeID string, preferred *Cell) (Cell, int, error) {
	count, err := s.shapes.RotationCount(shapeID)
	if err != nil {
		return Cell{}, 0, fmt.Errorf("grid: Store.FindPlacement: %w", err)
	}

	if preferred != nil {
		for rot := 0; rot < count; rot++ {
			if s.CanPlace(*preferred, shapeID, rot, "") {
				return *preferred, rot, nil
			}
		}
		return Cell{}, 0, fmt.Errorf("grid: Store.FindPlacement: no rotation of shape %q fits at %s: %w",
			shapeID, *preferred, ErrNoSpaceAvailable)
	}

	for rot := 0; rot < count; rot++ {
		for row := 0; row < s.occupancy.Height(); row++ {
			for col := 0; col < s.occupancy.Width(); col++ {
				anchor := Cell{Col: col, Row: row}
				if s.CanPlace(anchor, shapeID, rot, "") {
					return anchor, rot, nil
				}
			}
		}
	}
	return Cell{}, 0, fmt.Errorf("grid: Store.FindPlacement: shape %q fits nowhere in %dx%d grid: %w",
		shapeID, s.Width(), s.Height(), ErrNoSpaceAvailable)
}

// AddItem creates a fresh instance of the given archetype and places it in
// the grid. With a preferred anchor only that anchor is tried, across
// rotations in index order; otherwise the first fit from FindPlacement's
// deterministic scan wins.
//
// Postcondition: on success the returned instance is placed and queryable by
// ID; on failure the store is unchanged.
func (s *Store) AddItem(arch *archetype.Archetype, preferred *Cell) (ItemInstance, error) {
	if arch == nil {
		return ItemInstance{}, errors.New("grid: Store.AddItem: archetype must not be nil")
	}
	anchor, rotation, err := s.FindPlacement(arch.ShapeID, preferred)
	if err != nil {
		return ItemInstance{}, err
	}

	inst := &ItemInstance{
		ID:        uuid.New().String(),
		Archetype: arch,
		Anchor:    anchor,
		Rotation:  rotation,
	}
	variant, err := s.shapes.Variant(arch.ShapeID, rotation)
	if err != nil {
		return ItemInstance{}, fmt.Errorf("grid: Store.AddItem: %w", err)
	}
	if err := s.occupancy.Occupy(inst.ID, Footprint(anchor, variant)); err != nil {
		return ItemInstance{}, fmt.Errorf("grid: Store.AddItem: %w", err)
	}
	s.items[inst.ID] = inst
	return *inst, nil
}

// InsertItem places a fully-specified instance at exactly its recorded
// anchor and rotation. Restores after a probe and loads from persistence use
// this to keep instance IDs stable; no placement search happens.
//
// Postcondition: on success GetItem(inst.ID) returns inst; on failure the
// store is unchanged.
func (s *Store) InsertItem(inst ItemInstance) error {
	if inst.ID == "" {
		return errors.New("grid: Store.InsertItem: instance ID must not be empty")
	}
	if inst.Archetype == nil {
		return fmt.Errorf("grid: Store.InsertItem: instance %s has no archetype", inst.ID)
	}
	if _, exists := s.items[inst.ID]; exists {
		return fmt.Errorf("grid: Store.InsertItem: instance %s already in the grid: %w",
			inst.ID, ErrInvariantViolation)
	}
	variant, err := s.shapes.Variant(inst.Archetype.ShapeID, inst.Rotation)
	if err != nil {
		return fmt.Errorf("grid: Store.InsertItem: instance %s: %w", inst.ID, err)
	}
	if !s.CanPlace(inst.Anchor, inst.Archetype.ShapeID, inst.Rotation, "") {
		return fmt.Errorf("grid: Store.InsertItem: instance %s does not fit at %s rotation %d: %w",
			inst.ID, inst.Anchor, inst.Rotation, ErrNoSpaceAvailable)
	}
	if err := s.occupancy.Occupy(inst.ID, Footprint(inst.Anchor, variant)); err != nil {
		return fmt.Errorf("grid: Store.InsertItem: %w", err)
	}
	stored := inst
	s.items[inst.ID] = &stored
	return nil
}

// RemoveItem releases the instance's occupancy and discards it.
//
// Postcondition: on success no cell maps to id and GetItem(id) reports not
// found; returns ErrItemNotFound if id is unknown.
func (s *Store) RemoveItem(id string) error {
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("grid: Store.RemoveItem: instance %s: %w", id, ErrItemNotFound)
	}
	s.occupancy.Release(id)
	delete(s.items, id)
	return nil
}

// SetRotation commits a new rotation for the instance without re-validating
// the pose. Callers must check IsValidPosition first; the occupancy store's
// own guard turns a skipped check into an error instead of corruption, and
// the instance keeps its previous pose in that case.
func (s *Store) SetRotation(id string, rotation int) error {
	inst, ok := s.items[id]
	if !ok {
		return fmt.Errorf("grid: Store.SetRotation: instance %s: %w", id, ErrItemNotFound)
	}
	variant, err := s.shapes.Variant(inst.Archetype.ShapeID, rotation)
	if err != nil {
		return fmt.Errorf("grid: Store.SetRotation: instance %s: %w", id, err)
	}
	if err := s.reoccupy(id, Footprint(inst.Anchor, variant)); err != nil {
		return fmt.Errorf("grid: Store.SetRotation: instance %s: %w", id, err)
	}
	inst.Rotation = rotation
	return nil
}

// SetGridPosition commits a new anchor for the instance without
// re-validating the pose. Callers must check IsValidPosition first; a
// skipped check surfaces as an error and leaves the instance at its previous
// anchor.
func (s *Store) SetGridPosition(id string, anchor Cell) error {
	inst, ok := s.items[id]
	if !ok {
		return fmt.Errorf("grid: Store.SetGridPosition: instance %s: %w", id, ErrItemNotFound)
	}
	variant, err := s.shapes.Variant(inst.Archetype.ShapeID, inst.Rotation)
	if err != nil {
		return fmt.Errorf("grid: Store.SetGridPosition: instance %s: %w", id, err)
	}
	if err := s.reoccupy(id, Footprint(anchor, variant)); err != nil {
		return fmt.Errorf("grid: Store.SetGridPosition: instance %s: %w", id, err)
	}
	inst.Anchor = anchor
	return nil
}

// reoccupy swaps the instance's registered footprint for newCells. On
// failure the previous footprint is restored; the freed cells cannot have
// been taken in between, so the restore never fails.
func (s *Store) reoccupy(id string, newCells []Cell) error {
	oldCells, ok := s.occupancy.OccupiedCells(id)
	if !ok {
		return fmt.Errorf("instance owns no cells: %w", ErrInvariantViolation)
	}
	s.occupancy.Release(id)
	if err := s.occupancy.Occupy(id, newCells); err != nil {
		if rerr := s.occupancy.Occupy(id, oldCells); rerr != nil {
			return fmt.Errorf("restore after failed commit: %v: %w", rerr, err)
		}
		return err
	}
	return nil
}
