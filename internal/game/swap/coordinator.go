// Package swap orchestrates moving items between the inventory grid and the
// equipment slots. Every operation is atomic from the caller's point of
// view: an equip that would displace an item commits only after the
// displaced item is proven to fit back into the grid, and any mid-commit
// failure unwinds in reverse order.
package swap

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
	"github.com/duskhollow/packrat/internal/game/shape"
)

// Sentinel errors for coordinator operations.
var (
	// ErrNoSpaceForDisplacedItem is returned when no rotation of a slot's
	// current occupant fits at the anchor the incoming item would vacate.
	ErrNoSpaceForDisplacedItem = errors.New("no space for displaced item")
	// ErrInventoryFull is returned when an unequipped item has nowhere to
	// go in the grid.
	ErrInventoryFull = errors.New("inventory full")
	// ErrSlotEmpty is returned when unequipping a layer that holds nothing.
	ErrSlotEmpty = errors.New("slot is empty")
)

// Coordinator sequences equip, unequip, and swap operations across one grid
// store and one slot store. It owns no persistent state of its own and
// leaves both stores consistent after every call, including failure paths.
// Operations are synchronous and assume a single caller at a time.
type Coordinator struct {
	grid      *grid.Store
	slots     *equipment.Store
	shapes    *shape.Registry
	logger    *zap.Logger
	listeners []Listener
}

// NewCoordinator returns a Coordinator over the given stores.
//
// Precondition: all arguments are non-nil.
func NewCoordinator(gridStore *grid.Store, slots *equipment.Store, shapes *shape.Registry, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		grid:   gridStore,
		slots:  slots,
		shapes: shapes,
		logger: logger,
	}
}

// Equip moves the grid item with the given ID into the target layer. An
// occupied layer triggers a swap: the current occupant must fit back into
// the grid at the anchor the incoming item vacates, in some rotation, or the
// whole operation is refused with no observable side effects.
//
// Postcondition: on success the slot holds the item and the item's grid
// instance is gone; on failure both stores are unchanged.
func (c *Coordinator) Equip(itemID string, layer equipment.Layer) error {
	inst, ok := c.grid.GetItem(itemID)
	if !ok {
		return fmt.Errorf("swap: Coordinator.Equip: instance %s: %w", itemID, grid.ErrItemNotFound)
	}
	slot, err := c.slots.GetSlot(layer)
	if err != nil {
		return fmt.Errorf("swap: Coordinator.Equip: %w", err)
	}
	if !c.slots.CanEquip(layer, inst.Archetype) {
		return fmt.Errorf("swap: Coordinator.Equip: archetype %q cannot occupy layer %q: %w",
			inst.Archetype.ID, layer, equipment.ErrIncompatibleLayer)
	}
	if slot.Occupant != nil {
		return c.swap(inst, layer, *slot.Occupant)
	}

	if err := c.grid.RemoveItem(itemID); err != nil {
		return fmt.Errorf("swap: Coordinator.Equip: %w", err)
	}
	if _, err := c.slots.Equip(layer, inst.ID, inst.Archetype); err != nil {
		if rerr := c.grid.InsertItem(inst); rerr != nil {
			c.logger.Error("critical: item lost between grid and slot",
				zap.String("item", inst.ID),
				zap.String("layer", string(layer)),
				zap.Error(rerr))
		}
		return fmt.Errorf("swap: Coordinator.Equip: %w", err)
	}

	c.logger.Debug("item equipped",
		zap.String("item", inst.ID),
		zap.String("archetype", inst.Archetype.ID),
		zap.String("layer", string(layer)))
	c.notifyEquipped(layer, equipment.Occupant{ItemID: inst.ID, Archetype: inst.Archetype})
	c.notifyDataChanged()
	return nil
}

// swap equips inst into a layer still holding displaced. The displaced item
// must be proven to fit at inst's current anchor before anything commits.
func (c *Coordinator) swap(inst grid.ItemInstance, layer equipment.Layer, displaced equipment.Occupant) error {
	// Probe with restore. The displaced item's fit depends on inst being
	// gone, so remove it, test every rotation at the vacated anchor, and
	// put it back before acting on the result.
	if err := c.grid.RemoveItem(inst.ID); err != nil {
		return fmt.Errorf("swap: Coordinator.swap: probe removal: %w", err)
	}
	fit, probeErr := c.probeDisplacedFit(inst.Anchor, displaced)
	if err := c.grid.InsertItem(inst); err != nil {
		c.logger.Error("critical: could not restore item after probe",
			zap.String("item", inst.ID),
			zap.Error(err))
		return fmt.Errorf("swap: Coordinator.swap: restore after probe: %w", err)
	}
	if probeErr != nil {
		return probeErr
	}

	// Commit. The four steps below run only because the probe proved the
	// final placement will succeed.
	if err := c.grid.RemoveItem(inst.ID); err != nil {
		return fmt.Errorf("swap: Coordinator.swap: %w", err)
	}
	if _, err := c.slots.Unequip(layer); err != nil {
		if rerr := c.grid.InsertItem(inst); rerr != nil {
			c.logger.Error("critical: could not restore item after failed unequip",
				zap.String("item", inst.ID),
				zap.Error(rerr))
		}
		return fmt.Errorf("swap: Coordinator.swap: %w", err)
	}
	if _, err := c.slots.Equip(layer, inst.ID, inst.Archetype); err != nil {
		c.rollbackSwap(inst, layer, displaced)
		return fmt.Errorf("swap: Coordinator.swap: %w", err)
	}
	returned := grid.ItemInstance{
		ID:        displaced.ItemID,
		Archetype: displaced.Archetype,
		Anchor:    inst.Anchor,
		Rotation:  fit,
	}
	if err := c.grid.InsertItem(returned); err != nil {
		// Should be unreachable under the single-caller contract since
		// the probe just proved this placement.
		c.rollbackSwap(inst, layer, displaced)
		return fmt.Errorf("swap: Coordinator.swap: placing displaced item %s: %w", displaced.ItemID, err)
	}

	c.logger.Debug("items swapped",
		zap.String("equipped", inst.ID),
		zap.String("displaced", displaced.ItemID),
		zap.String("layer", string(layer)),
		zap.Int("displaced_rotation", fit))
	c.notifySwapped(layer, displaced.ItemID, inst.ID)
	c.notifyDataChanged()
	return nil
}

// probeDisplacedFit finds the first rotation of the displaced occupant that
// fits at anchor. The caller has already removed the incoming item, so the
// test runs against the vacated cells with all other occupants in place.
func (c *Coordinator) probeDisplacedFit(anchor grid.Cell, displaced equipment.Occupant) (int, error) {
	if displaced.Archetype == nil {
		return 0, fmt.Errorf("swap: Coordinator.swap: displaced occupant %s carries no archetype", displaced.ItemID)
	}
	count, err := c.shapes.RotationCount(displaced.Archetype.ShapeID)
	if err != nil {
		return 0, fmt.Errorf("swap: Coordinator.swap: %w", err)
	}
	for rot := 0; rot < count; rot++ {
		if c.grid.CanPlace(anchor, displaced.Archetype.ShapeID, rot, "") {
			return rot, nil
		}
	}
	return 0, fmt.Errorf("swap: Coordinator.swap: no rotation of %q fits at %s: %w",
		displaced.Archetype.ShapeID, anchor, ErrNoSpaceForDisplacedItem)
}

// rollbackSwap unwinds a partially committed swap in reverse order: clear
// the slot, re-equip the displaced occupant, and reinsert inst at its
// original pose, falling back to any open position. Failures here mean the
// stores could not be reconciled and are logged as critical integrity
// faults.
func (c *Coordinator) rollbackSwap(inst grid.ItemInstance, layer equipment.Layer, displaced equipment.Occupant) {
	if _, err := c.slots.Unequip(layer); err != nil {
		c.logger.Error("critical: rollback could not clear slot",
			zap.String("layer", string(layer)),
			zap.Error(err))
	}
	if _, err := c.slots.Equip(layer, displaced.ItemID, displaced.Archetype); err != nil {
		c.logger.Error("critical: rollback could not re-equip displaced item",
			zap.String("item", displaced.ItemID),
			zap.String("layer", string(layer)),
			zap.Error(err))
	}
	if err := c.grid.InsertItem(inst); err == nil {
		return
	}
	anchor, rotation, err := c.grid.FindPlacement(inst.Archetype.ShapeID, nil)
	if err != nil {
		c.logger.Error("critical: rollback lost item, no open position remains",
			zap.String("item", inst.ID),
			zap.Error(err))
		return
	}
	inst.Anchor = anchor
	inst.Rotation = rotation
	if err := c.grid.InsertItem(inst); err != nil {
		c.logger.Error("critical: rollback lost item",
			zap.String("item", inst.ID),
			zap.Error(err))
	}
}

// Unequip clears the layer and returns its occupant to the grid at the
// first open position. Unlike a swap there is no same-space obligation; any
// free spot is acceptable.
//
// Postcondition: on success the returned instance is placed in the grid and
// the slot is empty; on failure both stores are unchanged.
func (c *Coordinator) Unequip(layer equipment.Layer) (grid.ItemInstance, error) {
	slot, err := c.slots.GetSlot(layer)
	if err != nil {
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: %w", err)
	}
	if slot.Occupant == nil {
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: layer %q: %w", layer, ErrSlotEmpty)
	}
	occ := *slot.Occupant
	if occ.Archetype == nil {
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: occupant %s carries no archetype", occ.ItemID)
	}

	// Capacity is proven before the slot is touched.
	anchor, rotation, err := c.grid.FindPlacement(occ.Archetype.ShapeID, nil)
	if err != nil {
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: no room for %s: %w",
			occ.ItemID, ErrInventoryFull)
	}
	inst := grid.ItemInstance{
		ID:        occ.ItemID,
		Archetype: occ.Archetype,
		Anchor:    anchor,
		Rotation:  rotation,
	}
	if _, err := c.slots.Unequip(layer); err != nil {
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: %w", err)
	}
	if err := c.grid.InsertItem(inst); err != nil {
		if _, rerr := c.slots.Equip(layer, occ.ItemID, occ.Archetype); rerr != nil {
			c.logger.Error("critical: could not restore slot after failed unequip",
				zap.String("item", occ.ItemID),
				zap.String("layer", string(layer)),
				zap.Error(rerr))
		}
		return grid.ItemInstance{}, fmt.Errorf("swap: Coordinator.Unequip: %w", err)
	}

	c.logger.Debug("item unequipped",
		zap.String("item", occ.ItemID),
		zap.String("layer", string(layer)),
		zap.String("anchor", anchor.String()))
	c.notifyUnequipped(layer, occ.ItemID)
	c.notifyDataChanged()
	return inst, nil
}
