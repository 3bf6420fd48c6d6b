package profile

import (
	"fmt"

	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
)

// ItemState is the serialisable pose of one grid item.
type ItemState struct {
	ID          string
	ArchetypeID string
	Col         int
	Row         int
	Rotation    int
}

// SlotState is the serialisable record of one occupied equipment slot.
type SlotState struct {
	Layer       string
	ItemID      string
	ArchetypeID string
}

// Snapshot is the full serialisable state of a profile. Items and slots
// reference archetypes by ID only; the catalog resolves them on restore.
type Snapshot struct {
	UID    string
	Name   string
	Width  int
	Height int
	Items  []ItemState
	Slots  []SlotState
}

// Snapshot captures the profile's current state. Output is deterministic:
// items are ordered row-major by anchor, slots in display order.
func (p *Profile) Snapshot() Snapshot {
	snap := Snapshot{
		UID:    p.UID,
		Name:   p.Name,
		Width:  p.Grid.Width(),
		Height: p.Grid.Height(),
	}
	for _, inst := range p.Grid.GetAllItems() {
		snap.Items = append(snap.Items, ItemState{
			ID:          inst.ID,
			ArchetypeID: inst.Archetype.ID,
			Col:         inst.Anchor.Col,
			Row:         inst.Anchor.Row,
			Rotation:    inst.Rotation,
		})
	}
	for _, slot := range p.Slots.Occupied() {
		snap.Slots = append(snap.Slots, SlotState{
			Layer:       string(slot.Layer),
			ItemID:      slot.Occupant.ItemID,
			ArchetypeID: slot.Occupant.Archetype.ID,
		})
	}
	return snap
}

// Restore rebuilds the profile from a snapshot. Grid items are reinserted
// at their saved pose, falling back to the first open position when the
// saved anchor no longer fits (for example after a grid resize). Slot
// occupants are equipped directly, bypassing the grid.
//
// Precondition:  the profile is empty.
// Postcondition: on success the profile mirrors the snapshot; on error the
// profile may be partially restored and must be discarded.
func (p *Profile) Restore(snap Snapshot) error {
	if p.Grid.Len() > 0 || len(p.Slots.Occupied()) > 0 {
		return fmt.Errorf("profile: Restore: profile %s is not empty", p.UID)
	}

	for _, it := range snap.Items {
		arch, err := p.catalog.Require(it.ArchetypeID)
		if err != nil {
			return fmt.Errorf("profile: Restore: item %s: %w", it.ID, err)
		}
		inst := grid.ItemInstance{
			ID:        it.ID,
			Archetype: arch,
			Anchor:    grid.Cell{Col: it.Col, Row: it.Row},
			Rotation:  it.Rotation,
		}
		if err := p.Grid.InsertItem(inst); err == nil {
			continue
		}
		anchor, rotation, err := p.Grid.FindPlacement(arch.ShapeID, nil)
		if err != nil {
			return fmt.Errorf("profile: Restore: item %s fits nowhere: %w", it.ID, err)
		}
		inst.Anchor = anchor
		inst.Rotation = rotation
		if err := p.Grid.InsertItem(inst); err != nil {
			return fmt.Errorf("profile: Restore: item %s: %w", it.ID, err)
		}
	}

	for _, st := range snap.Slots {
		arch, err := p.catalog.Require(st.ArchetypeID)
		if err != nil {
			return fmt.Errorf("profile: Restore: slot %s occupant %s: %w", st.Layer, st.ItemID, err)
		}
		layer := equipment.Layer(st.Layer)
		if !p.Slots.CanEquip(layer, arch) {
			return fmt.Errorf("profile: Restore: occupant %s is not compatible with layer %q: %w",
				st.ItemID, st.Layer, equipment.ErrIncompatibleLayer)
		}
		if _, err := p.Slots.Equip(layer, st.ItemID, arch); err != nil {
			return fmt.Errorf("profile: Restore: %w", err)
		}
	}

	// Slot occupants were written behind the coordinator's back, so the
	// stats cache must be dropped by hand.
	p.Stats.OnDataChanged()
	return nil
}
