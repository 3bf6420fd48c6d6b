package equipment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
)

func coatArchetype() *archetype.Archetype {
	return &archetype.Archetype{
		ID:       "wool_coat",
		Name:     "Wool Coat",
		Category: archetype.CategoryClothing,
		ShapeID:  "crate_2x2",
		Layers:   []string{"torso", "back"},
		Warmth:   8,
		Weight:   2.5,
	}
}

func TestNewStoreDefaultLayers(t *testing.T) {
	s := equipment.NewStore()
	assert.Equal(t, equipment.DefaultLayers(), s.Layers())

	for _, layer := range equipment.DefaultLayers() {
		slot, err := s.GetSlot(layer)
		require.NoError(t, err)
		assert.Equal(t, layer, slot.Layer)
		assert.Nil(t, slot.Occupant)
	}
}

func TestNewStoreDeduplicatesLayers(t *testing.T) {
	s := equipment.NewStore(equipment.LayerHead, equipment.LayerHead, equipment.LayerTorso)
	assert.Equal(t, []equipment.Layer{equipment.LayerHead, equipment.LayerTorso}, s.Layers())
}

func TestGetSlotUnknownLayer(t *testing.T) {
	s := equipment.NewStore(equipment.LayerHead)

	_, err := s.GetSlot(equipment.LayerTorso)
	assert.ErrorIs(t, err, equipment.ErrUnknownLayer)
}

func TestGetSlotReturnsCopy(t *testing.T) {
	s := equipment.NewStore(equipment.LayerTorso)
	_, err := s.Equip(equipment.LayerTorso, "item-1", coatArchetype())
	require.NoError(t, err)

	slot, err := s.GetSlot(equipment.LayerTorso)
	require.NoError(t, err)
	slot.Occupant.ItemID = "tampered"

	fresh, err := s.GetSlot(equipment.LayerTorso)
	require.NoError(t, err)
	assert.Equal(t, "item-1", fresh.Occupant.ItemID)
}

func TestEquipReturnsPreviousOccupant(t *testing.T) {
	s := equipment.NewStore(equipment.LayerTorso)

	previous, err := s.Equip(equipment.LayerTorso, "item-1", coatArchetype())
	require.NoError(t, err)
	assert.Nil(t, previous)

	previous, err = s.Equip(equipment.LayerTorso, "item-2", coatArchetype())
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "item-1", previous.ItemID)

	slot, err := s.GetSlot(equipment.LayerTorso)
	require.NoError(t, err)
	assert.Equal(t, "item-2", slot.Occupant.ItemID)
}

func TestEquipUnknownLayer(t *testing.T) {
	s := equipment.NewStore(equipment.LayerHead)

	_, err := s.Equip(equipment.LayerFeet, "item-1", coatArchetype())
	assert.ErrorIs(t, err, equipment.ErrUnknownLayer)
}

func TestUnequip(t *testing.T) {
	s := equipment.NewStore(equipment.LayerTorso)
	_, err := s.Equip(equipment.LayerTorso, "item-1", coatArchetype())
	require.NoError(t, err)

	removed, err := s.Unequip(equipment.LayerTorso)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, "item-1", removed.ItemID)

	slot, err := s.GetSlot(equipment.LayerTorso)
	require.NoError(t, err)
	assert.Nil(t, slot.Occupant)

	removed, err = s.Unequip(equipment.LayerTorso)
	require.NoError(t, err)
	assert.Nil(t, removed, "unequipping an empty slot returns nil")
}

func TestCanEquip(t *testing.T) {
	s := equipment.NewStore(equipment.LayerTorso, equipment.LayerHead)
	coat := coatArchetype()

	assert.True(t, s.CanEquip(equipment.LayerTorso, coat))
	assert.False(t, s.CanEquip(equipment.LayerHead, coat), "coat does not declare the head layer")
	assert.False(t, s.CanEquip(equipment.LayerBack, coat), "layer not in this store")
	assert.False(t, s.CanEquip(equipment.LayerTorso, nil))
}

func TestOccupiedOrder(t *testing.T) {
	s := equipment.NewStore()
	coat := coatArchetype()

	_, err := s.Equip(equipment.LayerBack, "pack-1", coat)
	require.NoError(t, err)
	_, err = s.Equip(equipment.LayerTorso, "coat-1", coat)
	require.NoError(t, err)

	occupied := s.Occupied()
	require.Len(t, occupied, 2)
	assert.Equal(t, equipment.LayerTorso, occupied[0].Layer, "torso precedes back in display order")
	assert.Equal(t, equipment.LayerBack, occupied[1].Layer)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Main Hand", equipment.LayerMainHand.DisplayName())
	assert.Equal(t, "weird", equipment.Layer("weird").DisplayName())
}

// Property: a slot always reflects the most recent equip, and unequip always
// empties it, regardless of the operation sequence.
func TestPropertySlotTracksLastEquip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := equipment.NewStore(equipment.LayerTorso)
		coat := coatArchetype()

		var lastEquipped string
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "equip") {
				id := rapid.StringMatching(`item-[0-9]{1,3}`).Draw(t, "id")
				if _, err := s.Equip(equipment.LayerTorso, id, coat); err != nil {
					t.Fatalf("Equip failed: %v", err)
				}
				lastEquipped = id
			} else {
				if _, err := s.Unequip(equipment.LayerTorso); err != nil {
					t.Fatalf("Unequip failed: %v", err)
				}
				lastEquipped = ""
			}
		}

		slot, err := s.GetSlot(equipment.LayerTorso)
		if err != nil {
			t.Fatalf("GetSlot failed: %v", err)
		}
		if lastEquipped == "" {
			if slot.Occupant != nil {
				t.Fatalf("slot should be empty, holds %q", slot.Occupant.ItemID)
			}
		} else {
			if slot.Occupant == nil || slot.Occupant.ItemID != lastEquipped {
				t.Fatalf("slot should hold %q, got %+v", lastEquipped, slot.Occupant)
			}
		}
	})
}
