// Package equipment tracks the fixed, typed slots a character wears and
// holds items in. Slots do pure occupant bookkeeping; moving items between
// the grid and a slot is the swap coordinator's job.
package equipment

import (
	"errors"
	"fmt"

	"github.com/duskhollow/packrat/internal/game/archetype"
)

// Layer identifies one equipment slot category.
type Layer string

// The layers a default loadout carries, in display order.
const (
	LayerHead     Layer = "head"
	LayerFace     Layer = "face"
	LayerTorso    Layer = "torso"
	LayerHands    Layer = "hands"
	LayerLegs     Layer = "legs"
	LayerFeet     Layer = "feet"
	LayerBack     Layer = "back"
	LayerMainHand Layer = "main_hand"
	LayerOffHand  Layer = "off_hand"
)

// Sentinel errors for slot operations.
var (
	// ErrUnknownLayer is returned when a layer is not part of the store.
	ErrUnknownLayer = errors.New("unknown equipment layer")
	// ErrIncompatibleLayer is returned when an archetype does not declare
	// compatibility with the target layer.
	ErrIncompatibleLayer = errors.New("incompatible equipment layer")
)

// layerDisplayNames maps each default layer to its human-readable name.
var layerDisplayNames = map[Layer]string{
	LayerHead:     "Head",
	LayerFace:     "Face",
	LayerTorso:    "Torso",
	LayerHands:    "Hands",
	LayerLegs:     "Legs",
	LayerFeet:     "Feet",
	LayerBack:     "Back",
	LayerMainHand: "Main Hand",
	LayerOffHand:  "Off Hand",
}

// DisplayName returns the human-readable name for the layer, or the raw
// layer string when no display name is registered.
func (l Layer) DisplayName() string {
	if name, ok := layerDisplayNames[l]; ok {
		return name
	}
	return string(l)
}

// DefaultLayers returns the standard slot set in display order.
func DefaultLayers() []Layer {
	return []Layer{
		LayerHead, LayerFace, LayerTorso, LayerHands, LayerLegs,
		LayerFeet, LayerBack, LayerMainHand, LayerOffHand,
	}
}

// Occupant records the item currently filling a slot. The archetype travels
// with the record because the grid instance no longer exists while the item
// is equipped.
type Occupant struct {
	ItemID    string
	Archetype *archetype.Archetype
}

// Slot is one typed equipment position holding at most one occupant.
type Slot struct {
	Layer    Layer
	Occupant *Occupant
}

// Store is the fixed collection of equipment slots for one character.
type Store struct {
	slots map[Layer]*Slot
	order []Layer
}

// NewStore returns a Store with the given layers, all empty. With no layers
// given, DefaultLayers is used.
//
// Postcondition: GetSlot succeeds for every provided layer.
func NewStore(layers ...Layer) *Store {
	if len(layers) == 0 {
		layers = DefaultLayers()
	}
	s := &Store{
		slots: make(map[Layer]*Slot, len(layers)),
		order: make([]Layer, 0, len(layers)),
	}
	for _, layer := range layers {
		if _, exists := s.slots[layer]; exists {
			continue
		}
		s.slots[layer] = &Slot{Layer: layer}
		s.order = append(s.order, layer)
	}
	return s
}

// Layers returns the store's layers in construction order.
func (s *Store) Layers() []Layer {
	out := make([]Layer, len(s.order))
	copy(out, s.order)
	return out
}

// GetSlot returns a copy of the slot for the given layer. Mutating the copy
// or its occupant has no effect on the store.
//
// Postcondition: returns ErrUnknownLayer if the layer is not part of the
// store.
func (s *Store) GetSlot(layer Layer) (Slot, error) {
	slot, ok := s.slots[layer]
	if !ok {
		return Slot{}, fmt.Errorf("equipment: Store.GetSlot: layer %q: %w", layer, ErrUnknownLayer)
	}
	out := Slot{Layer: slot.Layer}
	if slot.Occupant != nil {
		occ := *slot.Occupant
		out.Occupant = &occ
	}
	return out, nil
}

// CanEquip reports whether the archetype declares compatibility with the
// given layer. Unknown layers and nil archetypes are never compatible.
func (s *Store) CanEquip(layer Layer, arch *archetype.Archetype) bool {
	if arch == nil {
		return false
	}
	if _, ok := s.slots[layer]; !ok {
		return false
	}
	return arch.CompatibleWith(string(layer))
}

// Equip unconditionally overwrites the slot's occupant record and returns
// the previous occupant, or nil if the slot was empty. The grid is never
// touched; compatibility is the caller's responsibility via CanEquip.
//
// Postcondition: the slot holds exactly the given item.
func (s *Store) Equip(layer Layer, itemID string, arch *archetype.Archetype) (*Occupant, error) {
	slot, ok := s.slots[layer]
	if !ok {
		return nil, fmt.Errorf("equipment: Store.Equip: layer %q: %w", layer, ErrUnknownLayer)
	}
	previous := slot.Occupant
	slot.Occupant = &Occupant{ItemID: itemID, Archetype: arch}
	return previous, nil
}

// Unequip clears the slot and returns what was removed, or nil if the slot
// was already empty.
func (s *Store) Unequip(layer Layer) (*Occupant, error) {
	slot, ok := s.slots[layer]
	if !ok {
		return nil, fmt.Errorf("equipment: Store.Unequip: layer %q: %w", layer, ErrUnknownLayer)
	}
	previous := slot.Occupant
	slot.Occupant = nil
	return previous, nil
}

// Occupied returns copies of every slot currently holding an item, in
// construction order.
func (s *Store) Occupied() []Slot {
	var out []Slot
	for _, layer := range s.order {
		slot := s.slots[layer]
		if slot.Occupant == nil {
			continue
		}
		occ := *slot.Occupant
		out = append(out, Slot{Layer: layer, Occupant: &occ})
	}
	return out
}
