package swap

import "github.com/duskhollow/packrat/internal/game/equipment"

// Listener receives notifications from the coordinator. Callbacks run
// synchronously in registration order and fire only after both stores
// reflect the fully committed mutation; a failed or rolled-back operation
// emits nothing.
type Listener interface {
	// OnItemEquipped fires when an item moves from the grid into an empty
	// slot.
	OnItemEquipped(layer equipment.Layer, occupant equipment.Occupant)
	// OnItemUnequipped fires when a slot occupant returns to the grid.
	OnItemUnequipped(layer equipment.Layer, itemID string)
	// OnItemSwapped fires when an equip displaced the previous occupant
	// back into the grid.
	OnItemSwapped(layer equipment.Layer, oldItemID, newItemID string)
	// OnDataChanged fires after every committed mutation, following the
	// specific notification. Coarse-grained cache invalidation hangs off
	// this.
	OnDataChanged()
}

// Register subscribes l to all coordinator notifications.
//
// Precondition: l is non-nil.
func (c *Coordinator) Register(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Unregister removes a previously registered listener. Listeners that were
// never registered are ignored.
func (c *Coordinator) Unregister(l Listener) {
	for i, reg := range c.listeners {
		if reg == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) notifyEquipped(layer equipment.Layer, occupant equipment.Occupant) {
	for _, l := range c.listeners {
		l.OnItemEquipped(layer, occupant)
	}
}

func (c *Coordinator) notifyUnequipped(layer equipment.Layer, itemID string) {
	for _, l := range c.listeners {
		l.OnItemUnequipped(layer, itemID)
	}
}

func (c *Coordinator) notifySwapped(layer equipment.Layer, oldItemID, newItemID string) {
	for _, l := range c.listeners {
		l.OnItemSwapped(layer, oldItemID, newItemID)
	}
}

func (c *Coordinator) notifyDataChanged() {
	for _, l := range c.listeners {
		l.OnDataChanged()
	}
}
