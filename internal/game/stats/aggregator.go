// Package stats derives character totals from the currently equipped items.
package stats

import (
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/swap"
)

// Totals is the sum of the stat contributions of every equipped item.
type Totals struct {
	Armor  int
	Warmth int
	Weight float64
	Pieces int
}

// Aggregator computes equipped-item totals lazily and caches the result
// until the coordinator reports a change. Register it on the coordinator
// whose slot store it reads.
type Aggregator struct {
	slots  *equipment.Store
	cached *Totals
}

var _ swap.Listener = (*Aggregator)(nil)

// NewAggregator returns an Aggregator over the given slot store.
//
// Precondition: slots is non-nil.
func NewAggregator(slots *equipment.Store) *Aggregator {
	return &Aggregator{slots: slots}
}

// Totals returns the current equipped totals, recomputing them only when a
// mutation invalidated the cache since the last call.
func (a *Aggregator) Totals() Totals {
	if a.cached == nil {
		t := a.compute()
		a.cached = &t
	}
	return *a.cached
}

func (a *Aggregator) compute() Totals {
	var t Totals
	for _, slot := range a.slots.Occupied() {
		arch := slot.Occupant.Archetype
		if arch == nil {
			continue
		}
		t.Armor += arch.Armor
		t.Warmth += arch.Warmth
		t.Weight += arch.Weight
		t.Pieces++
	}
	return t
}

// OnItemEquipped is a no-op; invalidation rides OnDataChanged.
func (a *Aggregator) OnItemEquipped(equipment.Layer, equipment.Occupant) {}

// OnItemUnequipped is a no-op; invalidation rides OnDataChanged.
func (a *Aggregator) OnItemUnequipped(equipment.Layer, string) {}

// OnItemSwapped is a no-op; invalidation rides OnDataChanged.
func (a *Aggregator) OnItemSwapped(equipment.Layer, string, string) {}

// OnDataChanged drops the cached totals so the next Totals call recomputes.
func (a *Aggregator) OnDataChanged() {
	a.cached = nil
}
