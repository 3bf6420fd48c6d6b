package swap_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
	"github.com/duskhollow/packrat/internal/game/shape"
	"github.com/duskhollow/packrat/internal/game/swap"
)

func testShapes(t rapid.TB) *shape.Registry {
	t.Helper()
	r := shape.NewRegistry()

	defs := []struct {
		id        string
		rotations int
		cells     []shape.Offset
	}{
		{"pebble", 1, []shape.Offset{{DX: 0, DY: 0}}},
		{"plank_2x1", 2, []shape.Offset{{DX: 0, DY: 0}, {DX: 1, DY: 0}}},
		{"crate_2x2", 1, []shape.Offset{{DX: 0, DY: 0}, {DX: 1, DY: 0}, {DX: 0, DY: 1}, {DX: 1, DY: 1}}},
		{"bracket", 4, []shape.Offset{{DX: 0, DY: 0}, {DX: 0, DY: 1}, {DX: 1, DY: 1}}},
	}
	for _, d := range defs {
		def, err := shape.NewDefinition(d.id, d.rotations, d.cells)
		if err != nil {
			t.Fatalf("NewDefinition failed: %v", err)
		}
		if err := r.Register(def); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	return r
}

var (
	knitCap = &archetype.Archetype{
		ID: "knit_cap", Name: "Knit Cap", Category: archetype.CategoryClothing,
		ShapeID: "pebble", Layers: []string{"head"}, Warmth: 3, Weight: 0.2,
	}
	lampHelm = &archetype.Archetype{
		ID: "lamp_helm", Name: "Lamp Helm", Category: archetype.CategoryClothing,
		ShapeID: "plank_2x1", Layers: []string{"head"}, Armor: 2, Weight: 1.4,
	}
	fieldPack = &archetype.Archetype{
		ID: "field_pack", Name: "Field Pack", Category: archetype.CategoryClothing,
		ShapeID: "crate_2x2", Layers: []string{"back"}, Weight: 1.1,
	}
	patchKit = &archetype.Archetype{
		ID: "patch_kit", Name: "Patch Kit", Category: archetype.CategoryTool,
		ShapeID: "pebble", Layers: []string{"back"}, Weight: 0.4,
	}
	stone = &archetype.Archetype{
		ID: "stone", Name: "Stone", Category: archetype.CategoryMaterial,
		ShapeID: "pebble", Weight: 0.9,
	}
)

type fixture struct {
	coord *swap.Coordinator
	grid  *grid.Store
	occ   *grid.OccupancyStore
	slots *equipment.Store
}

func newFixture(t testing.TB, width, height int) *fixture {
	t.Helper()
	occ, err := grid.NewOccupancyStore(width, height)
	if err != nil {
		t.Fatalf("NewOccupancyStore failed: %v", err)
	}
	shapes := testShapes(t)
	gridStore := grid.NewStore(occ, shapes)
	slots := equipment.NewStore()
	coord := swap.NewCoordinator(gridStore, slots, shapes, zap.NewNop())
	return &fixture{coord: coord, grid: gridStore, occ: occ, slots: slots}
}

// fingerprint serialises the observable state of both stores so tests can
// assert that failed operations changed nothing.
func (f *fixture) fingerprint() string {
	var b strings.Builder
	for row := 0; row < f.occ.Height(); row++ {
		for col := 0; col < f.occ.Width(); col++ {
			owner, ok := f.occ.CellOwner(grid.Cell{Col: col, Row: row})
			if !ok {
				owner = "."
			}
			fmt.Fprintf(&b, "%s|", owner)
		}
		b.WriteString("\n")
	}
	for _, inst := range f.grid.GetAllItems() {
		fmt.Fprintf(&b, "grid %s %s %s %d\n", inst.ID, inst.Archetype.ID, inst.Anchor, inst.Rotation)
	}
	for _, slot := range f.slots.Occupied() {
		fmt.Fprintf(&b, "slot %s %s %s\n", slot.Layer, slot.Occupant.ItemID, slot.Occupant.Archetype.ID)
	}
	return b.String()
}

// recorder captures coordinator notifications in arrival order.
type recorder struct {
	events []string
}

func (r *recorder) OnItemEquipped(layer equipment.Layer, occupant equipment.Occupant) {
	r.events = append(r.events, fmt.Sprintf("equipped %s %s", layer, occupant.ItemID))
}

func (r *recorder) OnItemUnequipped(layer equipment.Layer, itemID string) {
	r.events = append(r.events, fmt.Sprintf("unequipped %s %s", layer, itemID))
}

func (r *recorder) OnItemSwapped(layer equipment.Layer, oldItemID, newItemID string) {
	r.events = append(r.events, fmt.Sprintf("swapped %s %s %s", layer, oldItemID, newItemID))
}

func (r *recorder) OnDataChanged() {
	r.events = append(r.events, "data-changed")
}

func TestEquipIntoEmptySlot(t *testing.T) {
	f := newFixture(t, 4, 4)
	rec := &recorder{}
	f.coord.Register(rec)

	hat, err := f.grid.AddItem(knitCap, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)

	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))

	_, ok := f.grid.GetItem(hat.ID)
	assert.False(t, ok, "equipped item must leave the grid")
	assert.Equal(t, 0, f.occ.OccupiedCount())

	slot, err := f.slots.GetSlot(equipment.LayerHead)
	require.NoError(t, err)
	require.NotNil(t, slot.Occupant)
	assert.Equal(t, hat.ID, slot.Occupant.ItemID)
	assert.Equal(t, "knit_cap", slot.Occupant.Archetype.ID)

	want := []string{
		fmt.Sprintf("equipped head %s", hat.ID),
		"data-changed",
	}
	assert.Equal(t, want, rec.events)
}

func TestEquipUnknownItem(t *testing.T) {
	f := newFixture(t, 4, 4)

	err := f.coord.Equip("ghost", equipment.LayerHead)
	assert.ErrorIs(t, err, grid.ErrItemNotFound)
}

func TestEquipUnknownLayer(t *testing.T) {
	f := newFixture(t, 4, 4)

	hat, err := f.grid.AddItem(knitCap, nil)
	require.NoError(t, err)

	err = f.coord.Equip(hat.ID, equipment.Layer("tail"))
	assert.ErrorIs(t, err, equipment.ErrUnknownLayer)
}

func TestEquipIncompatibleArchetype(t *testing.T) {
	f := newFixture(t, 4, 4)
	rec := &recorder{}
	f.coord.Register(rec)

	rock, err := f.grid.AddItem(stone, nil)
	require.NoError(t, err)

	before := f.fingerprint()
	err = f.coord.Equip(rock.ID, equipment.LayerHead)
	assert.ErrorIs(t, err, equipment.ErrIncompatibleLayer)
	assert.Equal(t, before, f.fingerprint())
	assert.Empty(t, rec.events, "failed operations emit nothing")
}

func TestEquippedItemCannotBeEquippedAgain(t *testing.T) {
	f := newFixture(t, 4, 4)

	hat, err := f.grid.AddItem(knitCap, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))

	err = f.coord.Equip(hat.ID, equipment.LayerHead)
	assert.ErrorIs(t, err, grid.ErrItemNotFound, "an equipped item has no grid instance")
}

func TestEquipIntoOccupiedSlotSwaps(t *testing.T) {
	f := newFixture(t, 4, 4)
	rec := &recorder{}
	f.coord.Register(rec)

	hat, err := f.grid.AddItem(knitCap, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))
	rec.events = nil

	helm, err := f.grid.AddItem(lampHelm, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	require.Equal(t, 0, helm.Rotation, "horizontal fit expected at the top-left corner")

	require.NoError(t, f.coord.Equip(helm.ID, equipment.LayerHead))

	slot, err := f.slots.GetSlot(equipment.LayerHead)
	require.NoError(t, err)
	require.NotNil(t, slot.Occupant)
	assert.Equal(t, helm.ID, slot.Occupant.ItemID)

	returned, ok := f.grid.GetItem(hat.ID)
	require.True(t, ok, "displaced item keeps its instance ID")
	assert.Equal(t, grid.Cell{Col: 0, Row: 0}, returned.Anchor, "displaced item lands at the vacated anchor")
	assert.Equal(t, 0, returned.Rotation)
	assert.Equal(t, 1, f.grid.Len())

	want := []string{
		fmt.Sprintf("swapped head %s %s", hat.ID, helm.ID),
		"data-changed",
	}
	assert.Equal(t, want, rec.events)
}

func TestSwapDisplacedItemRotatesToFit(t *testing.T) {
	f := newFixture(t, 4, 4)

	helm, err := f.grid.AddItem(lampHelm, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(helm.ID, equipment.LayerHead))

	hat, err := f.grid.AddItem(knitCap, &grid.Cell{Col: 3, Row: 0})
	require.NoError(t, err)

	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))

	returned, ok := f.grid.GetItem(helm.ID)
	require.True(t, ok)
	assert.Equal(t, grid.Cell{Col: 3, Row: 0}, returned.Anchor)
	assert.Equal(t, 1, returned.Rotation, "the horizontal variant pokes out of the grid, so the vertical one must be chosen")

	owner, ok := f.occ.CellOwner(grid.Cell{Col: 3, Row: 1})
	require.True(t, ok)
	assert.Equal(t, helm.ID, owner)
}

func TestSwapRefusedWhenDisplacedItemCannotFit(t *testing.T) {
	f := newFixture(t, 2, 2)
	rec := &recorder{}
	f.coord.Register(rec)

	pack, err := f.grid.AddItem(fieldPack, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(pack.ID, equipment.LayerBack))
	rec.events = nil

	kit, err := f.grid.AddItem(patchKit, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	_, err = f.grid.AddItem(stone, &grid.Cell{Col: 1, Row: 1})
	require.NoError(t, err)

	before := f.fingerprint()
	err = f.coord.Equip(kit.ID, equipment.LayerBack)
	assert.ErrorIs(t, err, swap.ErrNoSpaceForDisplacedItem)

	assert.Equal(t, before, f.fingerprint(), "a refused swap must have zero observable side effects")
	assert.Empty(t, rec.events)

	restored, ok := f.grid.GetItem(kit.ID)
	require.True(t, ok, "the probed item must be restored")
	assert.Equal(t, grid.Cell{Col: 0, Row: 0}, restored.Anchor)

	slot, err := f.slots.GetSlot(equipment.LayerBack)
	require.NoError(t, err)
	require.NotNil(t, slot.Occupant)
	assert.Equal(t, pack.ID, slot.Occupant.ItemID)
}

func TestUnequipReturnsItemToGrid(t *testing.T) {
	f := newFixture(t, 4, 4)
	rec := &recorder{}
	f.coord.Register(rec)

	hat, err := f.grid.AddItem(knitCap, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))
	rec.events = nil

	returned, err := f.coord.Unequip(equipment.LayerHead)
	require.NoError(t, err)
	assert.Equal(t, hat.ID, returned.ID, "the item keeps its instance ID across equip and unequip")
	assert.Equal(t, grid.Cell{Col: 0, Row: 0}, returned.Anchor)

	slot, err := f.slots.GetSlot(equipment.LayerHead)
	require.NoError(t, err)
	assert.Nil(t, slot.Occupant)

	want := []string{
		fmt.Sprintf("unequipped head %s", hat.ID),
		"data-changed",
	}
	assert.Equal(t, want, rec.events)
}

func TestUnequipFindsFirstOpenPosition(t *testing.T) {
	f := newFixture(t, 4, 4)

	_, err := f.grid.AddItem(stone, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	kit, err := f.grid.AddItem(patchKit, &grid.Cell{Col: 1, Row: 0})
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(kit.ID, equipment.LayerBack))

	_, err = f.grid.AddItem(stone, &grid.Cell{Col: 1, Row: 0})
	require.NoError(t, err)

	returned, err := f.coord.Unequip(equipment.LayerBack)
	require.NoError(t, err)
	assert.Equal(t, grid.Cell{Col: 2, Row: 0}, returned.Anchor, "the old anchor is taken, so the scan moves on")
}

func TestUnequipEmptySlot(t *testing.T) {
	f := newFixture(t, 4, 4)

	_, err := f.coord.Unequip(equipment.LayerHead)
	assert.ErrorIs(t, err, swap.ErrSlotEmpty)
}

func TestUnequipUnknownLayer(t *testing.T) {
	f := newFixture(t, 4, 4)

	_, err := f.coord.Unequip(equipment.Layer("tail"))
	assert.ErrorIs(t, err, equipment.ErrUnknownLayer)
}

func TestUnequipWhenInventoryFull(t *testing.T) {
	f := newFixture(t, 1, 1)
	rec := &recorder{}
	f.coord.Register(rec)

	kit, err := f.grid.AddItem(patchKit, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(kit.ID, equipment.LayerBack))
	rec.events = nil

	_, err = f.grid.AddItem(stone, nil)
	require.NoError(t, err)

	before := f.fingerprint()
	_, err = f.coord.Unequip(equipment.LayerBack)
	assert.ErrorIs(t, err, swap.ErrInventoryFull)
	assert.Equal(t, before, f.fingerprint())
	assert.Empty(t, rec.events)
}

func TestAllListenersNotified(t *testing.T) {
	f := newFixture(t, 4, 4)
	first := &recorder{}
	second := &recorder{}
	f.coord.Register(first)
	f.coord.Register(second)

	hat, err := f.grid.AddItem(knitCap, nil)
	require.NoError(t, err)
	require.NoError(t, f.coord.Equip(hat.ID, equipment.LayerHead))

	assert.Equal(t, first.events, second.events)
	assert.Len(t, first.events, 2)
}

// Property: across any sequence of adds, equips, and unequips, failed
// operations never change observable state, every occupied slot holds a
// compatible archetype, and the occupancy map matches the recomputed
// footprints exactly.
func TestPropertyOperationsKeepStoresConsistent(t *testing.T) {
	archetypes := []*archetype.Archetype{knitCap, lampHelm, fieldPack, patchKit, stone}
	layers := []equipment.Layer{equipment.LayerHead, equipment.LayerBack, equipment.LayerTorso}

	rapid.Check(t, func(t *rapid.T) {
		occ, err := grid.NewOccupancyStore(5, 5)
		if err != nil {
			t.Fatalf("NewOccupancyStore failed: %v", err)
		}
		shapes := testShapes(t)
		gridStore := grid.NewStore(occ, shapes)
		slots := equipment.NewStore()
		coord := swap.NewCoordinator(gridStore, slots, shapes, zap.NewNop())
		f := &fixture{coord: coord, grid: gridStore, occ: occ, slots: slots}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			before := f.fingerprint()
			var opErr error
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				arch := rapid.SampledFrom(archetypes).Draw(t, "arch")
				_, opErr = gridStore.AddItem(arch, nil)
			case 1:
				items := gridStore.GetAllItems()
				if len(items) == 0 {
					continue
				}
				item := rapid.SampledFrom(items).Draw(t, "item")
				layer := rapid.SampledFrom(layers).Draw(t, "layer")
				opErr = coord.Equip(item.ID, layer)
			case 2:
				layer := rapid.SampledFrom(layers).Draw(t, "layer")
				_, opErr = coord.Unequip(layer)
			}
			if opErr != nil && f.fingerprint() != before {
				t.Fatalf("failed operation mutated state: %v\nbefore:\n%s\nafter:\n%s", opErr, before, f.fingerprint())
			}
		}

		total := 0
		for _, inst := range gridStore.GetAllItems() {
			variant, verr := shapes.Variant(inst.Archetype.ShapeID, inst.Rotation)
			if verr != nil {
				t.Fatalf("Variant failed: %v", verr)
			}
			for _, c := range grid.Footprint(inst.Anchor, variant) {
				owner, ok := occ.CellOwner(c)
				if !ok || owner != inst.ID {
					t.Fatalf("cell %s should belong to %s, got %q (occupied=%v)", c, inst.ID, owner, ok)
				}
				total++
			}
		}
		if occ.OccupiedCount() != total {
			t.Fatalf("OccupiedCount() = %d, want %d", occ.OccupiedCount(), total)
		}

		for _, slot := range slots.Occupied() {
			if slot.Occupant.Archetype == nil || !slot.Occupant.Archetype.CompatibleWith(string(slot.Layer)) {
				t.Fatalf("slot %s holds incompatible occupant %+v", slot.Layer, slot.Occupant)
			}
		}
	})
}
