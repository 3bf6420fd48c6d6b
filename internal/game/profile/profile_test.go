package profile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
	"github.com/duskhollow/packrat/internal/game/profile"
	"github.com/duskhollow/packrat/internal/game/shape"
)

func testShapes(t *testing.T) *shape.Registry {
	t.Helper()
	r := shape.NewRegistry()
	defs := []struct {
		id        string
		rotations int
		cells     []shape.Offset
	}{
		{"pebble", 1, []shape.Offset{{DX: 0, DY: 0}}},
		{"plank_2x1", 2, []shape.Offset{{DX: 0, DY: 0}, {DX: 1, DY: 0}}},
	}
	for _, d := range defs {
		def, err := shape.NewDefinition(d.id, d.rotations, d.cells)
		require.NoError(t, err)
		require.NoError(t, r.Register(def))
	}
	return r
}

func testCatalog(t *testing.T) *archetype.Catalog {
	t.Helper()
	c := archetype.NewCatalog()
	archetypes := []*archetype.Archetype{
		{ID: "knit_cap", Name: "Knit Cap", Category: archetype.CategoryClothing,
			ShapeID: "pebble", Layers: []string{"head"}, Warmth: 3, Weight: 0.2},
		{ID: "walking_staff", Name: "Walking Staff", Category: archetype.CategoryWeapon,
			ShapeID: "plank_2x1", Layers: []string{"main_hand"}, Weight: 1.8},
		{ID: "stone", Name: "Stone", Category: archetype.CategoryMaterial,
			ShapeID: "pebble", Weight: 0.9},
	}
	for _, a := range archetypes {
		require.NoError(t, a.Validate())
		require.NoError(t, c.Register(a))
	}
	return c
}

func newManager(t *testing.T, width, height int) *profile.Manager {
	t.Helper()
	m, err := profile.NewManager(testShapes(t), testCatalog(t), width, height, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestNewManagerRejectsBadDimensions(t *testing.T) {
	_, err := profile.NewManager(testShapes(t), testCatalog(t), 0, 4, zap.NewNop())
	assert.Error(t, err)
}

func TestCreateProfileAndLookup(t *testing.T) {
	m := newManager(t, 4, 4)

	p, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", p.UID)
	assert.Equal(t, 4, p.Grid.Width())

	got, ok := m.Profile("uid-1")
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 1, m.Count())
}

func TestCreateProfileGeneratesUID(t *testing.T) {
	m := newManager(t, 4, 4)

	p, err := m.CreateProfile("", "Drifter")
	require.NoError(t, err)
	assert.NotEmpty(t, p.UID)
}

func TestCreateProfileDuplicate(t *testing.T) {
	m := newManager(t, 4, 4)

	_, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)
	_, err = m.CreateProfile("uid-1", "Imposter")
	assert.Error(t, err)
}

func TestGetOrCreate(t *testing.T) {
	m := newManager(t, 4, 4)

	p1, err := m.GetOrCreate("uid-1", "Hollis")
	require.NoError(t, err)
	p2, err := m.GetOrCreate("uid-1", "Ignored")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.Equal(t, "Hollis", p2.Name)
}

func TestRemoveProfile(t *testing.T) {
	m := newManager(t, 4, 4)

	_, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)
	require.NoError(t, m.RemoveProfile("uid-1"))

	_, ok := m.Profile("uid-1")
	assert.False(t, ok)

	assert.Error(t, m.RemoveProfile("uid-1"))
}

func buildPopulatedProfile(t *testing.T, m *profile.Manager) *profile.Profile {
	t.Helper()
	p, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)

	catalog := testCatalog(t)
	hatArch, err := catalog.Require("knit_cap")
	require.NoError(t, err)
	staffArch, err := catalog.Require("walking_staff")
	require.NoError(t, err)
	stoneArch, err := catalog.Require("stone")
	require.NoError(t, err)

	hat, err := p.Grid.AddItem(hatArch, &grid.Cell{Col: 0, Row: 0})
	require.NoError(t, err)
	require.NoError(t, p.Coordinator.Equip(hat.ID, equipment.LayerHead))

	_, err = p.Grid.AddItem(stoneArch, &grid.Cell{Col: 2, Row: 2})
	require.NoError(t, err)
	staff, err := p.Grid.AddItem(staffArch, &grid.Cell{Col: 3, Row: 0})
	require.NoError(t, err)
	require.Equal(t, 1, staff.Rotation, "staff should stand upright against the right edge")
	return p
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := newManager(t, 4, 4)
	p := buildPopulatedProfile(t, m)

	snap := p.Snapshot()
	require.Len(t, snap.Items, 2)
	require.Len(t, snap.Slots, 1)
	assert.Equal(t, 4, snap.Width)

	restored, err := m.CreateProfile("uid-2", "Copy")
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))

	got := restored.Snapshot()
	assert.Equal(t, snap.Items, got.Items)
	assert.Equal(t, snap.Slots, got.Slots)

	totals := restored.Stats.Totals()
	assert.Equal(t, 1, totals.Pieces)
	assert.Equal(t, 3, totals.Warmth)
}

func TestRestoreFallsBackWhenAnchorUnavailable(t *testing.T) {
	big := newManager(t, 4, 4)
	p := buildPopulatedProfile(t, big)
	snap := p.Snapshot()

	small := newManager(t, 2, 2)
	restored, err := small.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)
	require.NoError(t, restored.Restore(snap))

	items := restored.Grid.GetAllItems()
	require.Len(t, items, 2, "every item must land somewhere in the smaller grid")
	for _, inst := range items {
		assert.True(t, inst.Anchor.Col < 2 && inst.Anchor.Row < 2)
	}
}

func TestRestoreUnknownArchetype(t *testing.T) {
	m := newManager(t, 4, 4)
	p, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)

	err = p.Restore(profile.Snapshot{
		UID:   "uid-1",
		Items: []profile.ItemState{{ID: "x", ArchetypeID: "ghost", Col: 0, Row: 0}},
	})
	assert.ErrorIs(t, err, archetype.ErrUnknownArchetype)
}

func TestRestoreRejectsNonEmptyProfile(t *testing.T) {
	m := newManager(t, 4, 4)
	p := buildPopulatedProfile(t, m)

	err := p.Restore(profile.Snapshot{UID: "uid-1"})
	assert.Error(t, err)
}

func TestRestoreRejectsIncompatibleSlotRecord(t *testing.T) {
	m := newManager(t, 4, 4)
	p, err := m.CreateProfile("uid-1", "Hollis")
	require.NoError(t, err)

	err = p.Restore(profile.Snapshot{
		UID:   "uid-1",
		Slots: []profile.SlotState{{Layer: "head", ItemID: "x", ArchetypeID: "stone"}},
	})
	assert.ErrorIs(t, err, equipment.ErrIncompatibleLayer)
}
