package postgres_test

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/duskhollow/packrat/internal/game/profile"
	"github.com/duskhollow/packrat/internal/storage/postgres"
	"github.com/duskhollow/packrat/internal/testutil"
)

func uniqueUID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func setupLoadoutRepo(t *testing.T) *postgres.LoadoutRepository {
	t.Helper()
	pool := testutil.NewPool(t)
	return postgres.NewLoadoutRepository(pool)
}

func sampleSnapshot(uid string) profile.Snapshot {
	return profile.Snapshot{
		UID:    uid,
		Name:   "Mule",
		Width:  10,
		Height: 6,
		Items: []profile.ItemState{
			{ID: "item-a", ArchetypeID: "knit_cap", Col: 0, Row: 0, Rotation: 0},
			{ID: "item-b", ArchetypeID: "walking_staff", Col: 3, Row: 0, Rotation: 1},
		},
		Slots: []profile.SlotState{
			{Layer: "head", ItemID: "item-c", ArchetypeID: "lamp_helm"},
		},
	}
}

func TestLoadoutRepository_SaveAndLoad(t *testing.T) {
	repo := setupLoadoutRepo(t)
	ctx := context.Background()

	snap := sampleSnapshot(uniqueUID("loadout"))
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Load(ctx, snap.UID)
	require.NoError(t, err)

	assert.Equal(t, snap.UID, loaded.UID)
	assert.Equal(t, "Mule", loaded.Name)
	assert.Equal(t, 10, loaded.Width)
	assert.Equal(t, 6, loaded.Height)
	assert.Equal(t, snap.Items, loaded.Items)
	assert.Equal(t, snap.Slots, loaded.Slots)
}

func TestLoadoutRepository_SaveOverwritesPrevious(t *testing.T) {
	repo := setupLoadoutRepo(t)
	ctx := context.Background()

	snap := sampleSnapshot(uniqueUID("loadout"))
	require.NoError(t, repo.Save(ctx, snap))

	snap.Name = "Mule II"
	snap.Items = []profile.ItemState{
		{ID: "item-z", ArchetypeID: "field_pack", Col: 1, Row: 1, Rotation: 0},
	}
	snap.Slots = nil
	require.NoError(t, repo.Save(ctx, snap))

	loaded, err := repo.Load(ctx, snap.UID)
	require.NoError(t, err)

	assert.Equal(t, "Mule II", loaded.Name)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "item-z", loaded.Items[0].ID)
	assert.Empty(t, loaded.Slots)
}

func TestLoadoutRepository_SaveEmptyUID(t *testing.T) {
	// The UID guard fires before any query, so no database is needed.
	repo := postgres.NewLoadoutRepository(nil)
	err := repo.Save(context.Background(), profile.Snapshot{Width: 4, Height: 4})
	require.Error(t, err)
}

func TestLoadoutRepository_LoadNotFound(t *testing.T) {
	repo := setupLoadoutRepo(t)
	_, err := repo.Load(context.Background(), uniqueUID("missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, postgres.ErrLoadoutNotFound)
}

func TestLoadoutRepository_Delete(t *testing.T) {
	repo := setupLoadoutRepo(t)
	ctx := context.Background()

	snap := sampleSnapshot(uniqueUID("loadout"))
	require.NoError(t, repo.Save(ctx, snap))
	require.NoError(t, repo.Delete(ctx, snap.UID))

	_, err := repo.Load(ctx, snap.UID)
	assert.ErrorIs(t, err, postgres.ErrLoadoutNotFound)

	err = repo.Delete(ctx, snap.UID)
	assert.ErrorIs(t, err, postgres.ErrLoadoutNotFound)
}

func TestLoadoutRepository_List(t *testing.T) {
	repo := setupLoadoutRepo(t)
	ctx := context.Background()

	first := sampleSnapshot(uniqueUID("loadout"))
	second := sampleSnapshot(uniqueUID("loadout"))
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	uids, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, uids, first.UID)
	assert.Contains(t, uids, second.UID)
}

// TestLoadoutRepository_Property_SaveThenLoadRoundTrip verifies that any valid
// snapshot survives a save/load cycle with its items and slots intact. One pool
// is shared across iterations; each iteration writes under a fresh UID.
func TestLoadoutRepository_Property_SaveThenLoadRoundTrip(t *testing.T) {
	pool := testutil.NewPool(t)
	repo := postgres.NewLoadoutRepository(pool)
	ctx := context.Background()

	layers := []string{"head", "torso", "hands", "feet", "back"}

	rapid.Check(t, func(rt *rapid.T) {
		width := rapid.IntRange(1, 12).Draw(rt, "width")
		height := rapid.IntRange(1, 12).Draw(rt, "height")

		snap := profile.Snapshot{
			UID:    uniqueUID("prop"),
			Name:   rapid.StringMatching(`[A-Za-z ]{0,16}`).Draw(rt, "name"),
			Width:  width,
			Height: height,
		}

		itemCount := rapid.IntRange(0, 5).Draw(rt, "items")
		for i := 0; i < itemCount; i++ {
			snap.Items = append(snap.Items, profile.ItemState{
				ID:          fmt.Sprintf("it-%d", i),
				ArchetypeID: rapid.SampledFrom([]string{"knit_cap", "field_pack", "walking_staff"}).Draw(rt, "archetype"),
				Col:         rapid.IntRange(0, width-1).Draw(rt, "col"),
				Row:         rapid.IntRange(0, height-1).Draw(rt, "row"),
				Rotation:    rapid.IntRange(0, 3).Draw(rt, "rotation"),
			})
		}

		slotLayers := rapid.SliceOfNDistinct(rapid.SampledFrom(layers), 0, len(layers),
			func(s string) string { return s }).Draw(rt, "layers")
		sort.Strings(slotLayers)
		for i, layer := range slotLayers {
			snap.Slots = append(snap.Slots, profile.SlotState{
				Layer:       layer,
				ItemID:      fmt.Sprintf("sl-%d", i),
				ArchetypeID: "knit_cap",
			})
		}

		require.NoError(t, repo.Save(ctx, snap))

		loaded, err := repo.Load(ctx, snap.UID)
		require.NoError(t, err)

		assert.Equal(t, snap.UID, loaded.UID)
		assert.Equal(t, snap.Name, loaded.Name)
		assert.Equal(t, width, loaded.Width)
		assert.Equal(t, height, loaded.Height)
		assert.ElementsMatch(t, snap.Items, loaded.Items)
		assert.ElementsMatch(t, snap.Slots, loaded.Slots)
	})
}
