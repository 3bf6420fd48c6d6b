package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duskhollow/packrat/internal/game/profile"
)

// ErrLoadoutNotFound is returned when no loadout is stored under the given UID.
var ErrLoadoutNotFound = errors.New("loadout not found")

// ErrDuplicateItemID is returned when a snapshot carries the same item ID twice.
var ErrDuplicateItemID = errors.New("snapshot contains duplicate item id")

// LoadoutRepository persists profile snapshots across three tables: a parent
// row per loadout plus child rows for grid items and slot occupants.
type LoadoutRepository struct {
	db *pgxpool.Pool
}

// NewLoadoutRepository creates a LoadoutRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewLoadoutRepository(db *pgxpool.Pool) *LoadoutRepository {
	return &LoadoutRepository{db: db}
}

// Save stores a snapshot, replacing whatever was previously stored under the
// same UID. The parent upsert and the child replacement run inside a single
// transaction, so readers never observe a half-written loadout.
//
// Precondition: snap.UID must be non-empty.
// Postcondition: Returns nil on success; on error the stored loadout is
// whatever it was before the call.
func (r *LoadoutRepository) Save(ctx context.Context, snap profile.Snapshot) error {
	if snap.UID == "" {
		return fmt.Errorf("postgres: LoadoutRepository.Save: snapshot UID must not be empty")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning loadout save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO loadouts (uid, name, grid_width, grid_height, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (uid) DO UPDATE SET
			name = EXCLUDED.name,
			grid_width = EXCLUDED.grid_width,
			grid_height = EXCLUDED.grid_height,
			updated_at = NOW()`,
		snap.UID, snap.Name, snap.Width, snap.Height,
	)
	if err != nil {
		return fmt.Errorf("upserting loadout %s: %w", snap.UID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM loadout_items WHERE loadout_uid = $1`, snap.UID); err != nil {
		return fmt.Errorf("clearing loadout items: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM loadout_slots WHERE loadout_uid = $1`, snap.UID); err != nil {
		return fmt.Errorf("clearing loadout slots: %w", err)
	}

	for _, item := range snap.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO loadout_items (loadout_uid, item_id, archetype_id, anchor_col, anchor_row, rotation)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			snap.UID, item.ID, item.ArchetypeID, item.Col, item.Row, item.Rotation,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateItemID, item.ID)
			}
			return fmt.Errorf("inserting loadout item %s: %w", item.ID, err)
		}
	}

	for _, slot := range snap.Slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO loadout_slots (loadout_uid, layer, item_id, archetype_id)
			VALUES ($1, $2, $3, $4)`,
			snap.UID, slot.Layer, slot.ItemID, slot.ArchetypeID,
		)
		if err != nil {
			return fmt.Errorf("inserting loadout slot %s: %w", slot.Layer, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing loadout save: %w", err)
	}
	return nil
}

// Load fetches the snapshot stored under uid.
//
// Postcondition: Returns the stored snapshot, or ErrLoadoutNotFound if no
// parent row exists. Items come back ordered row-major by anchor, slots by
// layer name, matching the order Snapshot produces.
func (r *LoadoutRepository) Load(ctx context.Context, uid string) (profile.Snapshot, error) {
	var snap profile.Snapshot
	err := r.db.QueryRow(ctx, `
		SELECT uid, name, grid_width, grid_height
		FROM loadouts WHERE uid = $1`, uid,
	).Scan(&snap.UID, &snap.Name, &snap.Width, &snap.Height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile.Snapshot{}, ErrLoadoutNotFound
		}
		return profile.Snapshot{}, fmt.Errorf("loading loadout %s: %w", uid, err)
	}

	items, err := r.loadItems(ctx, uid)
	if err != nil {
		return profile.Snapshot{}, err
	}
	snap.Items = items

	slots, err := r.loadSlots(ctx, uid)
	if err != nil {
		return profile.Snapshot{}, err
	}
	snap.Slots = slots

	return snap, nil
}

func (r *LoadoutRepository) loadItems(ctx context.Context, uid string) ([]profile.ItemState, error) {
	rows, err := r.db.Query(ctx, `
		SELECT item_id, archetype_id, anchor_col, anchor_row, rotation
		FROM loadout_items
		WHERE loadout_uid = $1
		ORDER BY anchor_row, anchor_col, item_id`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("querying loadout items: %w", err)
	}
	defer rows.Close()

	items := []profile.ItemState{}
	for rows.Next() {
		var it profile.ItemState
		if err := rows.Scan(&it.ID, &it.ArchetypeID, &it.Col, &it.Row, &it.Rotation); err != nil {
			return nil, fmt.Errorf("scanning loadout item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loadout items: %w", err)
	}
	return items, nil
}

func (r *LoadoutRepository) loadSlots(ctx context.Context, uid string) ([]profile.SlotState, error) {
	rows, err := r.db.Query(ctx, `
		SELECT layer, item_id, archetype_id
		FROM loadout_slots
		WHERE loadout_uid = $1
		ORDER BY layer`, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("querying loadout slots: %w", err)
	}
	defer rows.Close()

	slots := []profile.SlotState{}
	for rows.Next() {
		var s profile.SlotState
		if err := rows.Scan(&s.Layer, &s.ItemID, &s.ArchetypeID); err != nil {
			return nil, fmt.Errorf("scanning loadout slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loadout slots: %w", err)
	}
	return slots, nil
}

// Delete removes the loadout stored under uid, child rows included.
//
// Postcondition: Returns nil on success, ErrLoadoutNotFound if nothing was stored.
func (r *LoadoutRepository) Delete(ctx context.Context, uid string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM loadouts WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("deleting loadout %s: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLoadoutNotFound
	}
	return nil
}

// List returns the UIDs of every stored loadout, most recently saved first.
func (r *LoadoutRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT uid FROM loadouts ORDER BY updated_at DESC, uid`)
	if err != nil {
		return nil, fmt.Errorf("listing loadouts: %w", err)
	}
	defer rows.Close()

	uids := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning loadout uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loadouts: %w", err)
	}
	return uids, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
