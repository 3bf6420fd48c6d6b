// Package ws exposes inventory profiles over a WebSocket command loop: one
// JSON command in, one ack or error out, with committed slot mutations pushed
// as events in emission order between them.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
	"github.com/duskhollow/packrat/internal/game/profile"
	"github.com/duskhollow/packrat/internal/game/swap"
)

// Store persists and recalls loadout snapshots. A nil Store disables the
// save and load commands.
type Store interface {
	Save(ctx context.Context, snap profile.Snapshot) error
	Load(ctx context.Context, uid string) (profile.Snapshot, error)
}

// Handler upgrades HTTP requests to WebSocket sessions bound to one profile
// each. Commands for the same profile are serialised on a per-UID lock, so
// two connections to one profile cannot interleave mutations.
type Handler struct {
	profiles *profile.Manager
	catalog  *archetype.Catalog
	store    Store
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHandler creates a Handler serving the given profile manager.
//
// Precondition: profiles and catalog must be non-nil; store may be nil.
func NewHandler(profiles *profile.Manager, catalog *archetype.Catalog, store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		profiles: profiles,
		catalog:  catalog,
		store:    store,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		locks: make(map[string]*sync.Mutex),
	}
}

// profileLock returns the per-profile command lock, creating it on first use.
func (h *Handler) profileLock(uid string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[uid]
	if !ok {
		l = &sync.Mutex{}
		h.locks[uid] = l
	}
	return l
}

// Handle runs the command loop for one connection until the client goes away.
// The profile named by the uid query parameter is created on first contact.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		http.Error(w, "missing uid", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("uid", uid), zap.Error(err))
		return
	}
	defer conn.Close()

	lock := h.profileLock(uid)

	lock.Lock()
	prof, err := h.profiles.GetOrCreate(uid, uid)
	lock.Unlock()
	if err != nil {
		h.logger.Error("profile unavailable", zap.String("uid", uid), zap.Error(err))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "profile unavailable")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}

	sess := &session{conn: conn, logger: h.logger.With(zap.String("uid", uid))}
	prof.Coordinator.Register(sess)
	defer func() {
		lock.Lock()
		prof.Coordinator.Unregister(sess)
		lock.Unlock()
	}()

	if err := sess.write(stateMessage(prof)); err != nil {
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			sess.logger.Debug("discarding malformed command", zap.Error(err))
			continue
		}

		lock.Lock()
		reply, next := h.dispatch(r.Context(), prof, sess, cmd)
		if next != nil {
			prof = next
		}
		lock.Unlock()

		if reply != nil {
			if err := sess.write(reply); err != nil {
				return
			}
		}
	}
}

// dispatch executes one command against prof and returns the reply to send.
// A non-nil second return value replaces the session's profile; only "load"
// does that.
func (h *Handler) dispatch(ctx context.Context, prof *profile.Profile, sess *session, cmd clientCommand) (any, *profile.Profile) {
	switch cmd.Type {
	case "add":
		arch, err := h.catalog.Require(cmd.Archetype)
		if err != nil {
			return errorMessage("add", err.Error()), nil
		}
		var preferred *grid.Cell
		if cmd.Col != nil && cmd.Row != nil {
			preferred = &grid.Cell{Col: *cmd.Col, Row: *cmd.Row}
		}
		inst, err := prof.Grid.AddItem(arch, preferred)
		if err != nil {
			return errorMessage("add", err.Error()), nil
		}
		return okItemMessage("add", inst), nil

	case "remove":
		inst, ok := prof.Grid.GetItem(cmd.Item)
		if !ok {
			return errorMessage("remove", "item not found"), nil
		}
		if err := prof.Grid.RemoveItem(inst.ID); err != nil {
			return errorMessage("remove", err.Error()), nil
		}
		return okItemMessage("remove", inst), nil

	case "move":
		if cmd.Col == nil || cmd.Row == nil {
			return errorMessage("move", "col and row required"), nil
		}
		inst, ok := prof.Grid.GetItem(cmd.Item)
		if !ok {
			return errorMessage("move", "item not found"), nil
		}
		target := grid.Cell{Col: *cmd.Col, Row: *cmd.Row}
		if !prof.Grid.IsValidPosition(target, inst) {
			return errorMessage("move", "does not fit there"), nil
		}
		if err := prof.Grid.SetGridPosition(inst.ID, target); err != nil {
			return errorMessage("move", err.Error()), nil
		}
		inst.Anchor = target
		return okItemMessage("move", inst), nil

	case "rotate":
		if cmd.Rotation == nil {
			return errorMessage("rotate", "rotation required"), nil
		}
		inst, ok := prof.Grid.GetItem(cmd.Item)
		if !ok {
			return errorMessage("rotate", "item not found"), nil
		}
		rotation, err := prof.Grid.NormalizeRotation(inst.Archetype.ShapeID, *cmd.Rotation)
		if err != nil {
			return errorMessage("rotate", err.Error()), nil
		}
		candidate := inst
		candidate.Rotation = rotation
		if !prof.Grid.IsValidPosition(inst.Anchor, candidate) {
			return errorMessage("rotate", "does not fit there"), nil
		}
		if err := prof.Grid.SetRotation(inst.ID, rotation); err != nil {
			return errorMessage("rotate", err.Error()), nil
		}
		return okItemMessage("rotate", candidate), nil

	case "equip":
		if err := prof.Coordinator.Equip(cmd.Item, equipment.Layer(cmd.Layer)); err != nil {
			return errorMessage("equip", err.Error()), nil
		}
		return okMessage("equip"), nil

	case "unequip":
		inst, err := prof.Coordinator.Unequip(equipment.Layer(cmd.Layer))
		if err != nil {
			return errorMessage("unequip", err.Error()), nil
		}
		return okItemMessage("unequip", inst), nil

	case "list":
		return stateMessage(prof), nil

	case "save":
		if h.store == nil {
			return errorMessage("save", "persistence not configured"), nil
		}
		if err := h.store.Save(ctx, prof.Snapshot()); err != nil {
			return errorMessage("save", err.Error()), nil
		}
		return okMessage("save"), nil

	case "load":
		if h.store == nil {
			return errorMessage("load", "persistence not configured"), nil
		}
		snap, err := h.store.Load(ctx, prof.UID)
		if err != nil {
			return errorMessage("load", err.Error()), nil
		}
		// The stored loadout replaces the in-memory profile wholesale, so
		// the session listener moves to the rebuilt coordinator.
		prof.Coordinator.Unregister(sess)
		_ = h.profiles.RemoveProfile(prof.UID)
		fresh, err := h.profiles.CreateProfile(snap.UID, snap.Name)
		if err != nil {
			return errorMessage("load", err.Error()), nil
		}
		fresh.Coordinator.Register(sess)
		if err := fresh.Restore(snap); err != nil {
			// A partially restored profile must not survive; leave a blank one.
			_ = h.profiles.RemoveProfile(fresh.UID)
			blank, cerr := h.profiles.CreateProfile(snap.UID, snap.Name)
			if cerr != nil {
				sess.logger.Error("rebuilding profile after failed restore", zap.Error(cerr))
				return errorMessage("load", err.Error()), nil
			}
			blank.Coordinator.Register(sess)
			return errorMessage("load", err.Error()), blank
		}
		return stateMessage(fresh), fresh

	default:
		return errorMessage(cmd.Type, "unknown command"), nil
	}
}

func stateMessage(p *profile.Profile) statePayload {
	st := statePayload{
		Type:   "state",
		UID:    p.UID,
		Width:  p.Grid.Width(),
		Height: p.Grid.Height(),
		Items:  []itemPayload{},
		Slots:  []slotPayload{},
	}
	for _, inst := range p.Grid.GetAllItems() {
		st.Items = append(st.Items, toItemPayload(inst))
	}
	for _, slot := range p.Slots.Occupied() {
		sp := slotPayload{Layer: string(slot.Layer), Item: slot.Occupant.ItemID}
		if slot.Occupant.Archetype != nil {
			sp.Archetype = slot.Occupant.Archetype.ID
		}
		st.Slots = append(st.Slots, sp)
	}
	totals := p.Stats.Totals()
	st.Totals = totalsPayload{
		Armor:  totals.Armor,
		Warmth: totals.Warmth,
		Weight: totals.Weight,
		Pieces: totals.Pieces,
	}
	return st
}

// session fans coordinator events out to one connection. gorilla connections
// permit a single concurrent writer, so every write goes through mu.
type session struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *zap.Logger
}

var _ swap.Listener = (*session)(nil)

func (s *session) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *session) writeEvent(v any) {
	if err := s.write(v); err != nil {
		s.logger.Debug("dropping event for closed connection", zap.Error(err))
	}
}

func (s *session) OnItemEquipped(layer equipment.Layer, occupant equipment.Occupant) {
	s.writeEvent(eventPayload{Type: "equipped", Layer: string(layer), Item: occupant.ItemID})
}

func (s *session) OnItemUnequipped(layer equipment.Layer, itemID string) {
	s.writeEvent(eventPayload{Type: "unequipped", Layer: string(layer), Item: itemID})
}

func (s *session) OnItemSwapped(layer equipment.Layer, oldItemID, newItemID string) {
	s.writeEvent(eventPayload{Type: "swapped", Layer: string(layer), Item: newItemID, Displaced: oldItemID})
}

func (s *session) OnDataChanged() {
	s.writeEvent(eventPayload{Type: "data-changed"})
}
