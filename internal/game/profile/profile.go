// Package profile assembles the per-character inventory state: one grid
// store, one equipment slot store, the coordinator wiring them together,
// and the cached stats aggregator. A Manager tracks all live profiles.
package profile

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/equipment"
	"github.com/duskhollow/packrat/internal/game/grid"
	"github.com/duskhollow/packrat/internal/game/shape"
	"github.com/duskhollow/packrat/internal/game/stats"
	"github.com/duskhollow/packrat/internal/game/swap"
)

// Profile is one character's complete inventory state. All mutations go
// through Coordinator or Grid; the profile itself only bundles the pieces.
// Operations on a single profile are not synchronised; the transport layer
// guarantees one actor per profile at a time.
type Profile struct {
	UID         string
	Name        string
	Grid        *grid.Store
	Slots       *equipment.Store
	Coordinator *swap.Coordinator
	Stats       *stats.Aggregator

	catalog *archetype.Catalog
}

// Manager tracks all live profiles by UID and builds new ones with a shared
// shape registry and archetype catalog. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	shapes   *shape.Registry
	catalog  *archetype.Catalog
	width    int
	height   int
	logger   *zap.Logger
}

// NewManager returns an empty Manager that builds profiles with width x
// height grids.
//
// Precondition: shapes, catalog, and logger are non-nil; dimensions are
// positive.
func NewManager(shapes *shape.Registry, catalog *archetype.Catalog, width, height int, logger *zap.Logger) (*Manager, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("profile: NewManager: grid dimensions must be positive; got %dx%d", width, height)
	}
	return &Manager{
		profiles: make(map[string]*Profile),
		shapes:   shapes,
		catalog:  catalog,
		width:    width,
		height:   height,
		logger:   logger,
	}, nil
}

// CreateProfile builds and registers a fresh, empty profile. An empty uid is
// replaced with a generated one.
//
// Postcondition: Profile(uid) returns the new profile; returns error if uid
// is already registered.
func (m *Manager) CreateProfile(uid, name string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(uid, name)
}

func (m *Manager) createLocked(uid, name string) (*Profile, error) {
	if uid == "" {
		uid = uuid.New().String()
	}
	if _, exists := m.profiles[uid]; exists {
		return nil, fmt.Errorf("profile: Manager.CreateProfile: UID %q already registered", uid)
	}

	occ, err := grid.NewOccupancyStore(m.width, m.height)
	if err != nil {
		return nil, fmt.Errorf("profile: Manager.CreateProfile: %w", err)
	}
	gridStore := grid.NewStore(occ, m.shapes)
	slots := equipment.NewStore()
	coord := swap.NewCoordinator(gridStore, slots, m.shapes, m.logger.With(zap.String("profile", uid)))
	agg := stats.NewAggregator(slots)
	coord.Register(agg)

	p := &Profile{
		UID:         uid,
		Name:        name,
		Grid:        gridStore,
		Slots:       slots,
		Coordinator: coord,
		Stats:       agg,
		catalog:     m.catalog,
	}
	m.profiles[uid] = p
	m.logger.Info("profile created",
		zap.String("profile", uid),
		zap.String("name", name),
		zap.Int("grid_width", m.width),
		zap.Int("grid_height", m.height))
	return p, nil
}

// Profile returns the profile for the given UID and whether it was found.
func (m *Manager) Profile(uid string) (*Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[uid]
	return p, ok
}

// GetOrCreate returns the existing profile for uid, or builds a fresh one
// under a single lock so concurrent callers cannot race a duplicate.
func (m *Manager) GetOrCreate(uid, name string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[uid]; ok {
		return p, nil
	}
	return m.createLocked(uid, name)
}

// RemoveProfile drops the profile for the given UID.
//
// Postcondition: Profile(uid) reports not found; returns error if uid was
// not registered.
func (m *Manager) RemoveProfile(uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[uid]; !ok {
		return fmt.Errorf("profile: Manager.RemoveProfile: UID %q not registered", uid)
	}
	delete(m.profiles, uid)
	m.logger.Info("profile removed", zap.String("profile", uid))
	return nil
}

// Profiles returns all registered profiles in unspecified order.
func (m *Manager) Profiles() []*Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered profiles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}
