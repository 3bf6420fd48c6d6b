// Package testutil provides test helpers for database-backed tests, covering
// both an externally provisioned database and a throwaway container.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/duskhollow/packrat/internal/config"
	"github.com/duskhollow/packrat/internal/storage/postgres"
)

// loadoutSchema mirrors migrations/000001_create_loadouts.up.sql so tests do
// not need the migrate tool on the path.
const loadoutSchema = `
	CREATE TABLE IF NOT EXISTS loadouts (
		uid         VARCHAR(64)  PRIMARY KEY,
		name        VARCHAR(128) NOT NULL DEFAULT '',
		grid_width  INT          NOT NULL,
		grid_height INT          NOT NULL,
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS loadout_items (
		loadout_uid  VARCHAR(64) NOT NULL REFERENCES loadouts(uid) ON DELETE CASCADE,
		item_id      VARCHAR(64) NOT NULL,
		archetype_id VARCHAR(64) NOT NULL,
		anchor_col   INT         NOT NULL,
		anchor_row   INT         NOT NULL,
		rotation     INT         NOT NULL DEFAULT 0,
		PRIMARY KEY (loadout_uid, item_id)
	);
	CREATE TABLE IF NOT EXISTS loadout_slots (
		loadout_uid  VARCHAR(64) NOT NULL REFERENCES loadouts(uid) ON DELETE CASCADE,
		layer        VARCHAR(32) NOT NULL,
		item_id      VARCHAR(64) NOT NULL,
		archetype_id VARCHAR(64) NOT NULL,
		PRIMARY KEY (loadout_uid, layer)
	);
	CREATE INDEX IF NOT EXISTS idx_loadout_items_uid ON loadout_items (loadout_uid);
	CREATE INDEX IF NOT EXISTS idx_loadout_slots_uid ON loadout_slots (loadout_uid);
`

// NewPool connects to the database named by the TEST_DSN environment variable
// and ensures the loadout schema exists. Tests are skipped when TEST_DSN is
// unset, so the suite stays green on machines without a database.
//
// Postcondition: Returns an open pool that is closed via t.Cleanup, or skips.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		t.Skip("TEST_DSN not set; skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(context.Background(), loadoutSchema); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	return pool
}

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment.
//
// Precondition: Pool must be connected.
// Postcondition: The loadout tables exist in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	if _, err := pc.RawPool.Exec(ctx, loadoutSchema); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
