// Package main provides the inventory server binary serving grid profiles
// over WebSocket with PostgreSQL loadout persistence.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/duskhollow/packrat/internal/config"
	"github.com/duskhollow/packrat/internal/game/archetype"
	"github.com/duskhollow/packrat/internal/game/profile"
	"github.com/duskhollow/packrat/internal/game/shape"
	"github.com/duskhollow/packrat/internal/observability"
	"github.com/duskhollow/packrat/internal/server"
	"github.com/duskhollow/packrat/internal/storage/postgres"
	"github.com/duskhollow/packrat/internal/transport/ws"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	shapesDir := flag.String("shapes-dir", "", "override for the shape YAML directory")
	archetypesDir := flag.String("archetypes-dir", "", "override for the archetype YAML directory")
	noStore := flag.Bool("no-store", false, "run without PostgreSQL persistence")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *shapesDir != "" {
		cfg.Content.ShapesDir = *shapesDir
	}
	if *archetypesDir != "" {
		cfg.Content.ArchetypesDir = *archetypesDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting inventory server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("grid_width", cfg.Grid.Width),
		zap.Int("grid_height", cfg.Grid.Height),
	)

	// Load content
	contentStart := time.Now()
	shapes, err := shape.LoadRegistry(cfg.Content.ShapesDir)
	if err != nil {
		logger.Fatal("loading shapes", zap.Error(err))
	}
	catalog, err := archetype.LoadCatalog(cfg.Content.ArchetypesDir)
	if err != nil {
		logger.Fatal("loading archetypes", zap.Error(err))
	}
	// Every archetype must reference a loaded shape.
	for _, arch := range catalog.All() {
		if _, ok := shapes.Definition(arch.ShapeID); !ok {
			logger.Fatal("archetype references unknown shape",
				zap.String("archetype", arch.ID),
				zap.String("shape", arch.ShapeID),
			)
		}
	}
	logger.Info("content loaded",
		zap.Int("shapes", len(shapes.All())),
		zap.Int("archetypes", len(catalog.All())),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	// Connect to PostgreSQL for loadout persistence
	var pool *postgres.Pool
	var store ws.Store
	if *noStore {
		logger.Warn("running without persistence; save and load are disabled")
	} else {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		store = postgres.NewLoadoutRepository(pool.DB())
	}

	profiles, err := profile.NewManager(shapes, catalog, cfg.Grid.Width, cfg.Grid.Height, logger)
	if err != nil {
		logger.Fatal("creating profile manager", zap.Error(err))
	}

	handler := ws.NewHandler(profiles, catalog, store, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":   "ok",
			"profiles": profiles.Count(),
		}
		if pool != nil {
			if err := pool.Health(r.Context(), 2*time.Second); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				status["status"] = "degraded"
				status["database"] = err.Error()
			} else {
				stat := pool.Stat()
				status["database"] = fmt.Sprintf("%d/%d conns", stat.AcquiredConns(), stat.TotalConns())
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	// Wire lifecycle. The pool is registered first so it closes after the
	// HTTP server has drained its connections.
	lifecycle := server.NewLifecycle(logger)

	if pool != nil {
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				for {
					time.Sleep(30 * time.Second)
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("database health check failed", zap.Error(err))
					}
				}
			},
			StopFn: func() {
				pool.Close()
			},
		})
	}

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening", zap.String("addr", cfg.Server.Addr()))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	logger.Info("inventory server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
