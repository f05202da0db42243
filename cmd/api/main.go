package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/stashpoint/internal/adapters/http"
	"github.com/samirrijal/stashpoint/internal/adapters/memory"
	natsadapter "github.com/samirrijal/stashpoint/internal/adapters/nats"
	"github.com/samirrijal/stashpoint/internal/adapters/postgres"
	"github.com/samirrijal/stashpoint/internal/adapters/valkey"
	"github.com/samirrijal/stashpoint/internal/core/domain"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
	"github.com/samirrijal/stashpoint/internal/pkg/config"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
	"github.com/samirrijal/stashpoint/internal/pkg/metrics"
	"github.com/samirrijal/stashpoint/internal/pkg/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("stashpoint-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	var cache ports.CacheService
	deps := &http.Dependencies{DB: db, Version: version}
	if vc, err := valkey.New(cfg.Valkey.Addr, "stashpoint:"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		events = pub
		deps.NATS = pub
	}

	// Repos
	stashpointRepo := postgres.NewStashpointRepo(db)
	bookingRepo := postgres.NewBookingRepo(db)

	var (
		stashpoints ports.StashpointRepository = stashpointRepo
		bookings    ports.BookingRepository    = bookingRepo
		snapshots   ports.SnapshotReader
		store       *memory.Store
	)
	switch cfg.Search.Store {
	case config.StoreMemory:
		store = memory.NewStore()
		if err := store.Reload(ctx, stashpointRepo, bookingRepo); err != nil {
			log.Fatalf("load memory store: %v", err)
		}
		slog.Info("memory store loaded", "loaded_at", store.LoadedAt())
		stashpoints, bookings, snapshots = store, store, store
	default:
		if cfg.Search.SnapshotReads {
			snapshots = db
		}
	}

	// Use cases
	searchSvc := usecases.NewSearchService(stashpoints, bookings, snapshots, cache, events, usecases.SearchOptions{
		DefaultRadiusKm: cfg.Search.DefaultRadiusKm,
		CapacityMode:    cfg.Search.CapacityMode,
		Parallelism:     cfg.Search.Parallelism,
		CandidateTTL:    cfg.Search.CandidateCacheTTL,
	})
	stashpointSvc := usecases.NewStashpointService(stashpoints, cache)
	auditSvc := usecases.NewAuditService(stashpoints, bookings, events)

	deps.Search = searchSvc
	deps.Stashpoints = stashpointSvc
	deps.Audit = auditSvc

	// Inventory changes retire cached candidates and refresh the memory store.
	reload := func(ctx context.Context) error {
		if store == nil {
			return nil
		}
		return store.Reload(ctx, stashpointRepo, bookingRepo)
	}
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL); err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		err := sub.SubscribeInventoryChanges(ctx, func(ctx context.Context, change *domain.InventoryChange) error {
			if err := reload(ctx); err != nil {
				slog.Error("memory store reload failed", "error", err)
				return err
			}
			searchSvc.InvalidateCandidates(change.Time.UnixNano())
			stashpointSvc.Forget(ctx, change.StashpointIDs)
			slog.Info("inventory changed", "source", change.Source, "stashpoints", len(change.StashpointIDs), "bookings", change.Bookings)
			return nil
		})
		if err != nil {
			slog.Warn("subscribe inventory changes failed", "error", err)
		}
	}

	if store != nil && cfg.Search.ReloadInterval > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.Search.ReloadInterval) * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := reload(ctx); err != nil {
						slog.Error("periodic memory store reload failed", "error", err)
						continue
					}
					searchSvc.InvalidateCandidates(time.Now().UnixNano())
				}
			}
		}()
	}

	// DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Stashpoint API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps, http.RouterConfig{
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		RateLimit:      600,
	})

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "store", cfg.Search.Store, "capacity_mode", cfg.Search.CapacityMode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
