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

	"github.com/samirrijal/pedalnav/internal/adapters/http"
	"github.com/samirrijal/pedalnav/internal/adapters/memory"
	natsadapter "github.com/samirrijal/pedalnav/internal/adapters/nats"
	"github.com/samirrijal/pedalnav/internal/adapters/postgres"
	"github.com/samirrijal/pedalnav/internal/adapters/valhalla"
	"github.com/samirrijal/pedalnav/internal/adapters/valkey"
	"github.com/samirrijal/pedalnav/internal/core/domain"
	"github.com/samirrijal/pedalnav/internal/core/ports"
	"github.com/samirrijal/pedalnav/internal/core/usecases"
	"github.com/samirrijal/pedalnav/internal/pkg/config"
	"github.com/samirrijal/pedalnav/internal/pkg/logging"
	"github.com/samirrijal/pedalnav/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("pedalnav-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	deps := &http.Dependencies{}

	// Feature stores
	var (
		pois          ports.PointOfInterestStore
		warnings      ports.WarningStore
		contributions ports.ContributionStore
	)
	switch cfg.Map.FeatureSource {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		deps.DB = db

		repo := postgres.NewFeatureRepo(db)
		pois, warnings, contributions = repo, repo, repo
	default:
		store := memory.NewStore()
		if cfg.Map.FeaturesFile != "" {
			if store, err = memory.LoadFile(cfg.Map.FeaturesFile); err != nil {
				log.Fatalf("features: %v", err)
			}
		}
		slog.Info("using in-memory feature index", "features", store.Len())
		pois, warnings, contributions = store, store, store
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		c, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer c.Close()
			cache = c
			deps.Cache = c
		}
	}

	sessionDeps := usecases.SessionDeps{Logger: logger}

	// NATS
	if cfg.NATS.Enabled {
		nc, err := natsadapter.Connect(cfg.NATS.URL, "pedalnav-api")
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer nc.Drain()
			deps.NATS = nc

			pub, err := natsadapter.NewPublisher(nc)
			if err != nil {
				slog.Warn("nats publisher unavailable", "error", err)
			} else {
				sessionDeps.Renderer = pub
				sessionDeps.Publisher = pub
			}
			sessionDeps.Locations = func(sessionID string) ports.LocationSource {
				return natsadapter.NewFixSource(nc, sessionID, logger)
			}
		}
	}

	// Routing
	variants, err := routeTypes(cfg.Routing.Variants)
	if err != nil {
		log.Fatalf("routing: %v", err)
	}
	router := valhalla.New(cfg.Routing.ValhallaURL, cfg.Routing.Timeout(), variants, logger)
	deps.Routing = router

	// Use cases
	deps.Features = usecases.NewMapDataService(pois, warnings, cache, cfg.Map.CacheTTLSeconds)
	deps.Contributions = usecases.NewContributionService(contributions, deps.Features, logger)
	sessionDeps.Routes = usecases.NewRouteService(router, logger)
	sessionDeps.Features = deps.Features
	deps.Sessions = usecases.NewSessionManager(sessionConfig(cfg), sessionDeps)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "PedalNav API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if err := deps.Sessions.Shutdown(shutdownCtx); err != nil {
		slog.Error("sessions did not stop in time", "error", err)
	}

	slog.Info("server stopped")
}

func routeTypes(names []string) ([]domain.RouteType, error) {
	out := make([]domain.RouteType, 0, len(names))
	for _, n := range names {
		t, err := domain.ParseRouteType(n)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// sessionConfig maps the navigation, camera and map sections onto the
// session tuning.
func sessionConfig(cfg *config.Config) usecases.SessionConfig {
	sc := usecases.DefaultSessionConfig()

	sc.Navigation.ArrivalThresholdMeters = cfg.Navigation.ArrivalThresholdMeters
	sc.Navigation.Strict = cfg.Navigation.Strict

	sc.Tracker.MaxAge = time.Duration(cfg.Navigation.BreadcrumbMaxAgeSec) * time.Second
	sc.Tracker.MinSpacingMeters = cfg.Navigation.BreadcrumbSpacing
	sc.Tracker.Capacity = cfg.Navigation.BreadcrumbCapacity
	sc.Tracker.MinDisplacementMeters = cfg.Navigation.MinDisplacement
	sc.Tracker.NewBearingWeight = cfg.Navigation.BearingWeight

	sc.Camera.ZoomThrottle = time.Duration(cfg.Camera.ZoomThrottleMs) * time.Millisecond
	sc.Camera.MinZoomStep = cfg.Camera.MinZoomStep
	sc.Camera.NavigatingPitch = cfg.Camera.NavigatingPitch
	sc.Camera.RecenterNavigatingMeters = cfg.Camera.RecenterNavigatingMeters
	sc.Camera.RecenterExploringMeters = cfg.Camera.RecenterExploringMeters

	sc.ReloadDebounce = time.Duration(cfg.Map.ReloadDebounceMs) * time.Millisecond
	sc.TriggerShrink = cfg.Map.TriggerShrink
	sc.RouteTimeout = cfg.Routing.Timeout() * 2
	return sc
}
