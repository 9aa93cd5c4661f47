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

	"github.com/samirrijal/exsitu/internal/adapters/exsitu"
	"github.com/samirrijal/exsitu/internal/adapters/http"
	"github.com/samirrijal/exsitu/internal/adapters/mapbox"
	natsadapter "github.com/samirrijal/exsitu/internal/adapters/nats"
	"github.com/samirrijal/exsitu/internal/adapters/postgres"
	"github.com/samirrijal/exsitu/internal/adapters/valkey"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/config"
	"github.com/samirrijal/exsitu/internal/pkg/logging"
	"github.com/samirrijal/exsitu/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("exsitu-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Object source: the ex-situ backend, or the local mirror
	var (
		source ports.ObjectSource
		db     *postgres.DB
	)
	switch cfg.Source.Kind {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Database.DSN(), 0)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		source = postgres.NewObjectRepo(db)
		go reportPoolMetrics(ctx, db)
	default:
		source = exsitu.NewClient(exsitu.Config{
			BaseURL:    cfg.Backend.BaseURL,
			UserAgent:  cfg.Telemetry.ServiceName,
			Timeout:    cfg.Backend.TimeoutDuration(),
			RPS:        cfg.Backend.RPS,
			MaxRetries: cfg.Backend.MaxRetries,
		})
	}
	slog.Info("object source selected", "kind", cfg.Source.Kind)

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Drain()
	}

	// Geocoder: search is disabled, not fatal, without a token
	var geocoder ports.Geocoder
	g, err := mapbox.NewGeocoder(cfg.Geocoder.BaseURL, cfg.Geocoder.Token, cfg.Geocoder.RPS)
	if err != nil {
		slog.Warn("place search disabled", "error", err)
	} else {
		geocoder = g
	}

	// Use cases
	objectSvc := usecases.NewObjectService(source, cacheSvc, cfg.Backend.MaxPages)
	statsSvc := usecases.NewStatsService(source, cacheSvc, publisher)
	searchSvc := usecases.NewSearchService(geocoder, cacheSvc)

	deps := &http.Dependencies{
		Objects: objectSvc,
		Stats:   statsSvc,
		Search:  searchSvc,
		SyncConfig: usecases.SyncConfig{
			Debounce:  time.Duration(cfg.Sync.DebounceMS) * time.Millisecond,
			Threshold: cfg.Sync.Threshold,
			PageSize:  cfg.Backend.PageSize,
			Mode:      usecases.SyncMode(cfg.Sync.Mode),
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Ex Situ Map API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://www.exsitu.site",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Client-ID",
		ExposeHeaders:    "Link, ETag, Content-Disposition",
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

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolMetrics publishes connection pool gauges every 15s.
func reportPoolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			db.ReportMetrics()
		case <-ctx.Done():
			return
		}
	}
}
