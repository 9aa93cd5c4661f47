package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samirrijal/exsitu/internal/adapters/exsitu"
	natsadapter "github.com/samirrijal/exsitu/internal/adapters/nats"
	"github.com/samirrijal/exsitu/internal/adapters/postgres"
	"github.com/samirrijal/exsitu/internal/adapters/valkey"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/config"
	"github.com/samirrijal/exsitu/internal/pkg/logging"
)

const refreshInterval = 5 * time.Minute

// statsrefresher recomputes the grouped statistics on a timer and after
// every completed mirror run, caches them and announces stats_refreshed.
func main() {
	cfg, err := config.Load("exsitu-statsrefresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var source ports.ObjectSource
	if cfg.Source.Kind == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		source = postgres.NewObjectRepo(db)
	} else {
		source = exsitu.NewClient(exsitu.Config{
			BaseURL:    cfg.Backend.BaseURL,
			UserAgent:  cfg.Telemetry.ServiceName,
			Timeout:    cfg.Backend.TimeoutDuration(),
			RPS:        cfg.Backend.RPS,
			MaxRetries: cfg.Backend.MaxRetries,
		})
	}

	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, stats will not be cached", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	svc := usecases.NewStatsService(source, cacheSvc, pub)

	trigger := make(chan struct{}, 1)
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("mirror events unavailable, refreshing on timer only", "error", err)
	} else {
		defer sub.Close()
		err = sub.SubscribeMirrorCompleted(ctx, "statsrefresher", func(ctx context.Context, ev *natsadapter.MirrorCompleted) error {
			slog.Info("mirror completed", "objects", ev.Objects, "at", ev.At)
			select {
			case trigger <- struct{}{}:
			default:
			}
			return nil
		})
		if err != nil {
			slog.Warn("subscribe mirror completed", "error", err)
		}
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("stats refresher started", "interval", refreshInterval.String(), "source", cfg.Source.Kind)

	// Run once immediately
	refresh(ctx, svc)

	for {
		select {
		case <-ticker.C:
			refresh(ctx, svc)
		case <-trigger:
			refresh(ctx, svc)
		case sig := <-quit:
			slog.Info("shutting down stats refresher", "signal", sig.String())
			return
		}
	}
}

func refresh(ctx context.Context, svc *usecases.StatsService) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	start := time.Now()
	summary, err := svc.Refresh(ctx)
	if err != nil {
		slog.Error("stats refresh failed", "error", err)
		return
	}
	slog.Info("stats refreshed",
		"total", summary.TotalCount,
		"countries", len(summary.Countries),
		"institutions", len(summary.Institutions),
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
}
