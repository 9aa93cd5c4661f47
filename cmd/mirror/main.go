package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/exsitu/internal/adapters/exsitu"
	natsadapter "github.com/samirrijal/exsitu/internal/adapters/nats"
	"github.com/samirrijal/exsitu/internal/adapters/postgres"
	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/config"
	"github.com/samirrijal/exsitu/internal/pkg/logging"
	"github.com/samirrijal/exsitu/internal/pkg/telemetry"
)

// mirror copies every object of the ex-situ backend, or of the viewport
// given as "north,south,east,west", into the local Postgres mirror.
func main() {
	cfg, err := config.Load("exsitu-mirror")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	bounds := usecases.WorldBounds
	if len(os.Args) > 1 {
		bounds, err = parseBounds(os.Args[1])
		if err != nil {
			log.Fatalf("bounds: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), 8)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, mirror_completed will not be published", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	remote := exsitu.NewClient(exsitu.Config{
		BaseURL:    cfg.Backend.BaseURL,
		UserAgent:  cfg.Telemetry.ServiceName,
		Timeout:    cfg.Backend.TimeoutDuration(),
		RPS:        cfg.Backend.RPS,
		MaxRetries: cfg.Backend.MaxRetries,
	})
	svc := usecases.NewMirrorService(remote, postgres.NewObjectRepo(db), publisher, usecases.MaxPageSize)

	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, "mirror.Run")
	span.SetAttributes(
		telemetry.AttrMirrorRun.String(runID),
		telemetry.AttrBounds.String(bounds.String()),
	)
	defer span.End()

	logger := slog.With("run", runID)
	logger.Info("mirror starting", "bounds", bounds.String(), "source", cfg.Backend.BaseURL)

	start := time.Now()
	report, err := svc.Run(ctx, bounds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("mirror failed", "error", err)
		os.Exit(1)
	}
	span.SetAttributes(telemetry.AttrObjects.Int(report.Stored))

	logger.Info("mirror finished",
		"pages", report.Pages,
		"failed_pages", report.FailedPages,
		"stored", report.Stored,
		"total", report.Total,
		"took", time.Since(start).Round(time.Millisecond).String(),
	)
}

func parseBounds(s string) (domain.MapBounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.MapBounds{}, fmt.Errorf("want north,south,east,west, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.MapBounds{}, fmt.Errorf("parse %q: %w", p, err)
		}
		v[i] = f
	}
	b := domain.MapBounds{North: v[0], South: v[1], East: v[2], West: v[3]}
	return b, b.Validate()
}
