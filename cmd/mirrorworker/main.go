package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/exsitu/internal/adapters/exsitu"
	natsadapter "github.com/samirrijal/exsitu/internal/adapters/nats"
	"github.com/samirrijal/exsitu/internal/adapters/postgres"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/usecases"
	"github.com/samirrijal/exsitu/internal/pkg/config"
	"github.com/samirrijal/exsitu/internal/pkg/logging"
	"github.com/samirrijal/exsitu/internal/workflows"
)

// mirrorworker runs the Temporal worker for MirrorWorkflow.
// "mirrorworker start" enqueues a whole-map run and waits for its report.
func main() {
	cfg, err := config.Load("exsitu-mirrorworker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if len(os.Args) > 1 && os.Args[1] == "start" {
		startRun(c, cfg.Temporal.TaskQueue)
		return
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 8)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
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

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities. Completion is published by the
	// workflow's own activity, not by the service.
	w.RegisterWorkflow(workflows.MirrorWorkflow)
	w.RegisterActivity(&workflows.MirrorActivities{
		Mirror:    usecases.NewMirrorService(remote, postgres.NewObjectRepo(db), nil, usecases.MaxPageSize),
		Publisher: publisher,
	})

	slog.Info("mirror worker started", "queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startRun(c client.Client, queue string) {
	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "exsitu-mirror",
		TaskQueue: queue,
	}, workflows.MirrorWorkflowName, workflows.MirrorInput{Bounds: usecases.WorldBounds})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}
	slog.Info("mirror workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var report usecases.MirrorReport
	if err := run.Get(ctx, &report); err != nil {
		log.Fatalf("mirror workflow: %v", err)
	}
	slog.Info("mirror workflow finished",
		"pages", report.Pages,
		"failed_pages", report.FailedPages,
		"stored", report.Stored,
		"total", report.Total,
	)
}
