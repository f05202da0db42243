package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/stashpoint/internal/adapters/nats"
	"github.com/samirrijal/stashpoint/internal/adapters/postgres"
	"github.com/samirrijal/stashpoint/internal/core/ports"
	"github.com/samirrijal/stashpoint/internal/core/usecases"
	"github.com/samirrijal/stashpoint/internal/pkg/config"
	"github.com/samirrijal/stashpoint/internal/pkg/logging"
	"github.com/samirrijal/stashpoint/internal/workflows"
)

func main() {
	once := flag.Bool("once", false, "run a single audit and exit instead of serving the schedule")
	flag.Parse()

	cfg, err := config.Load("stashpoint-auditor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 5)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, anomalies will only be logged", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	auditSvc := usecases.NewAuditService(postgres.NewStashpointRepo(db), postgres.NewBookingRepo(db), events)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	input := workflows.AuditInput{Horizon: time.Duration(cfg.Temporal.AuditHorizon) * time.Hour}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.OverbookingAuditWorkflow)
	w.RegisterActivity(&workflows.AuditActivities{Audit: auditSvc})

	if *once {
		if err := w.Start(); err != nil {
			log.Fatalf("worker: %v", err)
		}
		defer w.Stop()

		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.AuditWorkflowID + "-" + time.Now().UTC().Format("20060102T150405"),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.OverbookingAuditWorkflow, input)
		if err != nil {
			log.Fatalf("start audit: %v", err)
		}
		var result workflows.AuditResult
		if err := run.Get(ctx, &result); err != nil {
			log.Fatalf("audit: %v", err)
		}
		slog.Info("audit finished", "overbooked", result.Overbooked, "reported", result.Reported,
			"dropoff", result.Window.Dropoff, "pickup", result.Window.Pickup)
		return
	}

	if err := ensureSchedule(ctx, c, cfg, input); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	slog.Info("auditor worker started", "task_queue", cfg.Temporal.TaskQueue, "every_minutes", cfg.Temporal.AuditEvery)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule registers the recurring audit unless it already exists.
func ensureSchedule(ctx context.Context, c client.Client, cfg *config.Config, input workflows.AuditInput) error {
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: workflows.AuditWorkflowID + "-schedule",
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{
				{Every: time.Duration(cfg.Temporal.AuditEvery) * time.Minute},
			},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        workflows.AuditWorkflowID,
			Workflow:  workflows.OverbookingAuditWorkflow,
			Args:      []interface{}{input},
			TaskQueue: cfg.Temporal.TaskQueue,
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("audit schedule already registered")
		return nil
	}
	return err
}
