package main

import (
	"context"
	"errors"
	"time"

	"eventfin/internal/amqp"
	"eventfin/internal/cli"
	"eventfin/internal/log"
	"eventfin/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal("configuration", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting eventfin-worker")

	parent, stop := context.WithCancel(context.Background())
	defer stop()

	res, err := cli.OpenBackend(parent, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		cli.Fatal("backend", err)
	}

	ledger, err := cli.OpenLedger(parent, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		cli.Fatal("ledger", err)
	}
	ledgerWorker := worker.NewLedgerWorker(ledger, &res.Services, logger)

	// Decisions published while the worker was down are still queued, but
	// ones made before the queue existed are not.
	logger.Info("Performing startup backfill", "window", cfg.BackfillWindow.String())
	if n, err := ledgerWorker.Backfill(parent, time.Now().Add(-cfg.BackfillWindow)); err != nil {
		logger.Error("Startup backfill incomplete", log.FieldError, err, log.FieldCount, n)
	}

	scheduler := worker.NewScheduler(5*time.Minute, logger)
	if err := scheduler.Add("reconcile", cfg.ReconcileSchedule, worker.ReconcileJob(res.Services.Reconciler, false, logger)); err != nil {
		logger.Error("Invalid reconcile schedule", log.FieldError, err, "schedule", cfg.ReconcileSchedule)
		cli.Fatal("scheduler", err)
	}
	scheduler.Start()

	var consumer *amqp.Client
	if cfg.AMQPEnabled() {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			cli.Fatal("amqp", err)
		}
		go func() {
			err := consumer.ConsumeDecisions(parent, ledgerWorker.HandleDecision)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
			stop()
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop in time", log.FieldError, err)
		}
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
