package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"eventfin/internal/attachments"
	"eventfin/internal/cli"
	apphttp "eventfin/internal/http"
	"eventfin/internal/log"
	"eventfin/internal/ocr"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal("configuration", err)
	}
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		cli.Fatal("backend", err)
	}
	logger.Info("Initialized backend", "backend", res.Type, "amqp", res.AMQP != nil)

	store, err := attachments.NewStore(cfg.AttachmentsDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Error("Failed to initialize attachment store", log.FieldError, err, log.FieldPath, cfg.AttachmentsDir)
		cli.Fatal("attachments", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Events:      res.Services.Events,
		Budget:      res.Services.Budget,
		Expenses:    res.Services.Expenses,
		Incomes:     res.Services.Incomes,
		Dashboard:   res.Services.Dashboard,
		Reconciler:  res.Services.Reconciler,
		Extractor:   ocr.NewSimulated(cfg.OCRDelay, logger),
		Attachments: store,
		Ready:       res.Ping,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheTTL:           cfg.CacheTTL,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(context.Background(), logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting eventfin server", "port", cfg.Port, "backend", res.Type)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cli.Fatal("server", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
