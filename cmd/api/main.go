package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tavola/internal/shared/config"
	"tavola/internal/shared/logging"
	"tavola/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
			SampleRatio:  cfg.Telemetry.SampleRatio,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logger.Error("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Engine.Tokens.CheckConfigured(ctx); err != nil {
		return fmt.Errorf("set GOCARDLESS_SECRET_ID and GOCARDLESS_SECRET_KEY: %w", err)
	}

	// Background work outlives the signal context; shutdown stops it explicitly.
	deps.ResyncListener.Start(context.Background())
	if deps.Scheduler != nil {
		deps.Scheduler.Start()
	} else {
		logger.Info("scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg, logger)
	srv, redirectSrv, serveErr := StartServers(NewServerConfigFromConfig(handler, cfg), logger)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("server failed", zap.Error(err))
		GracefulShutdown(deps, srv, redirectSrv, shutdownTimeout, logger)
		return err
	}

	GracefulShutdown(deps, srv, redirectSrv, shutdownTimeout, logger)
	return nil
}
