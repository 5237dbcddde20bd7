package main

import (
	"context"

	"go.uber.org/zap"

	"tavola/internal/app"
	"tavola/internal/infrastructure/postgres/listener"
	httphandlers "tavola/internal/interfaces/http"
	"tavola/internal/interfaces/scheduler"
	"tavola/internal/shared/auth"
	"tavola/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Engine *app.Engine

	// Handlers
	HealthHandler      *httphandlers.HealthHandler
	CallbackHandler    *httphandlers.CallbackHandler
	ConnectionHandler  *httphandlers.ConnectionHandler
	InstitutionHandler *httphandlers.InstitutionHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler
	RequisitionHandler *httphandlers.RequisitionHandler

	JWT *auth.JWT

	ResyncListener *listener.ResyncListener
	Scheduler      *scheduler.Scheduler
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	engine, err := app.NewEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Engine:             engine,
		HealthHandler:      httphandlers.NewHealthHandler(engine.DB),
		CallbackHandler:    httphandlers.NewCallbackHandler(engine.Callbacks, cfg.OpenBanking.SettingsPageURL, logger),
		ConnectionHandler:  httphandlers.NewConnectionHandler(engine.Consent, logger),
		InstitutionHandler: httphandlers.NewInstitutionHandler(engine.InstitutionSynchronizer, cfg.OpenBanking.DefaultCountry, logger),
		AccountHandler:     httphandlers.NewAccountHandler(engine.AccountService, logger),
		TransactionHandler: httphandlers.NewTransactionHandler(engine.AccountService, engine.Transactions, logger),
		RequisitionHandler: httphandlers.NewRequisitionHandler(engine.Requisitions, engine.AccountService, engine.Callbacks, logger),
		JWT:                auth.NewJWT(cfg.JWT.Secret, auth.DefaultTTL),
		ResyncListener:     listener.NewResyncListener(cfg.Database.ConnectionString(), engine.Callbacks, logger),
	}

	if cfg.Scheduler.Enabled {
		provider := scheduler.NewJobProvider(
			cfg.OpenBanking.DefaultCountry,
			engine.Requisitions,
			engine.InstitutionSynchronizer,
			engine.Callbacks,
			logger,
		)
		deps.Scheduler, err = scheduler.New(scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   provider,
		}, logger)
		if err != nil {
			engine.Close()
			return nil, err
		}
	}

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.Engine != nil {
		_ = d.Engine.Close()
	}
}
