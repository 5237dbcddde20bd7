// Package app assembles the sync engine from configuration. The API server and the admin
// CLI share it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tavola/internal/domain/account"
	"tavola/internal/domain/openbanking"
	"tavola/internal/infrastructure/crypto"
	ofclient "tavola/internal/infrastructure/openbanking"
	"tavola/internal/infrastructure/postgres"
	"tavola/internal/shared/config"
)

// Engine holds the connected storage and every bank-linking component.
type Engine struct {
	DB *postgres.DB

	Credentials  *postgres.CredentialRepository
	Institutions *postgres.InstitutionRepository
	Requisitions *postgres.RequisitionRepository
	Accounts     *postgres.AccountRepository
	Transactions *postgres.TransactionRepository

	AccountService *account.Service

	Tokens                  *openbanking.TokenManager
	Consent                 *openbanking.ConsentOrchestrator
	AccountSynchronizer     *openbanking.AccountSynchronizer
	TransactionSynchronizer *openbanking.TransactionSynchronizer
	InstitutionSynchronizer *openbanking.InstitutionSynchronizer
	Callbacks               *openbanking.CallbackResolver
}

// NewEngine connects to the database, runs migrations when configured to and wires the
// provider client into the domain services.
func NewEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, db.DB); err != nil {
			db.Close()
			return nil, err
		}
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	e := &Engine{
		DB:           db,
		Credentials:  postgres.NewCredentialRepository(db, encryptor),
		Institutions: postgres.NewInstitutionRepository(db),
		Requisitions: postgres.NewRequisitionRepository(db),
		Accounts:     postgres.NewAccountRepository(db),
		Transactions: postgres.NewTransactionRepository(db),
	}
	e.AccountService = account.NewService(e.Accounts)

	ob := cfg.OpenBanking
	var client ofclient.ClientInterface = ofclient.NewClient(ofclient.Config{
		BaseURL:   ob.BaseURL,
		Timeout:   ob.ProviderTimeout,
		RateLimit: ob.ProviderRateLimit,
	})
	if ob.ProviderMaxRetries > 0 {
		client = ofclient.NewRetryingClient(client, ofclient.RetryConfig{
			MaxRetries: uint64(ob.ProviderMaxRetries),
		}, logger.Named("provider"))
	}

	if !ob.HasProviderSecrets() {
		logger.Warn("provider secrets are not configured; only stored credentials can be refreshed")
	}

	e.Tokens = openbanking.NewTokenManager(client, e.Credentials, openbanking.TokenConfig{
		SecretID:  ob.SecretID,
		SecretKey: ob.SecretKey,
	}, logger)

	e.Consent = openbanking.NewConsentOrchestrator(e.Tokens, client, e.Requisitions, e.Institutions, openbanking.ConsentConfig{
		RedirectURL:  ob.RedirectURL,
		UserLanguage: ob.UserLanguage,
	}, logger)

	e.AccountSynchronizer = openbanking.NewAccountSynchronizer(client, e.AccountService, openbanking.AccountSyncConfig{
		BalanceTypes:    ob.BalanceTypes,
		Workers:         ob.AccountWorkers,
		DefaultCurrency: ob.DefaultCurrency,
	}, logger)

	e.TransactionSynchronizer = openbanking.NewTransactionSynchronizer(client, e.Transactions, openbanking.TransactionSyncConfig{
		Cap:          ob.TransactionCap,
		LookbackDays: ob.TransactionLookback,
	}, logger)

	e.InstitutionSynchronizer = openbanking.NewInstitutionSynchronizer(e.Tokens, client, e.Institutions, logger)

	e.Callbacks = openbanking.NewCallbackResolver(
		e.Tokens,
		client,
		e.Requisitions,
		e.AccountSynchronizer,
		e.TransactionSynchronizer,
		openbanking.CallbackConfig{
			Timeout: ob.CallbackTimeout,
			Workers: ob.AccountWorkers,
		},
		logger,
	)

	return e, nil
}

// Close releases the database pool.
func (e *Engine) Close() error {
	return e.DB.Close()
}
