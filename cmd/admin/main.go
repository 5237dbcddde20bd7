package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tavola/internal/app"
	"tavola/internal/infrastructure/postgres"
	"tavola/internal/infrastructure/postgres/listener"
	"tavola/internal/shared/auth"
	"tavola/internal/shared/config"
	"tavola/internal/shared/logging"
)

const usage = `Tavola Admin CLI - Management commands for the bank sync engine

Usage:
  admin <command> [options]

Commands:
  migrate               Apply database migrations
  refresh-institutions  Reload the institution catalogue of a country from the provider
  connect               Start a bank connection and print the authorization URL
  resolve               Resolve a bank callback reference and sync its accounts
  sync-requisition      Resync the accounts and transactions of a stored requisition
  issue-token           Issue an operator API token

Examples:
  admin migrate
  admin refresh-institutions --country=ES
  admin connect --institution=SANDBOXFINANCE_SFIN0000
  admin resolve --ref=7f9c2d3e-...
  admin sync-requisition --id=8126e9fb-...
  admin sync-requisition --id=8126e9fb-... --notify
  admin issue-token --subject=ops@example.com --ttl=12h
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "refresh-institutions":
		runRefreshInstitutions(os.Args[2:])
	case "connect":
		runConnect(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "sync-requisition":
		runSyncRequisition(os.Args[2:])
	case "issue-token":
		runIssueToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// setup loads configuration and builds a console logger for CLI use.
func setup() (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, "console")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return cfg, logger
}

func newEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) *app.Engine {
	engine, err := app.NewEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize engine", zap.Error(err))
	}
	return engine
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Failed to encode output: %v", err)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout := fs.Duration("timeout", time.Minute, "Timeout for the operation")
	parseFlags(fs, args)

	cfg, logger := setup()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: 1})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db.DB); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	version, err := postgres.MigrationVersion(ctx, db.DB)
	if err != nil {
		logger.Fatal("failed to read migration version", zap.Error(err))
	}
	logger.Info("database migrated", zap.Int64("version", version))
}

func runRefreshInstitutions(args []string) {
	fs := flag.NewFlagSet("refresh-institutions", flag.ExitOnError)
	country := fs.String("country", "", "ISO 3166 country code (defaults to BANK_DEFAULT_COUNTRY)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the operation")
	parseFlags(fs, args)

	cfg, logger := setup()
	defer func() { _ = logger.Sync() }()

	code := strings.ToUpper(strings.TrimSpace(*country))
	if code == "" {
		code = cfg.OpenBanking.DefaultCountry
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := newEngine(ctx, cfg, logger)
	defer engine.Close()

	result, err := engine.InstitutionSynchronizer.RefreshInstitutions(ctx, code)
	if err != nil {
		logger.Fatal("institution refresh failed", zap.String("country", code), zap.Error(err))
	}
	printJSON(result)
}

func runConnect(args []string) {
	fs := flag.NewFlagSet("connect", flag.ExitOnError)
	institutionID := fs.String("institution", "", "Provider institution id")
	timeout := fs.Duration("timeout", time.Minute, "Timeout for the operation")
	parseFlags(fs, args)

	if *institutionID == "" {
		fmt.Println("Error: --institution is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := setup()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := newEngine(ctx, cfg, logger)
	defer engine.Close()

	conn, err := engine.Consent.CreateConnection(ctx, *institutionID)
	if err != nil {
		logger.Fatal("failed to create connection", zap.Error(err))
	}
	printJSON(conn)
}

func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	ref := fs.String("ref", "", "Requisition reference (or requisition id)")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the operation")
	parseFlags(fs, args)

	if *ref == "" {
		fmt.Println("Error: --ref is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := setup()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	engine := newEngine(ctx, cfg, logger)
	defer engine.Close()

	result, err := engine.Callbacks.ResolveCallback(ctx, *ref)
	if err != nil {
		logger.Fatal("callback resolution failed", zap.Error(err))
	}
	printJSON(result)
}

func runSyncRequisition(args []string) {
	fs := flag.NewFlagSet("sync-requisition", flag.ExitOnError)
	id := fs.String("id", "", "Stored requisition id")
	notify := fs.Bool("notify", false, "Queue the resync for the running API server instead of running it here")
	timeout := fs.Duration("timeout", 5*time.Minute, "Timeout for the operation")
	parseFlags(fs, args)

	if *id == "" {
		fmt.Println("Error: --id is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := setup()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *notify {
		db, err := postgres.New(ctx, cfg.Database.ConnectionString(), postgres.PoolConfig{MaxOpenConns: 1})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := listener.NotifyResync(ctx, db, *id); err != nil {
			logger.Fatal("failed to queue resync", zap.Error(err))
		}
		logger.Info("resync queued", zap.String("requisition_id", *id))
		return
	}

	engine := newEngine(ctx, cfg, logger)
	defer engine.Close()

	result, err := engine.Callbacks.ResyncRequisition(ctx, *id)
	if err != nil {
		logger.Fatal("resync failed", zap.Error(err))
	}
	printJSON(result)
}

func runIssueToken(args []string) {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	subject := fs.String("subject", "", "Operator identity recorded in the token")
	ttl := fs.Duration("ttl", auth.DefaultTTL, "Token lifetime")
	parseFlags(fs, args)

	if *subject == "" {
		fmt.Println("Error: --subject is required")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := auth.NewJWT(cfg.JWT.Secret, *ttl).Generate(*subject)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
