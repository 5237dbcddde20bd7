package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	OpenBanking OpenBankingConfig
	JWT         JWTConfig
	Encryption  EncryptionConfig
	Scheduler   SchedulerConfig
	TLS         TLSConfig
	Logging     LoggingConfig
	Telemetry   TelemetryConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxOpenConns   int
	MigrateOnStart bool
}

// OpenBankingConfig configures the provider client and the sync engine.
type OpenBankingConfig struct {
	SecretID        string
	SecretKey       string
	BaseURL         string
	RedirectURL     string
	SettingsPageURL string
	UserLanguage    string
	DefaultCountry  string
	// DefaultCurrency is stored for accounts whose details and balances carry none.
	DefaultCurrency string

	TransactionCap      int
	TransactionLookback int // days; 0 lets the provider pick the window
	AccountWorkers      int
	BalanceTypes        []string
	CallbackTimeout     time.Duration

	ProviderTimeout    time.Duration
	ProviderMaxRetries int
	ProviderRateLimit  float64 // requests per second
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key string
}

// SchedulerConfig drives the periodic resync of linked requisitions.
type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type LoggingConfig struct {
	Level  string
	Format string // json or console
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
	SampleRatio  float64
}

func Load() (*Config, error) {
	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	dbMaxOpen, err := getIntEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}

	txCap, err := getIntEnv("TRANSACTION_SYNC_CAP", 100)
	if err != nil {
		return nil, err
	}
	lookback, err := getIntEnv("TRANSACTION_LOOKBACK_DAYS", 0)
	if err != nil {
		return nil, err
	}
	accountWorkers, err := getIntEnv("ACCOUNT_SYNC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	callbackTimeout, err := getDurationEnv("CALLBACK_TIMEOUT", 25*time.Second)
	if err != nil {
		return nil, err
	}
	providerTimeout, err := getDurationEnv("PROVIDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	providerRetries, err := getIntEnv("PROVIDER_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	rateLimit, err := strconv.ParseFloat(getEnv("PROVIDER_RATE_LIMIT", "4"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_RATE_LIMIT: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("OTEL_TRACES_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLE_RATIO: %w", err)
	}

	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := getDurationEnv("SCHEDULER_JOB_DELAY", time.Second)
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS", ""),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           dbPort,
			User:           getEnv("DB_USER", "tavola"),
			Password:       getEnv("DB_PASSWORD", ""),
			DBName:         getEnv("DB_NAME", "tavola"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   dbMaxOpen,
			MigrateOnStart: getBoolEnv("DB_MIGRATE_ON_START", true),
		},
		OpenBanking: OpenBankingConfig{
			SecretID:            getEnv("GOCARDLESS_SECRET_ID", ""),
			SecretKey:           getEnv("GOCARDLESS_SECRET_KEY", ""),
			BaseURL:             getEnv("GOCARDLESS_BASE_URL", "https://bankaccountdata.gocardless.com/api/v2"),
			RedirectURL:         getEnv("BANK_REDIRECT_URL", "http://localhost:8080/bank-callback"),
			SettingsPageURL:     getEnv("BANK_SETTINGS_PAGE_URL", "http://localhost:3000/settings/banking"),
			UserLanguage:        strings.ToUpper(getEnv("BANK_USER_LANGUAGE", "ES")),
			DefaultCountry:      strings.ToUpper(getEnv("BANK_DEFAULT_COUNTRY", "ES")),
			DefaultCurrency:     strings.ToUpper(getEnv("BANK_DEFAULT_CURRENCY", "EUR")),
			TransactionCap:      txCap,
			TransactionLookback: lookback,
			AccountWorkers:      accountWorkers,
			BalanceTypes:        getListEnv("BALANCE_TYPES", "closingBooked"),
			CallbackTimeout:     callbackTimeout,
			ProviderTimeout:     providerTimeout,
			ProviderMaxRetries:  providerRetries,
			ProviderRateLimit:   rateLimit,
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("TOKEN_ENCRYPTION_KEY", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", false),
			ScheduleTimes: getListEnv("SCHEDULER_TIMES", "04:00"),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "tavola-api"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
			SampleRatio:  sampleRatio,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks required settings. Provider secrets are not checked here;
// the token manager reports them when a token is first needed.
func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if c.OpenBanking.TransactionCap <= 0 {
		return fmt.Errorf("TRANSACTION_SYNC_CAP must be positive")
	}
	if c.OpenBanking.AccountWorkers <= 0 {
		return fmt.Errorf("ACCOUNT_SYNC_WORKERS must be positive")
	}
	if c.OpenBanking.ProviderRateLimit <= 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must be positive")
	}
	if c.OpenBanking.ProviderMaxRetries < 0 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must not be negative")
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return nil
}

// HasProviderSecrets reports whether a fresh provider token can be issued.
func (c *OpenBankingConfig) HasProviderSecrets() bool {
	return c.SecretID != "" && c.SecretKey != ""
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// getListEnv splits a comma-separated value, dropping blanks.
func getListEnv(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
