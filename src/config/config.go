package config

import (
	"fmt"
	"ledger-server/src/util"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

type Config struct {
	Port        string
	StoreDriver string
	DatabaseURL string
	BoltPath    string
	JWTSecret   string

	CategoryRulesPath string
	PageSize          int

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryJitter      float64

	CacheEnabled bool
	ReadOnly     bool
	LogLevel     string
	Currency     string
	Timezone     *time.Location

	AllowedOrigins []string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string
}

// Load reads the environment, after an optional .env file, and validates it.
func Load(files ...string) (Config, error) {
	// Load .env file if present
	_ = godotenv.Load(files...)

	var errs []string
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		StoreDriver:       getEnv("STORE_DRIVER", DriverPostgres),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		BoltPath:          getEnv("BOLT_PATH", "ledger.db"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CategoryRulesPath: getEnv("CATEGORY_RULES_PATH", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Currency:          strings.ToUpper(getEnv("CURRENCY", "USD")),
		PlaidClientID:     getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:       getEnv("PLAID_SECRET", ""),
		PlaidEnv:          getEnv("PLAID_ENV", "sandbox"),
	}

	for _, origin := range strings.Split(getEnv("CORS_ORIGINS", ""), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.PageSize, err = strconv.Atoi(getEnv("PAGE_SIZE", "500")); err != nil {
		errs = append(errs, "PAGE_SIZE must be an integer")
	}
	if cfg.RetryMaxAttempts, err = strconv.Atoi(getEnv("RETRY_MAX_ATTEMPTS", "3")); err != nil {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be an integer")
	}
	if cfg.RetryBaseDelay, err = time.ParseDuration(getEnv("RETRY_BASE_DELAY", "50ms")); err != nil {
		errs = append(errs, "RETRY_BASE_DELAY must be a duration")
	}
	if cfg.RetryJitter, err = strconv.ParseFloat(getEnv("RETRY_JITTER", "0.2"), 64); err != nil {
		errs = append(errs, "RETRY_JITTER must be a number")
	}
	if cfg.CacheEnabled, err = strconv.ParseBool(getEnv("CACHE_ENABLED", "true")); err != nil {
		errs = append(errs, "CACHE_ENABLED must be a boolean")
	}
	if cfg.ReadOnly, err = strconv.ParseBool(getEnv("READ_ONLY", "false")); err != nil {
		errs = append(errs, "READ_ONLY must be a boolean")
	}
	if cfg.Timezone, err = time.LoadLocation(getEnv("TIMEZONE", "UTC")); err != nil {
		errs = append(errs, "TIMEZONE is not a known location")
	}
	if len(errs) > 0 {
		return cfg, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []string
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required")
		}
	case DriverBolt:
		if c.BoltPath == "" {
			errs = append(errs, "BOLT_PATH is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER %q is not one of postgres, bolt", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}
	if c.PageSize <= 0 {
		errs = append(errs, "PAGE_SIZE must be positive")
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, "RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryJitter < 0 || c.RetryJitter > 1 {
		errs = append(errs, "RETRY_JITTER must be between 0 and 1")
	}
	if !util.ValidateCurrency(c.Currency) {
		errs = append(errs, fmt.Sprintf("CURRENCY %q is not a known ISO 4217 code", c.Currency))
	}
	if c.PlaidEnabled() && c.PlaidEnv != "sandbox" && c.PlaidEnv != "production" {
		errs = append(errs, fmt.Sprintf("PLAID_ENV %q is not one of sandbox, production", c.PlaidEnv))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PlaidEnabled reports whether Plaid credentials are configured.
func (c Config) PlaidEnabled() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
