package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Pricing       PricingConfig
	Business      BusinessConfig
	Jobs          JobsConfig
}

// RateLimitConfig holds per-tenant rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration. An empty Host selects the
// in-memory store.
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds cache configuration. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	OTELEndpoint   string
	SamplingRate   float64
	ServiceName    string
	ServiceVersion string
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// PricingConfig bounds quote calculation and its caches
type PricingConfig struct {
	Concurrency  int
	ItemTimeout  time.Duration
	ResultTTL    time.Duration
	ConfigTTL    time.Duration
	MaterialsTTL time.Duration
	MachinesTTL  time.Duration
}

// BusinessConfig holds the commercial defaults used for tenants without a
// stored pricing configuration
type BusinessConfig struct {
	Currency              string
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	StandardShippingRate  decimal.Decimal
	ValidityDays          int
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	Enabled    bool
	ExpirySpec string
}

// Load loads configuration from environment variables, after reading an
// optional .env file from the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "20s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "cotiza"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "cotiza"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
			AutoMigrate:     parseBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        parseInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "cotiza:"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			OTELEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			SamplingRate:   parseFloat("OTEL_SAMPLING_RATE", 1),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "cotiza"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_ISSUER", ""),
			Audience:  getEnv("AUTH_AUDIENCE", ""),
			Leeway:    parseDuration("AUTH_LEEWAY", "30s"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Pricing: PricingConfig{
			Concurrency:  parseInt("PRICING_CONCURRENCY", 8),
			ItemTimeout:  parseDuration("PRICING_ITEM_TIMEOUT", "10s"),
			ResultTTL:    parseDuration("PRICING_RESULT_TTL", "1h"),
			ConfigTTL:    parseDuration("CATALOG_CONFIG_TTL", "1h"),
			MaterialsTTL: parseDuration("CATALOG_MATERIALS_TTL", "2h"),
			MachinesTTL:  parseDuration("CATALOG_MACHINES_TTL", "30m"),
		},
		Business: BusinessConfig{
			Currency:              getEnv("BUSINESS_CURRENCY", "MXN"),
			TaxRate:               parseDecimal("BUSINESS_TAX_RATE", "0.16"),
			FreeShippingThreshold: parseDecimal("BUSINESS_FREE_SHIPPING_THRESHOLD", "1000"),
			StandardShippingRate:  parseDecimal("BUSINESS_STANDARD_SHIPPING_RATE", "150"),
			ValidityDays:          parseInt("BUSINESS_QUOTE_VALIDITY_DAYS", 14),
		},
		Jobs: JobsConfig{
			Enabled:    parseBool("JOBS_ENABLED", true),
			ExpirySpec: getEnv("JOBS_EXPIRY_SPEC", "*/15 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// UsesPostgres reports whether a database server is configured.
func (c *Config) UsesPostgres() bool {
	return c.Database.Host != ""
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.UsesPostgres() && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes")
	}
	if c.Pricing.Concurrency < 1 {
		return fmt.Errorf("PRICING_CONCURRENCY must be positive")
	}
	if c.Business.TaxRate.IsNegative() || c.Business.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("BUSINESS_TAX_RATE must be a fraction between 0 and 1")
	}
	if c.Business.ValidityDays < 1 {
		return fmt.Errorf("BUSINESS_QUOTE_VALIDITY_DAYS must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDecimal(key, defaultValue string) decimal.Decimal {
	if d, err := decimal.NewFromString(getEnv(key, defaultValue)); err == nil {
		return d
	}
	return decimal.RequireFromString(defaultValue)
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
