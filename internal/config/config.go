package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/spokeworks/bikeshop/pkg/config"
	"github.com/spokeworks/bikeshop/pkg/database"
)

// Config holds all configuration for the shop backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Postgres
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"bikeshop"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"bikeshop"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"bikeshop"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// Payment provider: "mock" for development, "card" for the hosted provider.
	PaymentProvider string `env:"PAYMENT_PROVIDER" envDefault:"mock"`
	CardAPIBaseURL  string `env:"CARD_API_BASE_URL" envDefault:""`
	CardAPIKey      string `env:"CARD_API_KEY" envDefault:""`

	// TTLs
	CartTTL             time.Duration `env:"CART_TTL" envDefault:"168h"`
	CheckoutSnapshotTTL time.Duration `env:"CHECKOUT_SNAPSHOT_TTL" envDefault:"30m"`
	ShippingCacheTTL    time.Duration `env:"SHIPPING_CACHE_TTL" envDefault:"1m"`

	// Tracing
	TracingEnabled  bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint string  `env:"TRACING_ENDPOINT" envDefault:"localhost:4318"`
	TracingSample   float64 `env:"TRACING_SAMPLE_RATE" envDefault:"0.1"`

	// Pprof access, CIDR allowlist. Empty disables the endpoints.
	PprofCIDRs []string `env:"PPROF_CIDRS" envDefault:"" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PaymentProvider != "mock" && c.PaymentProvider != "card" {
		return fmt.Errorf("invalid payment provider: %q", c.PaymentProvider)
	}
	if c.PaymentProvider == "card" && (c.CardAPIBaseURL == "" || c.CardAPIKey == "") {
		return fmt.Errorf("card provider requires CARD_API_BASE_URL and CARD_API_KEY")
	}
	if c.Environment == "production" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	return nil
}

// Postgres returns the Postgres pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	cfg := database.DefaultPostgresConfig()
	cfg.Host = c.PostgresHost
	cfg.Port = c.PostgresPort
	cfg.User = c.PostgresUser
	cfg.Password = c.PostgresPassword
	cfg.DBName = c.PostgresDB
	cfg.SSLMode = c.PostgresSSLMode
	return cfg
}

// Redis returns the Redis client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}
