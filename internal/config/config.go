package config

import (
	"fmt"
	"time"

	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	pkgconfig "github.com/myseetara-source/erp-seetara-sub004/pkg/config"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration for the inventory engine.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Storage
	StoreBackend  string `env:"STORE_BACKEND" envDefault:"postgres"`
	LockTimeoutMs int    `env:"LOCK_TIMEOUT_MS" envDefault:"5000"`

	// Workflow rules
	DefaultLowStockThreshold int  `env:"DEFAULT_LOW_STOCK_THRESHOLD" envDefault:"10"`
	RequireDistinctChecker   bool `env:"REQUIRE_DISTINCT_CHECKER" envDefault:"true"`
	AllowStraightThrough     bool `env:"ALLOW_STRAIGHT_THROUGH" envDefault:"true"`

	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// PostgresConfig is read from POSTGRES_* variables.
type PostgresConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"erp"`
	Password string `env:"PASSWORD" envDefault:"erp_secret"`
	DBName   string `env:"DB" envDefault:"erp_inventory"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`

	MaxConns            int32 `env:"MAX_CONNS" envDefault:"20"`
	MinConns            int32 `env:"MIN_CONNS" envDefault:"2"`
	MaxConnLifetimeMins int   `env:"MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	MaxConnIdleTimeMins int   `env:"MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`
}

// KafkaConfig is read from KAFKA_* variables. When disabled, domain events are
// dropped and order events are not consumed.
type KafkaConfig struct {
	Enabled        bool     `env:"ENABLED" envDefault:"false"`
	Brokers        []string `env:"BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup  string   `env:"CONSUMER_GROUP" envDefault:"inventory-engine"`
	MaxRetries     int      `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoffMs int      `env:"RETRY_BACKOFF_MS" envDefault:"200"`
}

// RedisConfig is read from REDIS_* variables. Redis backs the read cache, the
// approval lock and consumer deduplication; without it those fall back to
// pass-through, no lock and an in-process store.
type RedisConfig struct {
	Enabled             bool   `env:"ENABLED" envDefault:"false"`
	Addr                string `env:"ADDR" envDefault:"localhost:6379"`
	Password            string `env:"PASSWORD"`
	DB                  int    `env:"DB" envDefault:"0"`
	CacheTTLSeconds     int    `env:"CACHE_TTL_SECONDS" envDefault:"30"`
	ApprovalLock        bool   `env:"APPROVAL_LOCK" envDefault:"true"`
	ApprovalLockTTLSecs int    `env:"APPROVAL_LOCK_TTL_SECONDS" envDefault:"30"`
	IdempotencyTTLHours int    `env:"IDEMPOTENCY_TTL_HOURS" envDefault:"24"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load inventory engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.Postgres.Host == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.Postgres.User == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
		if c.Postgres.MinConns > c.Postgres.MaxConns {
			return fmt.Errorf("POSTGRES_MIN_CONNS (%d) exceeds POSTGRES_MAX_CONNS (%d)", c.Postgres.MinConns, c.Postgres.MaxConns)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	if c.LockTimeoutMs < 0 {
		return fmt.Errorf("LOCK_TIMEOUT_MS must be >= 0, got %d", c.LockTimeoutMs)
	}
	if c.DefaultLowStockThreshold < 0 {
		return fmt.Errorf("DEFAULT_LOW_STOCK_THRESHOLD must be >= 0, got %d", c.DefaultLowStockThreshold)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is set")
	}
	if c.Redis.CacheTTLSeconds < 0 {
		return fmt.Errorf("REDIS_CACHE_TTL_SECONDS must be >= 0, got %d", c.Redis.CacheTTLSeconds)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// LockTimeout bounds how long a unit of work waits for row locks.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// SlowQueryThreshold returns zero when slow query logging is off.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// DatabaseConfig converts the POSTGRES_* settings for pkg/database.
func (c *Config) DatabaseConfig() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.Postgres.Host,
		Port:            c.Postgres.Port,
		User:            c.Postgres.User,
		Password:        c.Postgres.Password,
		DBName:          c.Postgres.DBName,
		SSLMode:         c.Postgres.SSLMode,
		MaxConns:        c.Postgres.MaxConns,
		MinConns:        c.Postgres.MinConns,
		MaxConnLifetime: time.Duration(c.Postgres.MaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.Postgres.MaxConnIdleTimeMins) * time.Minute,
		ApplicationName: "inventory-engine",
	}
}

// DatabaseRedisConfig converts the REDIS_* settings for pkg/database.
func (c *Config) DatabaseRedisConfig() database.RedisConfig {
	return database.RedisConfig{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		DialTimeout: 5 * time.Second,
	}
}
