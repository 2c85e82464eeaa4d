package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the picture service.
type Config struct {
	// Service Configuration
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"picture-api"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"PICTURE_API_PORT" envDefault:"8290"`
	LogLevel        string        `env:"PICTURE_LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	TraceSampleRate float64       `env:"PICTURE_TRACE_SAMPLE_RATE" envDefault:"1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database (required, no default)
	DBPostgresqlWriteDSN string `env:"DB_POSTGRESQL_WRITE_DSN,notEmpty"`

	// Database Connection Pool
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	DBLogLevel     string        `env:"DB_LOG_LEVEL" envDefault:"warn"`

	// Startup retries while the database is not reachable yet
	DBConnectAttempts   int           `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`
	DBConnectRetryDelay time.Duration `env:"DB_CONNECT_RETRY_DELAY" envDefault:"1s"`

	// Storage Backend Selection: "s3" or "local"
	StorageBackend string `env:"PICTURE_STORAGE_BACKEND" envDefault:"local"`

	// Local Storage Configuration
	LocalStoragePath    string `env:"PICTURE_LOCAL_STORAGE_PATH" envDefault:"./picture-data"`
	LocalStorageBaseURL string `env:"PICTURE_LOCAL_STORAGE_BASE_URL" envDefault:"http://localhost:8290/files"`

	// S3 Storage Configuration
	S3Endpoint       string        `env:"PICTURE_S3_ENDPOINT"`
	S3PublicEndpoint string        `env:"PICTURE_S3_PUBLIC_ENDPOINT"`
	S3Region         string        `env:"PICTURE_S3_REGION" envDefault:"us-west-2"`
	S3Bucket         string        `env:"PICTURE_S3_BUCKET"`
	S3AccessKeyID    string        `env:"PICTURE_S3_ACCESS_KEY_ID"`
	S3SecretKey      string        `env:"PICTURE_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool          `env:"PICTURE_S3_USE_PATH_STYLE" envDefault:"true"`
	S3PresignTTL     time.Duration `env:"PICTURE_S3_PRESIGN_TTL" envDefault:"24h"`

	// Picture Configuration
	MaxPictureBytes    int64  `env:"PICTURE_MAX_BYTES" envDefault:"10485760"`
	DefaultDescription string `env:"PICTURE_DEFAULT_DESCRIPTION" envDefault:"No description available."`

	// Redis backs the listing cache and the ledger lock when set
	RedisURL string `env:"REDIS_URL"`

	// Listing cache: "auto" (redis when REDIS_URL is set, otherwise off), "redis", "memory" or "off".
	// A memory cache only sees this process's mutations; picturectl ledger compact cannot clear it.
	ListCacheBackend string        `env:"PICTURE_LIST_CACHE_BACKEND" envDefault:"auto"`
	ListCacheTTL     time.Duration `env:"PICTURE_LIST_CACHE_TTL" envDefault:"5m"`

	// Ledger maintenance
	LedgerLockTTL       time.Duration `env:"PICTURE_LEDGER_LOCK_TTL" envDefault:"30s"`
	LedgerAuditSchedule string        `env:"PICTURE_LEDGER_AUDIT_SCHEDULE"`
	LedgerAutoCompact   bool          `env:"PICTURE_LEDGER_AUTO_COMPACT" envDefault:"false"`

	// Authentication
	AuthEnabled bool   `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer  string `env:"AUTH_ISSUER"`
	Account     string `env:"ACCOUNT"`
	AuthJWKSURL string `env:"AUTH_JWKS_URL"`
	// Role admin tokens must carry; empty accepts any valid token
	AuthAdminRole string `env:"AUTH_ADMIN_ROLE"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.S3Bucket = strings.TrimSpace(c.S3Bucket)
	c.S3AccessKeyID = strings.TrimSpace(c.S3AccessKeyID)
	c.S3SecretKey = strings.TrimSpace(c.S3SecretKey)
	c.S3Endpoint = strings.TrimSpace(c.S3Endpoint)
	c.S3PublicEndpoint = strings.TrimSpace(c.S3PublicEndpoint)
	c.LocalStorageBaseURL = strings.TrimRight(strings.TrimSpace(c.LocalStorageBaseURL), "/")
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.ListCacheBackend = strings.ToLower(strings.TrimSpace(c.ListCacheBackend))
	c.LedgerAuditSchedule = strings.TrimSpace(c.LedgerAuditSchedule)

	if c.MaxPictureBytes <= 0 {
		c.MaxPictureBytes = 10 * 1024 * 1024
	}
	if strings.TrimSpace(c.DefaultDescription) == "" {
		c.DefaultDescription = "No description available."
	}

	switch {
	case c.IsLocalStorage():
		if strings.TrimSpace(c.LocalStoragePath) == "" {
			return fmt.Errorf("PICTURE_LOCAL_STORAGE_PATH is required when PICTURE_STORAGE_BACKEND is local")
		}
	case c.IsS3Storage():
		if c.S3Bucket == "" {
			return fmt.Errorf("PICTURE_S3_BUCKET is required when PICTURE_STORAGE_BACKEND is s3")
		}
		if c.S3PresignTTL <= 0 {
			c.S3PresignTTL = 24 * time.Hour
		}
	default:
		return fmt.Errorf("unsupported PICTURE_STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.ListCacheBackend {
	case "", "auto", ListCacheOff, ListCacheMemory:
	case ListCacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when PICTURE_LIST_CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unsupported PICTURE_LIST_CACHE_BACKEND %q", c.ListCacheBackend)
	}
	// Cached listings carry presigned URLs, which must outlive the cache entry.
	if c.IsS3Storage() && c.S3PublicEndpoint == "" && c.ListCacheEnabled() && c.ListCacheTTL >= c.S3PresignTTL {
		return fmt.Errorf("PICTURE_LIST_CACHE_TTL (%s) must be shorter than PICTURE_S3_PRESIGN_TTL (%s) when listings carry presigned URLs",
			c.ListCacheTTL, c.S3PresignTTL)
	}
	if c.LedgerLockTTL <= 0 {
		c.LedgerLockTTL = 30 * time.Second
	}

	if c.AuthEnabled {
		if strings.TrimSpace(c.AuthIssuer) == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_ENABLED is true")
		}
		if strings.TrimSpace(c.AuthJWKSURL) == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_ENABLED is true")
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// IsLocalStorage returns true if local storage backend is configured.
func (c *Config) IsLocalStorage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "local"
}

// IsS3Storage returns true if S3 storage backend is configured.
func (c *Config) IsS3Storage() bool {
	return strings.ToLower(strings.TrimSpace(c.StorageBackend)) == "s3"
}

// Listing cache modes returned by ListCacheMode.
const (
	ListCacheRedis  = "redis"
	ListCacheMemory = "memory"
	ListCacheOff    = "off"
)

// ListCacheMode resolves PICTURE_LIST_CACHE_BACKEND against REDIS_URL and the TTL.
func (c *Config) ListCacheMode() string {
	if c.ListCacheTTL <= 0 {
		return ListCacheOff
	}
	switch c.ListCacheBackend {
	case ListCacheRedis, ListCacheMemory, ListCacheOff:
		return c.ListCacheBackend
	}
	if c.RedisEnabled() {
		return ListCacheRedis
	}
	return ListCacheOff
}

// ListCacheEnabled reports whether list projections are cached at all.
func (c *Config) ListCacheEnabled() bool {
	return c.ListCacheMode() != ListCacheOff
}

// RedisEnabled reports whether a Redis server is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}
