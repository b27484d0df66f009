package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	JWT     JWTConfig
	OTEL    OTELConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	MaxUploadSizeMB int64
}

// StorageConfig holds the S3-compatible object storage configuration
type StorageConfig struct {
	AccountID         string
	Endpoint          string // overrides the R2 endpoint derived from AccountID
	AccessKeyID       string
	SecretAccessKey   string
	Bucket            string
	PublicURL         string
	Region            string
	PartSizeMB        int64
	UploadConcurrency int
}

// RedisConfig holds Redis connection configuration.
// An empty Addr disables idempotent replays.
type RedisConfig struct {
	Addr           string
	Password       string
	IdempotencyTTL time.Duration
}

// JWTConfig holds bearer token configuration.
// An empty Secret leaves the upload API unauthenticated.
type JWTConfig struct {
	Secret string
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	Endpoint       string
	URLPath        string
	ServiceName    string
	ServiceVersion string
	Headers        map[string]string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("APP_ENV", "development"),
			MaxUploadSizeMB: getEnvAsInt64("MAX_UPLOAD_SIZE_MB", 50),
		},
		Storage: StorageConfig{
			AccountID:         getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			Endpoint:          getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:       getEnv("CLOUDFLARE_ACCESS_KEY_ID", ""),
			SecretAccessKey:   getEnv("CLOUDFLARE_SECRET_ACCESS_KEY", ""),
			Bucket:            getEnv("CLOUDFLARE_BUCKET", ""),
			PublicURL:         getEnv("CLOUDFLARE_PUBLIC_URL", ""),
			Region:            getEnv("STORAGE_REGION", "auto"),
			PartSizeMB:        getEnvAsInt64("STORAGE_PART_SIZE_MB", 5),
			UploadConcurrency: int(getEnvAsInt64("STORAGE_UPLOAD_CONCURRENCY", 5)),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			IdempotencyTTL: getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_ENDPOINT", "localhost:4318"),
			URLPath:        getEnv("OTEL_URL_PATH", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "upload-server"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Headers:        parseHeaders(getEnv("OTEL_HEADERS", "")),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Storage.AccountID == "" && c.Storage.Endpoint == "" {
		return fmt.Errorf("CLOUDFLARE_ACCOUNT_ID or STORAGE_ENDPOINT is required")
	}
	if c.Storage.AccessKeyID == "" {
		return fmt.Errorf("CLOUDFLARE_ACCESS_KEY_ID is required")
	}
	if c.Storage.SecretAccessKey == "" {
		return fmt.Errorf("CLOUDFLARE_SECRET_ACCESS_KEY is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("CLOUDFLARE_BUCKET is required")
	}
	if c.Storage.PublicURL == "" {
		return fmt.Errorf("CLOUDFLARE_PUBLIC_URL is required")
	}
	u, err := url.Parse(c.Storage.PublicURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("CLOUDFLARE_PUBLIC_URL must be an absolute http(s) url")
	}
	if c.Storage.PartSizeMB < 5 {
		// S3 multipart parts must be at least 5MB
		return fmt.Errorf("STORAGE_PART_SIZE_MB must be at least 5")
	}
	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive")
	}
	return nil
}

// IsProduction returns true when the app is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ResolvedEndpoint returns the S3 API endpoint for the configured account
func (s StorageConfig) ResolvedEndpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// parseHeaders reads "k1=v1,k2=v2" as used by OTEL_EXPORTER_OTLP_HEADERS
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}
