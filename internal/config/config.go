package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Observability (optional)
	SentryDSN string

	// Storage backend: "local", "s3" or "minio"
	StorageBackend   string
	StorageLocalRoot string

	// Storage - S3-compatible (AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string // Optional: for non-AWS providers

	// Storage - MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Uploads
	UploadMaxBytes   int64
	UploadRateLimit  int           // Uploads allowed per identity per window
	UploadRateWindow time.Duration

	// Background purge of blobs whose delete failed; 0 disables
	PurgeInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "taskfiles"),
		AppEnv:  envRequired("APP_ENV"), // Required: 'development' or 'production'
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", "./data/taskfiles.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"),

		// Security
		JWTSecret: envRequired("JWT_SECRET"),
		JWTExpiry: envDuration("JWT_EXPIRY", 24*time.Hour),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Storage
		StorageBackend:   envString("STORAGE_BACKEND", "local"),
		StorageLocalRoot: envString("STORAGE_LOCAL_ROOT", "./data/blobs"),

		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),

		MinioEndpoint:  envString("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: envString("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: envString("MINIO_SECRET_KEY", ""),
		MinioBucket:    envString("MINIO_BUCKET", "attachments"),
		MinioUseSSL:    envBool("MINIO_USE_SSL", false),

		// Uploads
		UploadMaxBytes:   envInt64("UPLOAD_MAX_BYTES", 25<<20), // 25MB
		UploadRateLimit:  int(envInt64("UPLOAD_RATE_LIMIT", 60)),
		UploadRateWindow: envDuration("UPLOAD_RATE_WINDOW", time.Minute),

		PurgeInterval: envDuration("PURGE_INTERVAL", 10*time.Minute),
	}

	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures a production deployment does not silently run on throwaway defaults.
func validateProduction(cfg *Config) {
	if len(cfg.JWTSecret) < 32 {
		slog.Error("production deployment requires a JWT_SECRET of at least 32 bytes")
		os.Exit(1)
	}
	if cfg.StorageBackend == "s3" && cfg.S3Bucket == "" {
		slog.Error("production deployment with STORAGE_BACKEND=s3 requires S3_BUCKET")
		os.Exit(1)
	}
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("config invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
