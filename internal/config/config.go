/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Storage backend selection for media assets.
type StorageBackend string

const (
	StorageFilesystem StorageBackend = "fs"
	StorageS3         StorageBackend = "s3"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., http://fleet.example.com)
	DBBackend   DatabaseBackend
	DBDSN       string

	// DisplayTimezone is the fixed IANA zone every schedule is evaluated in.
	// A single configuration value replaces the zone literal the previous
	// system repeated in each poll endpoint. Validated at load time.
	DisplayTimezone string

	JWTSigningKey string
	MetricsBind   string

	// Media asset storage
	StorageBackend  StorageBackend
	MediaRoot       string
	MaxUploadSizeMB int

	// S3 object storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Cache & distributed event bus
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	NATSEnabled   bool
	NATSURL       string

	// Analytics retention
	ZoneEventRetention time.Duration

	// Device liveness: a device silent for longer than this is reported offline.
	DeviceOfflineAfter time.Duration
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("HEIMDALL_ENV", "development"),
		HTTPBind:    getEnv("HEIMDALL_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("HEIMDALL_HTTP_PORT", 8080),
		BaseURL:     getEnv("HEIMDALL_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("HEIMDALL_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("HEIMDALL_DB_DSN", ""),

		DisplayTimezone: getEnv("HEIMDALL_DISPLAY_TIMEZONE", "Australia/Melbourne"),

		JWTSigningKey: getEnv("HEIMDALL_JWT_SIGNING_KEY", ""),
		MetricsBind:   getEnv("HEIMDALL_METRICS_BIND", "127.0.0.1:9000"),

		StorageBackend:  StorageBackend(getEnv("HEIMDALL_STORAGE_BACKEND", string(StorageFilesystem))),
		MediaRoot:       getEnv("HEIMDALL_MEDIA_ROOT", "./media"),
		MaxUploadSizeMB: getEnvInt("HEIMDALL_MAX_UPLOAD_SIZE_MB", 256),

		S3AccessKeyID:     getEnv("HEIMDALL_S3_ACCESS_KEY_ID", os.Getenv("AWS_ACCESS_KEY_ID")),
		S3SecretAccessKey: getEnv("HEIMDALL_S3_SECRET_ACCESS_KEY", os.Getenv("AWS_SECRET_ACCESS_KEY")),
		S3Region:          getEnv("HEIMDALL_S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("HEIMDALL_S3_BUCKET", ""),
		S3Endpoint:        getEnv("HEIMDALL_S3_ENDPOINT", ""),
		S3UsePathStyle:    getEnvBool("HEIMDALL_S3_USE_PATH_STYLE", false),

		TracingEnabled:    getEnvBool("HEIMDALL_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("HEIMDALL_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("HEIMDALL_TRACING_SAMPLE_RATE", 1.0),

		RedisAddr:     getEnv("HEIMDALL_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("HEIMDALL_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("HEIMDALL_REDIS_DB", 0),
		CacheEnabled:  getEnvBool("HEIMDALL_CACHE_ENABLED", true),
		NATSEnabled:   getEnvBool("HEIMDALL_NATS_ENABLED", false),
		NATSURL:       getEnv("HEIMDALL_NATS_URL", "nats://localhost:4222"),

		ZoneEventRetention: time.Duration(getEnvInt("HEIMDALL_ZONE_EVENT_RETENTION_DAYS", 90)) * 24 * time.Hour,
		DeviceOfflineAfter: time.Duration(getEnvInt("HEIMDALL_DEVICE_OFFLINE_AFTER_MINUTES", 10)) * time.Minute,
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.StorageBackend != StorageFilesystem && cfg.StorageBackend != StorageS3 {
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("HEIMDALL_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("HEIMDALL_JWT_SIGNING_KEY must be provided")
	}

	// An invalid zone must stop the process here; serving schedule
	// resolutions with a broken timezone silently misfires every device.
	if _, err := time.LoadLocation(cfg.DisplayTimezone); err != nil {
		return nil, fmt.Errorf("invalid HEIMDALL_DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}

	if cfg.StorageBackend == StorageS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("HEIMDALL_S3_BUCKET must be provided when storage backend is s3")
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("HEIMDALL_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}

	return cfg, nil
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// getEnv returns the environment variable value or def when unset.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the integer environment variable value or def.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvBool returns the boolean environment variable value or def.
func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

// getEnvFloat returns the float environment variable value or def.
func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
