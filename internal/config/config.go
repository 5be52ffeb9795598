// Package config provides application configuration management.
// It loads settings from an optional .env file and COMPOSER_* environment
// variables, applying defaults and validating the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Asset backends.
const (
	BackendLocal = "local"
	BackendR2    = "r2"
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	PublicBaseURL   string // Base URL clients use to reach this server (used for local asset URLs)

	// Data Configuration
	DataDir string // Data directory for SQLite database and local assets

	// Composer Configuration
	SessionTTL     time.Duration
	MaxSessions    int
	CopyLimit      int // Ceiling for copying the active card (default: 4)
	CropTimeout    time.Duration
	QuotaDebounce  time.Duration
	JPEGQuality    int
	PublishWorkers int

	// Rate limits (token bucket per session)
	UploadRateBurst    float64
	UploadRateRefill   float64 // tokens per second
	EstimateRateBurst  float64
	EstimateRateRefill float64 // tokens per second

	// LINE
	LineChannelToken string // Optional: enables the message quota lookup

	// Asset backend
	AssetBackend string // "local" or "r2"
	R2           R2Config

	// Observability
	SentryToken         string
	SentryHost          string
	SentryEnvironment   string
	SentrySampleRate    float64
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)
}

// R2Config holds Cloudflare R2 settings for the asset backend.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // Public bucket URL objects are served from
}

// Endpoint returns the S3-compatible endpoint for the account.
func (r R2Config) Endpoint() string {
	if r.AccountID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.AccountID)
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),
		PublicBaseURL:   strings.TrimRight(getEnv(EnvPublicBaseURL, "http://localhost:10000"), "/"),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		SessionTTL:     getDurationEnv(EnvSessionTTL, SessionTTL),
		MaxSessions:    getIntEnv(EnvMaxSessions, 1000),
		CopyLimit:      getIntEnv(EnvCopyLimit, 4),
		CropTimeout:    getDurationEnv(EnvCropTimeout, CropDefault),
		QuotaDebounce:  getDurationEnv(EnvQuotaDebounce, QuotaDebounce),
		JPEGQuality:    getIntEnv(EnvJPEGQuality, 95),
		PublishWorkers: getIntEnv(EnvPublishWorkers, 4),

		UploadRateBurst:    getFloatEnv(EnvUploadRateBurst, 10),
		UploadRateRefill:   getFloatEnv(EnvUploadRateRefill, 0.5),
		EstimateRateBurst:  getFloatEnv(EnvEstimateRateBurst, 20),
		EstimateRateRefill: getFloatEnv(EnvEstimateRateRefill, 4),

		LineChannelToken: getEnv(EnvLineChannelToken, ""),

		AssetBackend: strings.ToLower(getEnv(EnvAssetBackend, BackendLocal)),
		R2: R2Config{
			AccountID:       getEnv(EnvR2AccountID, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			BucketName:      getEnv(EnvR2BucketName, ""),
			PublicURL:       strings.TrimRight(getEnv(EnvR2PublicURL, ""), "/"),
		},

		SentryToken:         getEnv(EnvSentryToken, ""),
		SentryHost:          getEnv(EnvSentryHost, "errors.betterstack.com"),
		SentryEnvironment:   getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:    getFloatEnv(EnvSentrySampleRate, 1.0),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvSessionTTL, c.SessionTTL))
	}
	if c.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvMaxSessions, c.MaxSessions))
	}
	if c.CopyLimit < 1 || c.CopyLimit > 10 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 10, got %d", EnvCopyLimit, c.CopyLimit))
	}
	if c.CropTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvCropTimeout, c.CropTimeout))
	}
	if c.QuotaDebounce < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative, got %v", EnvQuotaDebounce, c.QuotaDebounce))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 100, got %d", EnvJPEGQuality, c.JPEGQuality))
	}
	if c.PublishWorkers <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", EnvPublishWorkers, c.PublishWorkers))
	}
	if c.UploadRateBurst < 1 || c.UploadRateRefill <= 0 {
		errs = append(errs, fmt.Errorf("%s must be at least 1 and %s positive", EnvUploadRateBurst, EnvUploadRateRefill))
	}
	if c.EstimateRateBurst < 1 || c.EstimateRateRefill <= 0 {
		errs = append(errs, fmt.Errorf("%s must be at least 1 and %s positive", EnvEstimateRateBurst, EnvEstimateRateRefill))
	}

	switch c.AssetBackend {
	case BackendLocal:
		if c.PublicBaseURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for the local asset backend", EnvPublicBaseURL))
		}
	case BackendR2:
		if c.R2.AccountID == "" || c.R2.AccessKeyID == "" || c.R2.SecretAccessKey == "" || c.R2.BucketName == "" {
			errs = append(errs, errors.New("R2 asset backend requires account id, access key id, secret and bucket name"))
		}
		if c.R2.PublicURL == "" {
			errs = append(errs, fmt.Errorf("%s is required for the r2 asset backend", EnvR2PublicURL))
		}
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvAssetBackend, BackendLocal, BackendR2, c.AssetBackend))
	}

	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "composer.db")
}

// AssetDir returns the directory used by the local asset backend.
func (c *Config) AssetDir() string {
	return filepath.Join(c.DataDir, "assets")
}

// MetricsAuthEnabled reports whether /metrics requires Basic Auth.
func (c *Config) MetricsAuthEnabled() bool {
	return c.MetricsPassword != ""
}
