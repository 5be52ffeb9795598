// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "COMPOSER_PORT"
	EnvLogLevel        = "COMPOSER_LOG_LEVEL"
	EnvShutdownTimeout = "COMPOSER_SHUTDOWN_TIMEOUT"
	EnvPublicBaseURL   = "COMPOSER_PUBLIC_BASE_URL"

	// Data
	EnvDataDir = "COMPOSER_DATA_DIR"

	// Composer
	EnvSessionTTL     = "COMPOSER_SESSION_TTL"
	EnvMaxSessions    = "COMPOSER_MAX_SESSIONS"
	EnvCopyLimit      = "COMPOSER_COPY_LIMIT"
	EnvCropTimeout    = "COMPOSER_CROP_TIMEOUT"
	EnvQuotaDebounce  = "COMPOSER_QUOTA_DEBOUNCE"
	EnvJPEGQuality    = "COMPOSER_JPEG_QUALITY"
	EnvPublishWorkers = "COMPOSER_PUBLISH_WORKERS"

	// Rate limits
	EnvUploadRateBurst    = "COMPOSER_UPLOAD_RATE_BURST"
	EnvUploadRateRefill   = "COMPOSER_UPLOAD_RATE_REFILL"
	EnvEstimateRateBurst  = "COMPOSER_ESTIMATE_RATE_BURST"
	EnvEstimateRateRefill = "COMPOSER_ESTIMATE_RATE_REFILL"

	// LINE
	EnvLineChannelToken = "COMPOSER_LINE_CHANNEL_TOKEN"

	// Asset backend
	EnvAssetBackend      = "COMPOSER_ASSET_BACKEND"
	EnvR2AccountID       = "COMPOSER_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "COMPOSER_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "COMPOSER_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "COMPOSER_R2_BUCKET_NAME"
	EnvR2PublicURL       = "COMPOSER_R2_PUBLIC_URL"

	// Sentry
	EnvSentryToken       = "COMPOSER_SENTRY_TOKEN"
	EnvSentryHost        = "COMPOSER_SENTRY_HOST"
	EnvSentryEnvironment = "COMPOSER_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "COMPOSER_SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "COMPOSER_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "COMPOSER_BETTERSTACK_ENDPOINT"

	// Metrics Auth
	EnvMetricsUsername = "COMPOSER_METRICS_USERNAME"
	EnvMetricsPassword = "COMPOSER_METRICS_PASSWORD"
)
