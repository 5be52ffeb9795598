package config

import "time"

// HTTP server timeouts
const (
	// HTTPReadHeader bounds slow clients before the body is read.
	HTTPReadHeader = 10 * time.Second

	// HTTPRead covers a 5 MB image upload on a slow link.
	HTTPRead = 60 * time.Second

	// HTTPWrite must exceed CropDefault plus publish time.
	HTTPWrite = 90 * time.Second

	HTTPIdle = 120 * time.Second

	// ReadinessCheckTimeout bounds the database ping of /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Composer defaults
const (
	// CropDefault bounds one decode, crop, scale and encode pass.
	CropDefault = 30 * time.Second

	// QuotaDebounce is how long the estimator waits after the last request.
	QuotaDebounce = 500 * time.Millisecond

	// EstimateTimeout bounds one quota lookup against LINE.
	EstimateTimeout = 10 * time.Second

	// SessionTTL is how long an idle composer session is kept.
	SessionTTL = 2 * time.Hour

	// SessionSweepInterval is how often idle sessions are evicted.
	SessionSweepInterval = time.Minute

	// AssetStatsInterval is how often the asset index size is sampled.
	AssetStatsInterval = 5 * time.Minute
)

// Rate limiter housekeeping
const (
	// RateLimiterCleanupInterval is how often idle limiter keys are dropped.
	RateLimiterCleanupInterval = 5 * time.Minute
)
