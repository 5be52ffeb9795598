// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/assets"
	"github.com/garyellow/line-carousel-composer/internal/audience"
	"github.com/garyellow/line-carousel-composer/internal/buildinfo"
	"github.com/garyellow/line-carousel-composer/internal/composer"
	"github.com/garyellow/line-carousel-composer/internal/config"
	"github.com/garyellow/line-carousel-composer/internal/imagecrop"
	"github.com/garyellow/line-carousel-composer/internal/logger"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/garyellow/line-carousel-composer/internal/r2client"
	"github.com/garyellow/line-carousel-composer/internal/ratelimit"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/garyellow/line-carousel-composer/internal/sentry"
	"github.com/garyellow/line-carousel-composer/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg             *config.Config
	logger          *logger.Logger
	db              *storage.DB
	metrics         *metrics.Metrics
	registry        *prometheus.Registry
	sessions        *composer.Manager
	publisher       *assets.Publisher
	estimator       *audience.Debouncer
	uploadLimiter   *ratelimit.KeyedLimiter
	estimateLimiter *ratelimit.KeyedLimiter
	server          *http.Server
	wg              sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "line-carousel-composer")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Package-level slog calls pick up request_id and session_id too
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing application...")

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("host", cfg.SentryHost).Info("Error tracking enabled")
	}

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	backend, err := newAssetBackend(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("asset backend: %w", err)
	}
	log.WithField("backend", backend.Name()).Info("Asset backend ready")

	publisher := assets.NewPublisher(backend, db,
		assets.WithMetrics(m),
		assets.WithLogger(log),
		assets.WithWorkers(cfg.PublishWorkers),
	)

	sessions := composer.NewManager(composer.ManagerConfig{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
		CopyLimit:   cfg.CopyLimit,
		CropTimeout: cfg.CropTimeout,
		Registry:    resource.NewRegistry(m),
		Pipeline:    imagecrop.New(imagecrop.WithQuality(cfg.JPEGQuality)),
		Publisher:   publisher,
		PreviewURL: func(h resource.Handle) string {
			return cfg.PublicBaseURL + "/api/v1/resources/" + string(h)
		},
		Metrics: m,
		Logger:  log,
	})

	quota, err := audience.NewLineQuota(cfg.LineChannelToken)
	switch {
	case err != nil:
		log.WithError(err).Warn("LINE quota lookup disabled")
		quota = nil
	case quota == nil:
		log.Info("No LINE channel token, quota will be reported as unknown")
	}
	estimator := audience.NewDebouncer(
		audience.NewService(db, quota, m, log, config.EstimateTimeout),
		cfg.QuotaDebounce,
	)

	app := &Application{
		cfg:       cfg,
		logger:    log,
		db:        db,
		metrics:   m,
		registry:  registry,
		sessions:  sessions,
		publisher: publisher,
		estimator: estimator,
		uploadLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "upload",
			Burst:         cfg.UploadRateBurst,
			RefillRate:    cfg.UploadRateRefill,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
		estimateLimiter: ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
			Name:          "estimate",
			Burst:         cfg.EstimateRateBurst,
			RefillRate:    cfg.EstimateRateRefill,
			CleanupPeriod: config.RateLimiterCleanupInterval,
			Metrics:       m,
		}),
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.routes(),
		ReadHeaderTimeout: config.HTTPReadHeader,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func newAssetBackend(ctx context.Context, cfg *config.Config) (assets.Backend, error) {
	if cfg.AssetBackend == config.BackendR2 {
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2.Endpoint(),
			AccessKeyID: cfg.R2.AccessKeyID,
			SecretKey:   cfg.R2.SecretAccessKey,
			BucketName:  cfg.R2.BucketName,
		})
		if err != nil {
			return nil, err
		}
		return assets.NewR2Backend(client, cfg.R2.PublicURL), nil
	}
	return assets.NewLocalBackend(cfg.AssetDir(), cfg.PublicBaseURL+assetsPath)
}

// Handler returns the root HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the background jobs and the HTTP server, then blocks until
// SIGINT or SIGTERM and shuts everything down.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.sessions.Run(ctx, config.SessionSweepInterval)
	})
	a.wg.Go(func() {
		a.updateAssetMetrics(ctx)
	})
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// Close releases every resource without touching the HTTP listener.
func (a *Application) Close() {
	a.sessions.Shutdown()
	a.uploadLimiter.Stop()
	a.estimateLimiter.Stop()
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
}

func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.WithField("sessions", a.sessions.Len()).Info("Closing sessions...")
	a.Close()

	if sentry.IsEnabled() && !sentry.Flush(5*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// updateAssetMetrics samples the size of the published asset index.
func (a *Application) updateAssetMetrics(ctx context.Context) {
	a.recordAssetMetrics(ctx)

	ticker := time.NewTicker(config.AssetStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordAssetMetrics(ctx)
		}
	}
}

func (a *Application) recordAssetMetrics(ctx context.Context) {
	count, err := a.db.CountAssets(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count published assets")
		return
	}
	a.metrics.SetAssetsIndexed(count)
	a.logger.WithField("assets", count).
		WithField("sessions", a.sessions.Len()).
		WithField("resources_live", a.sessions.Registry().Live()).
		Debug("Composer stats")
}
