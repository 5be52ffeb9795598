package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// All Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Card store metrics
	CommandsTotal *prometheus.CounterVec

	// Crop pipeline metrics
	CropsTotal          *prometheus.CounterVec
	CropDurationSeconds *prometheus.HistogramVec

	// Resource registry metrics
	ResourcesLive          prometheus.Gauge
	ResourcesReleasedTotal prometheus.Counter

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsEvictedTotal prometheus.Counter

	// Asset publishing metrics
	AssetsPublishedTotal *prometheus.CounterVec
	SingleflightDedup    *prometheus.CounterVec
	AssetsIndexed        prometheus.Gauge

	// Audience estimate metrics
	EstimatesTotal          *prometheus.CounterVec
	EstimateDurationSeconds prometheus.Histogram

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
	RateLimiterKeys    *prometheus.GaugeVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_commands_total",
				Help: "Total number of card store commands by command and result",
			},
			[]string{"command", "result"}, // result: ok, rejected
		),

		CropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_crops_total",
				Help: "Total number of image crops by trigger and result",
			},
			[]string{"trigger", "result"}, // trigger: manual, auto; result: ok, error, stale
		),

		CropDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "composer_crop_duration_seconds",
				Help:    "Image crop duration in seconds by trigger",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"trigger"},
		),

		ResourcesLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "composer_resources_live",
			Help: "Number of live image resource handles",
		}),

		ResourcesReleasedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "composer_resources_released_total",
			Help: "Total number of released image resource handles",
		}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "composer_sessions_active",
			Help: "Number of open composer sessions",
		}),

		SessionsEvictedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "composer_sessions_evicted_total",
			Help: "Total number of sessions closed for being idle",
		}),

		AssetsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_assets_published_total",
				Help: "Total number of published image assets by backend and result",
			},
			[]string{"backend", "result"}, // result: uploaded, cached, error
		),

		SingleflightDedup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_singleflight_dedup_total",
				Help: "Total number of requests deduplicated by singleflight",
			},
			[]string{"module"},
		),

		AssetsIndexed: factory.NewGauge(prometheus.GaugeOpts{
			Name: "composer_assets_indexed",
			Help: "Number of published assets in the content-addressed index",
		}),

		EstimatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_audience_estimates_total",
				Help: "Total number of audience estimates by result",
			},
			[]string{"result"}, // result: ok, error, superseded
		),

		EstimateDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "composer_audience_estimate_duration_seconds",
			Help:    "Audience estimate duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_rate_limiter_dropped_total",
				Help: "Total requests dropped by rate limiters",
			},
			[]string{"limiter"}, // limiter: upload, estimate
		),

		RateLimiterKeys: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "composer_rate_limiter_keys",
				Help: "Number of keys currently tracked by a rate limiter",
			},
			[]string{"limiter"},
		),

		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "composer_http_errors_total",
				Help: "Total HTTP errors by error code and route",
			},
			[]string{"code", "route"},
		),
	}
}

// RecordCommand records a card store command outcome.
func (m *Metrics) RecordCommand(command, result string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordCrop records a crop outcome and its duration.
func (m *Metrics) RecordCrop(trigger, result string, duration float64) {
	if m == nil {
		return
	}
	m.CropsTotal.WithLabelValues(trigger, result).Inc()
	m.CropDurationSeconds.WithLabelValues(trigger).Observe(duration)
}

// SetResourcesLive sets the live handle gauge.
func (m *Metrics) SetResourcesLive(n int) {
	if m == nil {
		return
	}
	m.ResourcesLive.Set(float64(n))
}

// RecordResourceReleased counts one released handle.
func (m *Metrics) RecordResourceReleased() {
	if m == nil {
		return
	}
	m.ResourcesReleasedTotal.Inc()
}

// SetSessionsActive sets the open session gauge.
func (m *Metrics) SetSessionsActive(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordSessionEvicted counts one idle session eviction.
func (m *Metrics) RecordSessionEvicted() {
	if m == nil {
		return
	}
	m.SessionsEvictedTotal.Inc()
}

// RecordAssetPublished records an asset publish outcome.
func (m *Metrics) RecordAssetPublished(backend, result string) {
	if m == nil {
		return
	}
	m.AssetsPublishedTotal.WithLabelValues(backend, result).Inc()
}

// RecordSingleflightDedup counts a deduplicated call.
func (m *Metrics) RecordSingleflightDedup(module string) {
	if m == nil {
		return
	}
	m.SingleflightDedup.WithLabelValues(module).Inc()
}

// RecordEstimate records an audience estimate outcome.
func (m *Metrics) RecordEstimate(result string, duration float64) {
	if m == nil {
		return
	}
	m.EstimatesTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		m.EstimateDurationSeconds.Observe(duration)
	}
}

// RecordHTTPError records an API error response.
func (m *Metrics) RecordHTTPError(code, route string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(code, route).Inc()
}

// SetAssetsIndexed sets the number of indexed published assets.
func (m *Metrics) SetAssetsIndexed(n int) {
	if m == nil {
		return
	}
	m.AssetsIndexed.Set(float64(n))
}

// RecordRateLimiterDrop records a request dropped by a rate limiter.
func (m *Metrics) RecordRateLimiterDrop(limiter string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiter).Inc()
}

// SetRateLimiterKeys updates the number of tracked keys for a limiter.
func (m *Metrics) SetRateLimiterKeys(limiter string, count int) {
	if m == nil {
		return
	}
	m.RateLimiterKeys.WithLabelValues(limiter).Set(float64(count))
}
