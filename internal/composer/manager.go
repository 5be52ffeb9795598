package composer

import (
	"context"
	"sync"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/assets"
	"github.com/garyellow/line-carousel-composer/internal/carousel"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/flexgen"
	"github.com/garyellow/line-carousel-composer/internal/imagecrop"
	"github.com/garyellow/line-carousel-composer/internal/logger"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/google/uuid"
)

const (
	msgSessionNotFound = "找不到編輯階段，請重新開始"
	msgTooManySessions = "目前使用人數過多，請稍後再試"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	TTL         time.Duration
	MaxSessions int
	CopyLimit   int
	CropTimeout time.Duration

	Registry  *resource.Registry
	Pipeline  *imagecrop.Pipeline
	Publisher *assets.Publisher
	// PreviewURL maps a live handle to a URL for the editor preview.
	// Defaults to placeholder URLs.
	PreviewURL flexgen.ImageResolver

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Manager owns the live sessions and evicts idle ones.
type Manager struct {
	cfg ManagerConfig
	log *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Zero values fall back to defaults.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.CopyLimit <= 0 {
		cfg.CopyLimit = carousel.DefaultCopyCap
	}
	if cfg.CropTimeout <= 0 {
		cfg.CropTimeout = 30 * time.Second
	}
	if cfg.Registry == nil {
		cfg.Registry = resource.NewRegistry(cfg.Metrics)
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = imagecrop.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Manager{
		cfg:      cfg,
		log:      cfg.Logger.WithModule("composer"),
		sessions: make(map[string]*Session),
	}
}

// Registry returns the blob registry shared by all sessions.
func (m *Manager) Registry() *resource.Registry {
	return m.cfg.Registry
}

// Create starts a session holding one default card.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		// Make room from idle sessions before refusing
		m.Sweep(time.Now())
		m.mu.Lock()
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, domerrors.NewWrapper("composer", "create_session").Wrap(domerrors.ErrCapacityExceeded, msgTooManySessions)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		store: carousel.NewStore(
			carousel.WithReleaser(m.cfg.Registry),
			carousel.WithDuplicator(m.cfg.Registry),
			carousel.WithCopyLimit(m.cfg.CopyLimit),
		),
		registry:    m.cfg.Registry,
		pipeline:    m.cfg.Pipeline,
		publisher:   m.cfg.Publisher,
		preview:     m.cfg.PreviewURL,
		metrics:     m.cfg.Metrics,
		cropTimeout: m.cfg.CropTimeout,
		ctx:         sctx,
		cancel:      cancel,
	}
	s.log = m.log.WithField("session_id", s.id)
	s.touch()

	m.sessions[s.id] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.cfg.Metrics.SetSessionsActive(active)
	s.log.InfoContext(ctx, "Session created")
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domerrors.NewWrapper("composer", "get_session").Wrap(domerrors.ErrNotFound, msgSessionNotFound)
	}
	return s, nil
}

// Close ends a session and releases its images.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return domerrors.NewWrapper("composer", "close_session").Wrap(domerrors.ErrNotFound, msgSessionNotFound)
	}
	s.Close()
	m.cfg.Metrics.SetSessionsActive(active)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now-TTL and returns how many.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.cfg.TTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.cfg.Metrics.RecordSessionEvicted()
	}
	m.cfg.Metrics.SetSessionsActive(active)
	if len(expired) > 0 {
		m.log.WithField("evicted", len(expired)).
			WithField("active", active).
			Info("Idle sessions evicted")
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is canceled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	m.cfg.Metrics.SetSessionsActive(0)
}
