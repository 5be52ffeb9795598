package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/logger"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/garyellow/line-carousel-composer/internal/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// KeyPrefix is the object key prefix for published images.
const KeyPrefix = "images/"

// hashLen is how many hex characters of the digest go into the key.
const hashLen = 24

const msgPublishFailed = "圖片上傳失敗，請稍後再試"

// BlobSource resolves live handles to bytes.
type BlobSource interface {
	Get(h resource.Handle) (resource.Blob, bool)
}

// Publisher uploads image bytes once per distinct content.
type Publisher struct {
	backend Backend
	repo    storage.AssetRepository
	metrics *metrics.Metrics
	log     *logger.Logger
	group   singleflight.Group
	workers int
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics records publish outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// WithWorkers limits concurrent uploads in PublishAll.
func WithWorkers(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPublisher creates a publisher writing to backend and indexing in repo.
func NewPublisher(backend Backend, repo storage.AssetRepository, opts ...Option) *Publisher {
	p := &Publisher{
		backend: backend,
		repo:    repo,
		log:     logger.Nop(),
		workers: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithModule("assets")
	return p
}

// ObjectKey returns the content-addressed key for data.
func ObjectKey(data []byte, contentType string) (key, digest string) {
	sum := sha256.Sum256(data)
	digest = hex.EncodeToString(sum[:])
	ext := ".jpg"
	if mt := mimetype.Lookup(contentType); mt != nil && mt.Extension() != "" {
		ext = mt.Extension()
	}
	return KeyPrefix + digest[:hashLen] + ext, digest
}

// Publish uploads data and returns its public URL. Identical bytes are
// uploaded once, both across time (asset index) and across concurrent
// callers (singleflight).
func (p *Publisher) Publish(ctx context.Context, data []byte, contentType string) (string, error) {
	key, digest := ObjectKey(data, contentType)

	v, err, shared := p.group.Do(digest, func() (any, error) {
		return p.publish(ctx, key, digest, data, contentType)
	})
	if shared {
		p.metrics.RecordSingleflightDedup("assets")
	}
	if err != nil {
		p.metrics.RecordAssetPublished(p.backend.Name(), "error")
		return "", domerrors.NewWrapper("assets", "publish").Wrap(err, msgPublishFailed)
	}
	return v.(string), nil
}

func (p *Publisher) publish(ctx context.Context, key, digest string, data []byte, contentType string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	existing, err := p.repo.GetAssetByHash(ctx, digest)
	switch {
	case err == nil && existing.Backend == p.backend.Name():
		p.metrics.RecordAssetPublished(p.backend.Name(), "cached")
		return existing.URL, nil
	case err != nil && !domerrors.IsNotFound(err):
		// The index is an optimization; fall through to a fresh upload
		p.log.WithError(err).WarnContext(ctx, "Asset index lookup failed")
	}

	start := time.Now()
	url, err := p.backend.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	if err := p.repo.SaveAsset(ctx, &storage.Asset{
		SHA256:      digest,
		ObjectKey:   key,
		URL:         url,
		ContentType: contentType,
		Size:        int64(len(data)),
		Backend:     p.backend.Name(),
	}); err != nil {
		p.log.WithError(err).WarnContext(ctx, "Failed to index published asset")
	}

	p.metrics.RecordAssetPublished(p.backend.Name(), "uploaded")
	p.log.WithField("key", key).
		WithField("size", len(data)).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		DebugContext(ctx, "Asset published")
	return url, nil
}

// PublishAll uploads every handle concurrently and returns handle→URL.
// Duplicate and zero handles are skipped. The first failure cancels the rest.
func (p *Publisher) PublishAll(ctx context.Context, src BlobSource, handles []resource.Handle) (map[resource.Handle]string, error) {
	unique := make([]resource.Handle, 0, len(handles))
	seen := make(map[resource.Handle]bool, len(handles))
	for _, h := range handles {
		if h.IsZero() || seen[h] {
			continue
		}
		seen[h] = true
		unique = append(unique, h)
	}

	urls := make([]string, len(unique))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, h := range unique {
		g.Go(func() error {
			blob, ok := src.Get(h)
			if !ok {
				return fmt.Errorf("image %s: %w", h, domerrors.ErrNotFound)
			}
			url, err := p.Publish(ctx, blob.Data, blob.ContentType)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[resource.Handle]string, len(unique))
	for i, h := range unique {
		out[h] = urls[i]
	}
	return out, nil
}

// Backend returns the configured backend.
func (p *Publisher) Backend() Backend {
	return p.backend
}
