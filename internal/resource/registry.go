// Package resource owns the in-memory image blobs referenced by cards.
// A card holds a Handle; the bytes live here until the handle is released.
package resource

import (
	"fmt"
	"sync"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/google/uuid"
)

// Handle references one live blob. The zero value means "no image".
type Handle string

// IsZero reports whether h references nothing.
func (h Handle) IsZero() bool { return h == "" }

// Blob is an encoded image plus its pixel size.
type Blob struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Releaser frees a handle. Releasing an unknown or zero handle is a no-op.
type Releaser interface {
	Release(h Handle)
}

// Duplicator gives a copied card its own handle to the same bytes.
type Duplicator interface {
	Duplicate(h Handle) (Handle, error)
}

// Registry is a concurrency-safe blob store keyed by Handle.
type Registry struct {
	mu       sync.RWMutex
	blobs    map[Handle]Blob
	released int64
	metrics  *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		blobs:   make(map[Handle]Blob),
		metrics: m,
	}
}

// Put stores b and returns a fresh handle.
func (r *Registry) Put(b Blob) Handle {
	h := Handle(uuid.NewString())

	r.mu.Lock()
	r.blobs[h] = b
	live := len(r.blobs)
	r.mu.Unlock()

	r.metrics.SetResourcesLive(live)
	return h
}

// Get returns the blob for h.
func (r *Registry) Get(h Handle) (Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[h]
	return b, ok
}

// Duplicate registers a second handle for the blob behind h.
// Blob bytes are never mutated, so the copy shares the backing array.
func (r *Registry) Duplicate(h Handle) (Handle, error) {
	if h.IsZero() {
		return "", nil
	}
	b, ok := r.Get(h)
	if !ok {
		return "", fmt.Errorf("duplicate %s: %w", h, domerrors.ErrNotFound)
	}
	return r.Put(b), nil
}

// Release drops h.
func (r *Registry) Release(h Handle) {
	if h.IsZero() {
		return
	}

	r.mu.Lock()
	_, ok := r.blobs[h]
	if ok {
		delete(r.blobs, h)
		r.released++
	}
	live := len(r.blobs)
	r.mu.Unlock()

	if ok {
		r.metrics.RecordResourceReleased()
		r.metrics.SetResourcesLive(live)
	}
}

// Live returns the number of live handles.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

// Released returns how many handles have been released so far.
func (r *Registry) Released() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.released
}
