package audience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned to callers whose request was replaced by a newer
// one for the same key before it completed.
var ErrSuperseded = errors.New("audience: superseded by a newer request")

// Debouncer delays estimates per key and fulfils only the newest request.
// Every request takes a sequence token; a result whose token is no longer
// the latest for its key is discarded.
type Debouncer struct {
	est   Estimator
	delay time.Duration

	mu      sync.Mutex
	counter uint64
	seq     map[string]uint64
}

// NewDebouncer wraps est with a per-key quiet period.
func NewDebouncer(est Estimator, delay time.Duration) *Debouncer {
	return &Debouncer{
		est:   est,
		delay: delay,
		seq:   make(map[string]uint64),
	}
}

func (d *Debouncer) next(key string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	// tokens are unique across keys, so a key forgotten and reused never
	// hands out a token an older waiter still holds
	d.counter++
	d.seq[key] = d.counter
	return d.counter
}

func (d *Debouncer) latest(key string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq[key] == token
}

// forget drops the key once its newest request finished or gave up.
func (d *Debouncer) forget(key string, token uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seq[key] == token {
		delete(d.seq, key)
	}
}

// Estimate waits for the quiet period, then estimates target unless a newer
// request for key arrived meanwhile.
func (d *Debouncer) Estimate(ctx context.Context, key string, target Target) (Estimate, error) {
	token := d.next(key)

	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.forget(key, token)
			return Estimate{}, ctx.Err()
		case <-timer.C:
		}
	}

	if !d.latest(key, token) {
		return Estimate{}, ErrSuperseded
	}

	est, err := d.est.Estimate(ctx, target)
	if !d.latest(key, token) {
		return Estimate{}, ErrSuperseded
	}
	d.forget(key, token)
	return est, err
}

// Pending returns the number of keys with an outstanding request.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seq)
}
