package ratelimit

import (
	"testing"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKeyedLimiter_Basic(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "upload",
		Burst:         1,
		RefillRate:    0.01,
		CleanupPeriod: time.Hour,
	})
	defer kl.Stop()

	if !kl.Allow("session-1") {
		t.Error("first request should be allowed")
	}
	if kl.Allow("session-1") {
		t.Error("second request should be limited (burst 1)")
	}
	if !kl.Allow("session-2") {
		t.Error("other keys have their own bucket")
	}
	if !kl.Allow("") {
		t.Error("empty key is never limited")
	}
	if got := kl.RetryAfter("session-1"); got <= 0 {
		t.Errorf("RetryAfter() = %v, want positive", got)
	}
	if got := kl.RetryAfter("unknown"); got != 0 {
		t.Errorf("RetryAfter() for unknown key = %v, want 0", got)
	}
}

func TestKeyedLimiter_Metrics(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "estimate",
		Burst:         1,
		RefillRate:    0.01,
		CleanupPeriod: time.Hour,
		Metrics:       m,
	})
	defer kl.Stop()

	kl.Allow("k")
	kl.Allow("k")
	kl.Allow("k")

	if got := testutil.ToFloat64(m.RateLimiterDropped.WithLabelValues("estimate")); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{
		Name:          "cleanup",
		Burst:         10,
		RefillRate:    1000,
		CleanupPeriod: time.Hour,
	})
	defer kl.Stop()

	kl.Allow("a")
	if got := kl.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := kl.Cleanup(); got != 0 {
		t.Errorf("Cleanup() left %d keys, want 0", got)
	}
}

func TestKeyedLimiter_StopTwice(t *testing.T) {
	t.Parallel()
	kl := NewKeyedLimiter(KeyedConfig{Name: "stop", Burst: 1, RefillRate: 1})
	kl.Stop()
	kl.Stop()
}
