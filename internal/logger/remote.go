package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultRemoteQueueSize    = 1024
	defaultRemoteFlushTimeout = 5 * time.Second
)

// RemoteOptions configures log shipping to a remote sink.
type RemoteOptions struct {
	// Level is the minimum level shipped (default: info). Debug output such
	// as per-command traces stays on stdout.
	Level        slog.Leveler
	QueueSize    int
	FlushTimeout time.Duration
}

type shipment struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// remoteQueue feeds every handler derived from one RemoteHandler to a single
// shipping goroutine.
type remoteQueue struct {
	root         slog.Handler
	flushTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan shipment
	done   chan struct{}

	overflow atomic.Uint64 // dropped since the last overflow report
	lost     atomic.Uint64
}

func newRemoteQueue(root slog.Handler, opts RemoteOptions) *remoteQueue {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultRemoteQueueSize
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = defaultRemoteFlushTimeout
	}

	q := &remoteQueue{
		root:         root,
		flushTimeout: flush,
		ch:           make(chan shipment, size),
		done:         make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *remoteQueue) loop() {
	defer close(q.done)
	for s := range q.ch {
		if n := q.overflow.Swap(0); n > 0 {
			q.reportOverflow(n)
		}
		_ = s.handler.Handle(s.ctx, s.record)
	}
	if n := q.overflow.Swap(0); n > 0 {
		q.reportOverflow(n)
	}
}

// reportOverflow tells the remote sink how many records it never got.
func (q *remoteQueue) reportOverflow(n uint64) {
	r := slog.NewRecord(time.Now(), slog.LevelWarn, "Remote log queue overflowed", 0)
	r.AddAttrs(slog.Uint64("dropped", n))
	_ = q.root.Handle(context.Background(), r)
}

func (q *remoteQueue) push(s shipment) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.lost.Add(1)
		return
	}
	select {
	case q.ch <- s:
	default:
		q.overflow.Add(1)
		q.lost.Add(1)
	}
}

func (q *remoteQueue) shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RemoteHandler ships records to a slower remote handler from a background
// goroutine. Logging never waits on the network: when the queue is full the
// record is dropped and the drop is reported with the next shipment.
type RemoteHandler struct {
	q       *remoteQueue
	handler slog.Handler
	level   slog.Leveler
}

// NewRemoteHandler starts the shipping goroutine for handler.
func NewRemoteHandler(handler slog.Handler, opts RemoteOptions) *RemoteHandler {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &RemoteHandler{
		q:       newRemoteQueue(handler, opts),
		handler: handler,
		level:   level,
	}
}

// Enabled reports whether records at level are shipped.
func (h *RemoteHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.handler.Enabled(ctx, level)
}

// Handle queues a copy of r. The request context may be canceled before the
// record is shipped, so only its values travel with it.
func (h *RemoteHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	h.q.push(shipment{
		ctx:     context.WithoutCancel(ctx),
		record:  r.Clone(),
		handler: h.handler,
	})
	return nil
}

func (h *RemoteHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RemoteHandler{q: h.q, handler: h.handler.WithAttrs(attrs), level: h.level}
}

func (h *RemoteHandler) WithGroup(name string) slog.Handler {
	return &RemoteHandler{q: h.q, handler: h.handler.WithGroup(name), level: h.level}
}

// Lost returns how many records never reached the queue.
func (h *RemoteHandler) Lost() uint64 {
	if h == nil {
		return 0
	}
	return h.q.lost.Load()
}

// Shutdown ships what is queued, waiting up to the flush timeout when ctx
// has no deadline.
func (h *RemoteHandler) Shutdown(ctx context.Context) error {
	if h == nil {
		return nil
	}
	return h.q.shutdown(ctx)
}

// tee writes every record to local and offers it to remote. Only local
// errors reach the caller.
type tee struct {
	local, remote slog.Handler
}

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	return t.local.Enabled(ctx, level) || t.remote.Enabled(ctx, level)
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	if t.remote.Enabled(ctx, r.Level) {
		_ = t.remote.Handle(ctx, r.Clone())
	}
	if !t.local.Enabled(ctx, r.Level) {
		return nil
	}
	return t.local.Handle(ctx, r)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return tee{local: t.local.WithAttrs(attrs), remote: t.remote.WithAttrs(attrs)}
}

func (t tee) WithGroup(name string) slog.Handler {
	return tee{local: t.local.WithGroup(name), remote: t.remote.WithGroup(name)}
}
