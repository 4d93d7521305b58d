// Package governor bounds the rate of outbound read requests per logical
// backend endpoint. Requests beyond the per-window allowance are queued FIFO
// and drained one at a time, so nothing is dropped and the backend is never
// hit with a burst larger than the policy allows.
package governor

import (
	"context"
	"sync"
	"time"

	"github.com/sabora/client_layer/internal/app/metrics"
	"github.com/sabora/client_layer/pkg/logger"
)

// Policy is the per-endpoint admission policy.
type Policy struct {
	// MaxRequestsPerWindow is the number of requests admitted immediately
	// within one window.
	MaxRequestsPerWindow int
	// Window is the fixed interval the admission count is scoped to.
	Window time.Duration
	// RequestDelay is the pause between consecutive drained queue entries.
	RequestDelay time.Duration
}

// DefaultPolicy returns the policy the platform ships with.
func DefaultPolicy() Policy {
	return Policy{
		MaxRequestsPerWindow: 3,
		Window:               2 * time.Second,
		RequestDelay:         300 * time.Millisecond,
	}
}

// RequestFunc is a deferred backend call.
type RequestFunc func(ctx context.Context) (interface{}, error)

type outcome struct {
	value interface{}
	err   error
}

type call struct {
	ctx      context.Context
	fn       RequestFunc
	result   chan outcome
	enqueued time.Time
}

// counter tracks admissions and deferred calls for one endpoint. Entries are
// created lazily on first use and swept once stale and idle.
type counter struct {
	count       int
	windowStart time.Time
	queue       []*call
	processing  bool
}

// Governor is an explicitly owned request limiter registry. Construct one and
// pass it by reference; there is no package-level instance.
type Governor struct {
	mu        sync.Mutex
	policy    Policy
	endpoints map[string]*counter
	now       func() time.Time
	log       *logger.Logger
}

// New creates a governor with the given policy. A nil now falls back to
// time.Now; a nil log falls back to a default logger.
func New(policy Policy, log *logger.Logger, now func() time.Time) *Governor {
	if policy.MaxRequestsPerWindow <= 0 {
		policy.MaxRequestsPerWindow = 1
	}
	if policy.Window <= 0 {
		policy.Window = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.NewDefault("governor")
	}
	return &Governor{
		policy:    policy,
		endpoints: make(map[string]*counter),
		now:       now,
		log:       log,
	}
}

// Allow reports whether an immediate call to endpoint is permitted and, when
// it is, reserves the slot. The reservation is not idempotent: two calls
// consume two slots.
func (g *Governor) Allow(endpoint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	return g.allowLocked(endpoint)
}

// Do executes fn under the endpoint's policy. When a slot is free fn runs
// immediately on the calling goroutine; otherwise the call joins the
// endpoint's FIFO queue and Do blocks until its turn completes. A queued call
// has no timeout and cannot be cancelled; fn still receives ctx and is
// expected to honour it once it runs.
func (g *Governor) Do(ctx context.Context, endpoint string, fn RequestFunc) (interface{}, error) {
	g.mu.Lock()
	g.sweepLocked()
	if g.allowLocked(endpoint) {
		g.mu.Unlock()
		metrics.RecordAdmission(endpoint)
		return fn(ctx)
	}

	c := &call{
		ctx:      ctx,
		fn:       fn,
		result:   make(chan outcome, 1),
		enqueued: g.now(),
	}
	st := g.endpoints[endpoint]
	st.queue = append(st.queue, c)
	startDrain := !st.processing
	if startDrain {
		st.processing = true
	}
	queued := len(st.queue)
	g.mu.Unlock()

	metrics.RecordQueued(endpoint)
	g.log.WithField("endpoint", endpoint).
		WithField("queued", queued).
		Debug("request deferred to queue")

	if startDrain {
		go g.drain(endpoint)
	}

	out := <-c.result
	return out.value, out.err
}

// Run executes fn under g's policy for endpoint, preserving the result type.
func Run[T any](g *Governor, ctx context.Context, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := g.Do(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return fn(ctx)
	})
	if v == nil {
		var zero T
		return zero, err
	}
	return v.(T), err
}

// Pending returns the number of calls waiting in the endpoint's queue.
func (g *Governor) Pending(endpoint string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.endpoints[endpoint]; ok {
		return len(st.queue)
	}
	return 0
}

// allowLocked reserves a window slot for endpoint if one is free.
func (g *Governor) allowLocked(endpoint string) bool {
	now := g.now()
	st, ok := g.endpoints[endpoint]
	if !ok {
		st = &counter{windowStart: now}
		g.endpoints[endpoint] = st
	}
	if now.Sub(st.windowStart) >= g.policy.Window {
		st.count = 0
		st.windowStart = now
	}
	if st.count < g.policy.MaxRequestsPerWindow {
		st.count++
		return true
	}
	return false
}

// sweepLocked drops counters that are stale and have no queued work. Purely
// an optimization: a stale counter that is never touched again is harmless.
func (g *Governor) sweepLocked() {
	now := g.now()
	for endpoint, st := range g.endpoints {
		if st.processing || len(st.queue) > 0 {
			continue
		}
		if now.Sub(st.windowStart) >= g.policy.Window {
			delete(g.endpoints, endpoint)
		}
	}
}

// drain processes the endpoint's queue one call at a time. At most one drain
// runs per endpoint; the processing flag is the mutex. A failed call rejects
// only its own caller and draining moves on.
func (g *Governor) drain(endpoint string) {
	for {
		g.mu.Lock()
		st, ok := g.endpoints[endpoint]
		if !ok || len(st.queue) == 0 {
			if ok {
				st.processing = false
			}
			g.mu.Unlock()
			return
		}
		c := st.queue[0]
		st.queue = st.queue[1:]
		g.mu.Unlock()

		metrics.RecordQueueWait(endpoint, g.now().Sub(c.enqueued))
		v, err := c.fn(c.ctx)
		c.result <- outcome{value: v, err: err}

		time.Sleep(g.policy.RequestDelay)
	}
}
