package client

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// RetryConfig bounds transient-failure retries on the HTTP transport.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter randomizes backoff by +/- this fraction (0 to 1).
	Jitter float64
}

// DefaultRetryConfig returns the defaults used for backend traffic.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// BreakerConfig configures the transport circuit breaker.
type BreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold successes in half-open close it again.
	SuccessThreshold int
	// OpenFor is how long the circuit stays open before probing.
	OpenFor time.Duration
}

// DefaultBreakerConfig returns the defaults used for backend traffic.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenFor:          30 * time.Second,
	}
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// ErrCircuitOpen is returned while the breaker is rejecting traffic.
var ErrCircuitOpen = errors.New("backend circuit open")

type breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     breakerState
	failures  int
	successes int
	openedAt  time.Time
}

func (b *breaker) allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerOpen {
		if now.Sub(b.openedAt) < b.cfg.OpenFor {
			return ErrCircuitOpen
		}
		b.state = breakerHalfOpen
		b.successes = 0
	}
	return nil
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		b.failures = 0
	case breakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = breakerClosed
			b.failures = 0
		}
	}
}

func (b *breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = breakerOpen
			b.openedAt = now
		}
	case breakerHalfOpen:
		b.state = breakerOpen
		b.openedAt = now
	}
}

// ResilientTransport retries transient failures and stops hammering a dead
// backend via a circuit breaker. It wraps any RoundTripper.
type ResilientTransport struct {
	base    http.RoundTripper
	retry   RetryConfig
	breaker *breaker
}

// NewResilientTransport wraps base. A nil base uses http.DefaultTransport.
func NewResilientTransport(base http.RoundTripper, retry RetryConfig, brk BreakerConfig) *ResilientTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ResilientTransport{
		base:    base,
		retry:   retry,
		breaker: &breaker{cfg: brk},
	}
}

// RoundTrip implements http.RoundTripper.
func (t *ResilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.breaker.allow(time.Now()); err != nil {
		return nil, err
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(t.backoff(attempt)):
			}
			req = req.Clone(req.Context())
		}

		resp, lastErr = t.base.RoundTrip(req)
		if lastErr != nil {
			if isRetryableError(lastErr) {
				continue
			}
			t.breaker.recordFailure(time.Now())
			return nil, lastErr
		}
		if retryableStatus[resp.StatusCode] {
			lastErr = &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			resp.Body.Close()
			continue
		}

		t.breaker.recordSuccess()
		return resp, nil
	}

	t.breaker.recordFailure(time.Now())
	return nil, lastErr
}

func (t *ResilientTransport) backoff(attempt int) time.Duration {
	d := float64(t.retry.InitialBackoff) * math.Pow(t.retry.BackoffMultiplier, float64(attempt-1))
	if max := float64(t.retry.MaxBackoff); d > max {
		d = max
	}
	if t.retry.Jitter > 0 {
		d += d * t.retry.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
