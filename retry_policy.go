package apismith

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Sutto/api-smith/internal/backoff"
)

// NewDefaultRetryPolicy creates a retry policy using exponential jitter that
// only retries idempotent methods.
func NewDefaultRetryPolicy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64) *DefaultRetryPolicy {
	return NewDefaultRetryPolicyWithStrategy(maxRetries, initialBackoff, maxBackoff, multiplier, jitter, ExponentialJitter)
}

// NewDefaultRetryPolicyWithStrategy creates a retry policy with a specific backoff strategy.
func NewDefaultRetryPolicyWithStrategy(maxRetries int, initialBackoff, maxBackoff time.Duration, multiplier, jitter float64, strategy BackoffStrategy) *DefaultRetryPolicy {
	return &DefaultRetryPolicy{
		maxRetries:        maxRetries,
		initialBackoff:    initialBackoff,
		maxBackoff:        maxBackoff,
		backoffMultiplier: multiplier,
		jitter:            jitter,
		backoffStrategy:   strategy,
		strategy:          strategy.impl(),
		isIdempotent:      DefaultIsIdempotent,
	}
}

// ParseBackoffStrategy maps "exponential", "decorrelated" or "constant" to a BackoffStrategy.
func ParseBackoffStrategy(name string) (BackoffStrategy, bool) {
	s, ok := backoff.ByName(name)
	if !ok {
		return ExponentialJitter, false
	}
	switch s.(type) {
	case backoff.Decorrelated:
		return DecorrelatedJitter, true
	case backoff.Constant:
		return ConstantBackoff, true
	default:
		return ExponentialJitter, true
	}
}

func (s BackoffStrategy) impl() backoff.Strategy {
	switch s {
	case DecorrelatedJitter:
		return backoff.Decorrelated{}
	case ConstantBackoff:
		return backoff.Constant{}
	default:
		return backoff.Exponential{}
	}
}

func (s BackoffStrategy) String() string {
	switch s {
	case DecorrelatedJitter:
		return "decorrelated"
	case ConstantBackoff:
		return "constant"
	default:
		return "exponential"
	}
}

// WithIdempotencyCheck replaces the method filter; it returns p for chaining.
func (p *DefaultRetryPolicy) WithIdempotencyCheck(fn func(method string) bool) *DefaultRetryPolicy {
	if fn != nil {
		p.isIdempotent = fn
	}
	return p
}

// ShouldRetry implements the RetryPolicy interface.
func (p *DefaultRetryPolicy) ShouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if attempt >= p.maxRetries {
		return 0, false
	}

	if resp != nil && resp.Request != nil && !p.isIdempotent(resp.Request.Method) {
		return 0, false
	}

	var delay time.Duration
	switch {
	case err != nil:
	case resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500):
		delay = parseRetryAfter(resp.Header.Get("Retry-After"))
	default:
		return 0, false
	}

	if delay == 0 {
		delay = p.calculateBackoff(attempt)
	}
	return delay, true
}

// DefaultIsIdempotent returns true for idempotent HTTP methods.
func DefaultIsIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	default:
		return false
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP-date, capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds <= 0 {
			return 0
		}
		delay := time.Duration(seconds) * time.Second
		if delay > time.Hour {
			delay = time.Hour
		}
		return delay
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

func (p *DefaultRetryPolicy) calculateBackoff(attempt int) time.Duration {
	s := p.strategy
	if s == nil {
		s = p.backoffStrategy.impl()
	}
	return s.Delay(attempt, backoff.Params{
		Initial:    p.initialBackoff,
		Max:        p.maxBackoff,
		Multiplier: p.backoffMultiplier,
		Jitter:     p.jitter,
	})
}

// NewRetryBudget creates a new retry budget tracker.
func NewRetryBudget(maxRetries int, perWindow time.Duration) *RetryBudget {
	return &RetryBudget{
		maxRetries:  int64(maxRetries),
		perWindow:   perWindow,
		windowStart: time.Now().UnixNano(),
	}
}

// Allow checks if a retry is allowed under the current budget.
func (rb *RetryBudget) Allow() bool {
	now := time.Now().UnixNano()
	windowStart := atomic.LoadInt64(&rb.windowStart)

	if now-windowStart >= int64(rb.perWindow) {
		if atomic.CompareAndSwapInt64(&rb.windowStart, windowStart, now) {
			atomic.StoreInt64(&rb.current, 0)
		}
	}

	if atomic.LoadInt64(&rb.current) >= rb.maxRetries {
		return false
	}
	return atomic.AddInt64(&rb.current, 1) <= rb.maxRetries
}

// GetStats returns current retry budget statistics.
func (rb *RetryBudget) GetStats() (current, max int64, windowStart time.Time) {
	return atomic.LoadInt64(&rb.current),
		rb.maxRetries,
		time.Unix(0, atomic.LoadInt64(&rb.windowStart))
}
