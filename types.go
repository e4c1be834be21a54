package apismith

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Sutto/api-smith/internal/backoff"
	"github.com/Sutto/api-smith/smash"
)

// RetryCondition determines whether a request should be retried
type RetryCondition func(resp *http.Response, err error) bool

// Middleware represents a middleware function
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ResponseChecker inspects a response before its body is unpacked. A non-nil
// error aborts the call. body is the decoded payload.
type ResponseChecker func(resp *http.Response, body any) error

// ContainerFunc picks the default response container for a request path.
type ContainerFunc func(path string) []any

// BodyEncoding selects how request bodies are serialized.
type BodyEncoding int

const (
	// EncodeJSON sends the merged body as application/json.
	EncodeJSON BodyEncoding = iota
	// EncodeForm sends the merged body as application/x-www-form-urlencoded.
	EncodeForm
)

func (e BodyEncoding) String() string {
	switch e {
	case EncodeForm:
		return "form"
	default:
		return "json"
	}
}

// CacheEntry represents a cached response
type CacheEntry struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	ExpiresAt  time.Time
}

// Cache interface for response caching
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Set(key string, entry *CacheEntry, ttl time.Duration)
	Delete(key string)
	Clear()
}

// CacheCondition determines whether a request should be cached
type CacheCondition func(req *http.Request) bool

// DeduplicationKeyFunc names the in-flight slot a request joins.
type DeduplicationKeyFunc func(req *http.Request) string

// DeduplicationCondition decides whether a request may share an in-flight call.
type DeduplicationCondition func(req *http.Request) bool

// Context keys for cache control
type contextKey string

const (
	CacheControlKey contextKey = "apismith_cache_control"
)

// CacheControl holds cache control options for a request
type CacheControl struct {
	Enabled bool
	TTL     time.Duration
}

// ClientError represents an error from the client
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	RequestID  string
	Method     string
	URL        string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
	StatusCode int
	Endpoint   string
	// Body is the decoded response payload for HTTP errors.
	Body any
}

// RateLimiter is a token bucket refilled one token per refillRate.
type RateLimiter struct {
	tokens     int64
	maxTokens  int64
	refillRate time.Duration
	lastRefill int64
}

// RetryPolicy decides whether and when to retry a finished attempt.
type RetryPolicy interface {
	ShouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool)
}

// BackoffStrategy names a backoff algorithm.
type BackoffStrategy int

const (
	ExponentialJitter BackoffStrategy = iota
	DecorrelatedJitter
	ConstantBackoff
)

// DefaultRetryPolicy retries network errors, 429 and 5xx responses of
// idempotent requests, honouring Retry-After.
type DefaultRetryPolicy struct {
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	backoffStrategy   BackoffStrategy
	strategy          backoff.Strategy
	isIdempotent      func(method string) bool
}

// RetryBudget caps retries across all requests within a sliding window.
type RetryBudget struct {
	maxRetries  int64
	perWindow   time.Duration
	current     int64
	windowStart int64
}

// Option represents a configuration option
type Option func(*Client)

// RequestOption adjusts a single call.
type RequestOption func(*requestConfig)

type requestConfig struct {
	query        url.Values
	body         map[string]any
	headers      http.Header
	container    []any
	hasContainer bool
	transform    smash.Transformer
	skipEndpoint bool
}
