package apismith

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sutto/api-smith/internal/backoff"
	"github.com/Sutto/api-smith/internal/singleflight"
)

// Client issues HTTP calls against one API: it merges layered query, body and
// header configuration, joins paths onto a base URL and endpoint, unpacks
// the decoded response from a container path and hands it to a transform.
// Retries, rate limiting, caching, de-duplication, middleware and metrics wrap
// the underlying net/http Client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client

	baseURL      string
	endpoint     string
	headers      http.Header
	baseQuery    map[string]string
	baseBody     map[string]any
	basicAuth    *[2]string
	bodyEncoding BodyEncoding

	responseContainer []any
	defaultContainer  ContainerFunc
	responseChecker   ResponseChecker

	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	backoffStrategy   BackoffStrategy
	timeout           time.Duration
	retryCondition    RetryCondition
	retryPolicy       RetryPolicy
	retryBudget       *RetryBudget

	middleware     []Middleware
	rateLimiter    *RateLimiter
	cache          Cache
	cacheTTL       time.Duration
	cacheKeyFunc   func(*http.Request) string
	cacheCondition CacheCondition

	deduplication  *singleflight.Group
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	metrics         *MetricsCollector
	debug           *DebugConfig
	logger          Logger
	optionErrors    []string
	validationError error
}

// New constructs a Client using the provided functional options. Validation
// problems are kept and returned by every call; see IsValid / ValidationError.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers:           make(http.Header),
		baseQuery:         map[string]string{},
		baseBody:          map[string]any{},
		bodyEncoding:      EncodeJSON,
		responseChecker:   DefaultResponseChecker,
		maxRetries:        3,
		initialBackoff:    100 * time.Millisecond,
		maxBackoff:        10 * time.Second,
		backoffMultiplier: 2.0,
		jitter:            0.1,
		backoffStrategy:   ExponentialJitter,
		timeout:           30 * time.Second,
		retryCondition:    DefaultRetryCondition,
		cacheTTL:          5 * time.Minute,
		cacheKeyFunc:      DefaultCacheKeyFunc,
		cacheCondition:    DefaultCacheCondition,
		dedupKeyFunc:      DefaultDeduplicationKeyFunc,
		dedupCondition:    DefaultDeduplicationCondition,
		debug:             DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Do executes a prepared *http.Request applying all reliability features.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	endpoint := getEndpointFromRequest(req)
	requestID := c.requestID(req.Context())

	if c.debugEnabled() && c.debug.LogRequests {
		c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method, "url", req.URL.String(), "endpoint", endpoint)
	}

	c.metrics.RecordRequestStart(req.Method, endpoint)
	defer c.metrics.RecordRequestEnd(req.Method, endpoint)

	var (
		resp *http.Response
		err  error
	)
	if c.deduplication != nil && c.dedupCondition(req) {
		resp, err = c.doShared(req, requestID, start)
	} else {
		resp, err = c.doCached(req, requestID, start)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordRequest(req.Method, endpoint, statusCode, time.Since(start))

	return resp, err
}

// doShared lets identical in-flight requests share one round trip. The owner's
// response is buffered and every caller gets its own copy of the body.
func (c *Client) doShared(req *http.Request, requestID string, start time.Time) (*http.Response, error) {
	key := c.dedupKeyFunc(req)
	v, err, shared := c.deduplication.Do(key, func() (interface{}, error) {
		resp, err := c.doCached(req, requestID, start)
		if err != nil {
			return nil, err
		}
		entry, err := bufferResponse(resp)
		if err != nil {
			return nil, c.createClientError(ErrorTypeNetwork, "failed to read response body", err, requestID, req, 0, time.Since(start))
		}
		return entry, nil
	})

	if shared {
		c.metrics.RecordDeduplicationHit(req.Method, getEndpointFromRequest(req))
		if c.debugEnabled() {
			c.logger.Debug("Deduplication hit", "requestID", requestID, "dedupKey", key)
		}
	}
	if err != nil {
		return nil, err
	}
	return responseFromEntry(v.(*CacheEntry), req), nil
}

func (c *Client) doCached(req *http.Request, requestID string, start time.Time) (*http.Response, error) {
	if !c.shouldCacheRequest(req) {
		return c.doWithRetry(req, requestID, start)
	}

	endpoint := getEndpointFromRequest(req)
	cacheKey := c.cacheKeyFunc(req)

	if entry, found := c.cache.Get(cacheKey); found {
		if c.debugEnabled() && c.debug.LogCache {
			c.logger.Debug("Cache hit", "requestID", requestID, "cacheKey", cacheKey)
		}
		c.metrics.RecordCacheHit(req.Method, endpoint)
		return responseFromEntry(entry, req), nil
	}

	c.metrics.RecordCacheMiss(req.Method, endpoint)
	if c.debugEnabled() && c.debug.LogCache {
		c.logger.Debug("Cache miss", "requestID", requestID, "cacheKey", cacheKey)
	}

	resp, err := c.doWithRetry(req, requestID, start)
	if err != nil || resp.StatusCode >= 400 {
		return resp, err
	}

	entry, err := bufferResponse(resp)
	if err != nil {
		return nil, c.createClientError(ErrorTypeNetwork, "failed to read response body", err, requestID, req, 0, time.Since(start))
	}
	ttl := c.getCacheTTLForRequest(req)
	c.cache.Set(cacheKey, entry, ttl)

	if mem, ok := c.cache.(*InMemoryCache); ok {
		c.metrics.RecordCacheSize("default", mem.Len())
	}
	if c.debugEnabled() && c.debug.LogCache {
		c.logger.Debug("Response cached", "requestID", requestID, "cacheKey", cacheKey, "ttl", ttl)
	}

	return resp, nil
}

func (c *Client) doWithRetry(req *http.Request, requestID string, start time.Time) (*http.Response, error) {
	endpoint := getEndpointFromRequest(req)

	for attempt := 0; ; attempt++ {
		if c.rateLimiter != nil {
			allowed := c.rateLimiter.Allow()
			c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
			if !allowed {
				if c.debugEnabled() && c.debug.LogRateLimit {
					c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint)
				}
				c.metrics.RecordError(ErrorTypeRateLimit, req.Method, endpoint)
				return nil, c.createClientError(ErrorTypeRateLimit, "rate limit exceeded", nil, requestID, req, attempt, time.Since(start))
			}
		}

		if attempt > 0 {
			if c.debugEnabled() && c.debug.LogRetries {
				c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "endpoint", endpoint)
			}
			c.metrics.RecordRetry(req.Method, endpoint, attempt)
		}

		resp, err := c.executeMiddleware(req)
		if err != nil {
			c.metrics.RecordError(ErrorTypeNetwork, req.Method, endpoint)
		} else if resp.StatusCode >= 500 {
			c.metrics.RecordError("Server", req.Method, endpoint)
		}

		delay, retry := c.shouldRetry(resp, err, attempt)
		if retry && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			retry = false
		}
		if !retry {
			if err != nil {
				return nil, c.transportError(err, requestID, req, attempt, start)
			}
			return resp, nil
		}

		if c.retryBudget != nil && !c.retryBudget.Allow() {
			c.metrics.RecordRetryBudgetExceeded(endpoint)
			if c.debugEnabled() && c.debug.LogRetries {
				c.logger.Warn("Retry budget exceeded", "requestID", requestID, "endpoint", endpoint)
			}
			if err != nil {
				return nil, c.createClientError(ErrorTypeRetryBudgetExceeded, "retry budget exceeded", err, requestID, req, attempt, time.Since(start))
			}
			return resp, nil
		}

		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
		}
		if req.GetBody != nil {
			body, gerr := req.GetBody()
			if gerr != nil {
				return nil, c.createClientError(ErrorTypeRequest, "failed to rewind request body", gerr, requestID, req, attempt, time.Since(start))
			}
			req.Body = body
		}

		if c.debugEnabled() && c.debug.LogRetries {
			c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
		}
		if serr := sleepContext(req.Context(), delay); serr != nil {
			return nil, c.transportError(serr, requestID, req, attempt, start)
		}
	}
}

func (c *Client) shouldRetry(resp *http.Response, err error, attempt int) (time.Duration, bool) {
	if c.retryPolicy != nil {
		return c.retryPolicy.ShouldRetry(resp, err, attempt)
	}
	if attempt >= c.maxRetries || !c.retryCondition(resp, err) {
		return 0, false
	}
	return c.calculateBackoff(attempt), true
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)
	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	return c.backoffStrategy.impl().Delay(attempt, backoff.Params{
		Initial:    c.initialBackoff,
		Max:        c.maxBackoff,
		Multiplier: c.backoffMultiplier,
		Jitter:     c.jitter,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DefaultRetryCondition retries transport errors and 5xx responses.
func DefaultRetryCondition(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500
}

// DefaultDeduplicationKeyFunc keys on method and full URL.
func DefaultDeduplicationKeyFunc(req *http.Request) string {
	return DefaultCacheKeyFunc(req)
}

// DefaultDeduplicationCondition shares GET and HEAD requests only.
func DefaultDeduplicationCondition(req *http.Request) bool {
	return req.Method == http.MethodGet || req.Method == http.MethodHead
}

func (c *Client) transportError(err error, requestID string, req *http.Request, attempt int, start time.Time) *ClientError {
	errorType := ErrorTypeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		errorType = ErrorTypeTimeout
	}
	return c.createClientError(errorType, "network request failed", err, requestID, req, attempt, time.Since(start))
}

func (c *Client) createClientError(errorType, message string, cause error, requestID string, req *http.Request, attempt int, duration time.Duration) *ClientError {
	return &ClientError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     req.Method,
		URL:        req.URL.String(),
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Timestamp:  time.Now(),
		Duration:   duration,
		Endpoint:   getEndpointFromRequest(req),
	}
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestID reuses an ID already attached by Request, otherwise generates one
// when debugging is on.
func (c *Client) requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return c.newRequestID()
}

func (c *Client) newRequestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// MustValidateConfiguration panics if configuration is invalid.
func (c *Client) MustValidateConfiguration() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid client configuration: %v", err))
	}
}

func getEndpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(req.URL.Host)
	if path := req.URL.Path; path != "" && path != "/" {
		builder.WriteString(path)
	} else {
		builder.WriteByte('/')
	}
	return builder.String()
}
