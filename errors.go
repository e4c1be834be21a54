package apismith

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error types carried in ClientError.Type.
const (
	ErrorTypeNetwork             = "Network"
	ErrorTypeTimeout             = "Timeout"
	ErrorTypeHTTP                = "HTTP"
	ErrorTypeRateLimit           = "RateLimit"
	ErrorTypeRetryBudgetExceeded = "RetryBudgetExceeded"
	ErrorTypeValidation          = "Validation"
	ErrorTypeRequest             = "Request"
	ErrorTypeDecode              = "Decode"
	ErrorTypeTransform           = "Transform"
)

// Sentinel errors for common failure scenarios
var (
	// ErrRateLimited is returned when a request is denied due to rate limiting
	ErrRateLimited = errors.New("apismith: rate limited")

	// ErrRetryBudgetExceeded is returned when retry budget is exhausted
	ErrRetryBudgetExceeded = errors.New("apismith: retry budget exceeded")

	// ErrNotCoercible is returned by the typed helpers when the unpacked
	// response has no shape the schema can build from.
	ErrNotCoercible = errors.New("apismith: response is not coercible")

	// ErrEmptyResponse is returned by the typed helpers when the response
	// container holds no value.
	ErrEmptyResponse = errors.New("apismith: no value in response container")

	// ErrBodyTooLarge is returned when a response body exceeds the buffering limit.
	ErrBodyTooLarge = errors.New("apismith: response body too large")
)

// IsTransient determines if an error represents a transient failure that might succeed on retry.
// Returns true for network errors, timeouts, 5xx responses and rate limiting (429).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrRetryBudgetExceeded) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit:
			return true
		case ErrorTypeHTTP:
			return clientErr.StatusCode == http.StatusTooManyRequests || clientErr.StatusCode >= 500
		default:
			return false
		}
	}

	return false
}

// StatusCode extracts the HTTP status from an HTTP ClientError, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var b strings.Builder
	if e.RequestID != "" {
		fmt.Fprintf(&b, "[%s] ", e.RequestID)
	}
	fmt.Fprintf(&b, "%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, " (attempt %d/%d)", e.Attempt, e.MaxRetries)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another ClientError of the same Type, or the sentinel that
// corresponds to e's Type.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ErrRetryBudgetExceeded:
		return e.Type == ErrorTypeRetryBudgetExceeded
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error Type: %s\n", e.Type)
	fmt.Fprintf(&b, "Message: %s\n", e.Message)
	if e.RequestID != "" {
		fmt.Fprintf(&b, "Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "Method: %s\n", e.Method)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, "Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "Status Code: %d\n", e.StatusCode)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, "Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		fmt.Fprintf(&b, "Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	return b.String()
}
