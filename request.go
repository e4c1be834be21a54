package apismith

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sutto/api-smith/smash"
)

// WithExtraQuery merges q over the client's base query for one call.
func WithExtraQuery(q map[string]string) RequestOption {
	return func(rc *requestConfig) {
		for k, v := range q {
			rc.query.Set(k, v)
		}
	}
}

// WithExtraBody merges body over the client's base body for one call.
func WithExtraBody(body map[string]any) RequestOption {
	return func(rc *requestConfig) {
		for k, v := range body {
			rc.body[k] = v
		}
	}
}

// WithExtraHeaders sets headers for one call.
func WithExtraHeaders(h map[string]string) RequestOption {
	return func(rc *requestConfig) {
		for k, v := range h {
			rc.headers.Set(k, v)
		}
	}
}

// WithContainer overrides the response container for one call. Each key is
// a string (map key) or an int (sequence index). No keys means the whole body.
func WithContainer(keys ...any) RequestOption {
	return func(rc *requestConfig) {
		rc.container = keys
		rc.hasContainer = true
	}
}

// WithTransform applies t to the unpacked response. A *smash.Schema works
// directly.
func WithTransform(t smash.Transformer) RequestOption {
	return func(rc *requestConfig) {
		rc.transform = t
	}
}

// SkipEndpoint joins the path onto the base URL without the client endpoint.
func SkipEndpoint() RequestOption {
	return func(rc *requestConfig) {
		rc.skipEndpoint = true
	}
}

// Get issues a GET. Only query parameters are sent.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodGet, path, opts...)
}

// Delete issues a DELETE. Only query parameters are sent.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodDelete, path, opts...)
}

// Post issues a POST with the merged body.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPost, path, opts...)
}

// Put issues a PUT with the merged body.
func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPut, path, opts...)
}

// Patch issues a PATCH with the merged body.
func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return c.Request(ctx, http.MethodPatch, path, opts...)
}

// Request runs one call end to end: build, send, check, unpack and transform.
// The result is the transformed value, the unpacked value when no transform
// is set, or nil when the container path leads nowhere.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (any, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := c.newRequestID()
	ctx = withRequestID(ctx, requestID)
	rc := c.newRequestConfig(opts)

	req, err := c.buildRequest(ctx, method, path, rc)
	if err != nil {
		return nil, &ClientError{
			Type:      ErrorTypeRequest,
			Message:   "failed to build request",
			Cause:     err,
			RequestID: requestID,
			Method:    method,
			URL:       c.PathFor(path, rc.skipEndpoint),
			Timestamp: time.Now(),
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		ce := c.createClientError(ErrorTypeDecode, "failed to decode response body", err, requestID, req, 0, 0)
		ce.StatusCode = resp.StatusCode
		return nil, ce
	}

	if c.responseChecker != nil {
		if err := c.responseChecker(resp, body); err != nil {
			var ce *ClientError
			if errors.As(err, &ce) && ce.RequestID == "" {
				ce.RequestID = requestID
			}
			c.metrics.RecordError(ErrorTypeHTTP, req.Method, getEndpointFromRequest(req))
			return nil, err
		}
	}

	value := ExtractContainer(body, c.containerFor(path, rc))
	if value == nil || rc.transform == nil {
		return value, nil
	}

	out := rc.transform.Transform(value)
	endpoint := getEndpointFromRequest(req)
	if out == nil {
		c.metrics.RecordTransform(endpoint, "nil")
	} else {
		c.metrics.RecordTransform(endpoint, "ok")
	}
	if c.debugEnabled() && c.debug.LogTransforms {
		c.logger.Debug("Transformed response", "requestID", requestID, "endpoint", endpoint, "result", fmt.Sprintf("%T", out))
	}
	return out, nil
}

func (c *Client) newRequestConfig(opts []RequestOption) *requestConfig {
	rc := &requestConfig{
		query:   url.Values{},
		body:    make(map[string]any, len(c.baseBody)),
		headers: c.headers.Clone(),
	}
	if rc.headers == nil {
		rc.headers = make(http.Header)
	}
	for k, v := range c.baseQuery {
		rc.query.Set(k, v)
	}
	for k, v := range c.baseBody {
		rc.body[k] = v
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rc)
		}
	}
	return rc
}

func (c *Client) containerFor(path string, rc *requestConfig) []any {
	if rc.hasContainer {
		return rc.container
	}
	if c.defaultContainer != nil {
		return c.defaultContainer(path)
	}
	return c.responseContainer
}

func (c *Client) buildRequest(ctx context.Context, method, path string, rc *requestConfig) (*http.Request, error) {
	u, err := url.Parse(c.PathFor(path, rc.skipEndpoint))
	if err != nil {
		return nil, err
	}
	if len(rc.query) > 0 {
		q := u.Query()
		for k, vs := range rc.query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	if hasBody(method) && len(rc.body) > 0 {
		switch c.bodyEncoding {
		case EncodeForm:
			body = strings.NewReader(formEncode(rc.body).Encode())
			contentType = "application/x-www-form-urlencoded"
		default:
			data, err := json.Marshal(rc.body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			body = bytes.NewReader(data)
			contentType = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = rc.headers
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "api-smith/"+Version)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.basicAuth != nil {
		req.SetBasicAuth(c.basicAuth[0], c.basicAuth[1])
	}
	return req, nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// formEncode flattens body values; slices become repeated keys.
func formEncode(body map[string]any) url.Values {
	values := url.Values{}
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := body[k].(type) {
		case nil:
			values.Set(k, "")
		case []string:
			values[k] = append(values[k], v...)
		case []any:
			for _, item := range v {
				values.Add(k, fmt.Sprint(item))
			}
		default:
			values.Set(k, fmt.Sprint(v))
		}
	}
	return values
}

// PathFor joins the base URL, the endpoint (unless skipped) and path with
// single slashes. Absolute URLs are returned unchanged.
func (c *Client) PathFor(path string, skipEndpoint bool) string {
	if isAbsoluteURL(path) {
		return path
	}
	if skipEndpoint {
		return joinPath(c.baseURL, path)
	}
	return joinPath(c.baseURL, c.endpoint, path)
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func joinPath(parts ...string) string {
	var (
		segments []string
		leading  bool
		first    = true
	)
	for _, p := range parts {
		if p == "" {
			continue
		}
		if first {
			first = false
			leading = strings.HasPrefix(p, "/")
			if seg := strings.TrimRight(p, "/"); seg != "" {
				segments = append(segments, seg)
			}
			continue
		}
		if seg := strings.Trim(p, "/"); seg != "" {
			segments = append(segments, seg)
		}
	}

	joined := strings.Join(segments, "/")
	if leading && !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

// decodeBody returns nil for empty bodies, decoded JSON for JSON bodies and
// the raw text otherwise.
func decodeBody(resp *http.Response) (any, error) {
	data, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !isJSON(resp.Header.Get("Content-Type"), data) {
		return string(data), nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isJSON(contentType string, data []byte) bool {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			return mt == "application/json" || strings.HasSuffix(mt, "+json")
		}
	}
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// ExtractContainer walks keys into value: strings index maps, ints index
// sequences (negative counts from the end). Any miss yields nil.
func ExtractContainer(value any, keys []any) any {
	current := value
	for _, key := range keys {
		if current == nil {
			return nil
		}
		switch k := key.(type) {
		case string:
			m, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			current = m[k]
		case int:
			items, ok := current.([]any)
			if !ok {
				return nil
			}
			if k < 0 {
				k += len(items)
			}
			if k < 0 || k >= len(items) {
				return nil
			}
			current = items[k]
		default:
			return nil
		}
	}
	return current
}

// DefaultResponseChecker turns status >= 400 into an HTTP ClientError.
func DefaultResponseChecker(resp *http.Response, body any) error {
	if resp.StatusCode < 400 {
		return nil
	}
	ce := &ClientError{
		Type:       ErrorTypeHTTP,
		Message:    fmt.Sprintf("unexpected status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		StatusCode: resp.StatusCode,
		Body:       body,
		Timestamp:  time.Now(),
	}
	if req := resp.Request; req != nil {
		ce.Method = req.Method
		ce.URL = req.URL.String()
		ce.Endpoint = getEndpointFromRequest(req)
	}
	return ce
}

// ParseContainer splits a dotted path such as "data.items.0" into container
// keys; all-digit segments become indexes.
func ParseContainer(path string) []any {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	keys := make([]any, 0, len(parts))
	for _, p := range parts {
		if n, ok := parseIndex(p); ok {
			keys = append(keys, n)
			continue
		}
		keys = append(keys, p)
	}
	return keys
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
