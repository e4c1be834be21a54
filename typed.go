package apismith

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sutto/api-smith/smash"
)

// GetInstance fetches path and builds one instance of schema from the
// unpacked response. Construction errors are returned, not swallowed. A
// response container that holds nothing yields ErrEmptyResponse.
func (c *Client) GetInstance(ctx context.Context, schema *smash.Schema, path string, opts ...RequestOption) (*smash.Instance, error) {
	return c.requestInstance(ctx, http.MethodGet, schema, path, opts)
}

// PostInstance posts to path and builds one instance from the response.
func (c *Client) PostInstance(ctx context.Context, schema *smash.Schema, path string, opts ...RequestOption) (*smash.Instance, error) {
	return c.requestInstance(ctx, http.MethodPost, schema, path, opts)
}

// GetInstances fetches path and builds an instance per mapping element of
// the unpacked response. A lone mapping yields a single instance and an
// empty response container yields ErrEmptyResponse.
func (c *Client) GetInstances(ctx context.Context, schema *smash.Schema, path string, opts ...RequestOption) ([]*smash.Instance, error) {
	value, err := c.Request(ctx, http.MethodGet, path, withoutTransform(opts)...)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, path)
	}
	out, err := schema.CoerceAll(value)
	if err != nil {
		c.metrics.RecordTransform(c.endpointLabel(path), "error")
		return nil, transformError(schema, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %T into %s", ErrNotCoercible, value, schema.Name())
	}
	return out, nil
}

func (c *Client) requestInstance(ctx context.Context, method string, schema *smash.Schema, path string, opts []RequestOption) (*smash.Instance, error) {
	value, err := c.Request(ctx, method, path, withoutTransform(opts)...)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, path)
	}
	inst, err := schema.CoerceOne(value)
	if err != nil {
		c.metrics.RecordTransform(c.endpointLabel(path), "error")
		return nil, transformError(schema, err)
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: %T into %s", ErrNotCoercible, value, schema.Name())
	}
	return inst, nil
}

// Decode re-encodes the unpacked response of a GET into T through JSON.
func Decode[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (T, error) {
	var out T
	value, err := c.Request(ctx, http.MethodGet, path, opts...)
	if err != nil {
		return out, err
	}
	if err := DecodeValue(value, &out); err != nil {
		return out, &ClientError{Type: ErrorTypeDecode, Message: "failed to decode into " + fmt.Sprintf("%T", out), Cause: err}
	}
	return out, nil
}

// DecodeValue converts a decoded payload (instances included) into target.
func DecodeValue(value any, target any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// withoutTransform appends a nil transform so the typed helpers see the raw
// unpacked value.
func withoutTransform(opts []RequestOption) []RequestOption {
	return append(append([]RequestOption(nil), opts...), WithTransform(nil))
}

func transformError(schema *smash.Schema, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeTransform,
		Message: "response does not fit schema " + schema.Name(),
		Cause:   err,
	}
}

func (c *Client) endpointLabel(path string) string {
	u, err := url.Parse(c.PathFor(path, false))
	if err != nil {
		return "unknown"
	}
	return getEndpointFromRequest(&http.Request{URL: u})
}
