package apismith

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxBufferedBody = 10 * 1024 * 1024

// InMemoryCache is a sharded TTL map.
type InMemoryCache struct {
	shards []*cacheShard
}

type cacheShard struct {
	mu    sync.RWMutex
	store map[string]*CacheEntry
}

// NewInMemoryCache creates an empty 16-shard cache.
func NewInMemoryCache() *InMemoryCache {
	shards := make([]*cacheShard, 16)
	for i := range shards {
		shards[i] = &cacheShard{store: make(map[string]*CacheEntry)}
	}
	return &InMemoryCache{shards: shards}
}

func (c *InMemoryCache) getShard(key string) *cacheShard {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))
	return c.shards[hash.Sum32()%uint32(len(c.shards))]
}

func (c *InMemoryCache) Get(key string) (*CacheEntry, bool) {
	shard := c.getShard(key)
	shard.mu.RLock()
	entry, exists := shard.store[key]
	shard.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		shard.mu.Lock()
		if shard.store[key] == entry {
			delete(shard.store, key)
		}
		shard.mu.Unlock()
		return nil, false
	}

	return entry, true
}

func (c *InMemoryCache) Set(key string, entry *CacheEntry, ttl time.Duration) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry.ExpiresAt = time.Now().Add(ttl)
	shard.store[key] = entry
}

func (c *InMemoryCache) Delete(key string) {
	shard := c.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.store, key)
}

func (c *InMemoryCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*CacheEntry)
		shard.mu.Unlock()
	}
}

// Len counts entries, expired ones included.
func (c *InMemoryCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.store)
		shard.mu.RUnlock()
	}
	return total
}

// responseFromEntry builds a fresh response over a buffered body so several
// callers can read it independently.
func responseFromEntry(entry *CacheEntry, req *http.Request) *http.Response {
	return &http.Response{
		StatusCode: entry.StatusCode,
		Header:     entry.Header.Clone(),
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
		Request:    req,
	}
}

// readBody reads r up to maxBufferedBody bytes. Longer bodies fail with
// ErrBodyTooLarge rather than being cut short.
func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBufferedBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBufferedBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, maxBufferedBody)
	}
	return data, nil
}

// bufferResponse drains resp into a CacheEntry and rewinds resp.Body.
func bufferResponse(resp *http.Response) (*CacheEntry, error) {
	body, err := readBody(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CacheEntry{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	}, nil
}

func DefaultCacheKeyFunc(req *http.Request) string {
	if req.URL == nil {
		return req.Method + ":"
	}
	return req.Method + ":" + req.URL.String()
}

func DefaultCacheCondition(req *http.Request) bool {
	return req.Method == http.MethodGet
}

func (c *Client) shouldCacheRequest(req *http.Request) bool {
	if c.cache == nil {
		return false
	}

	if cacheControl, ok := req.Context().Value(CacheControlKey).(*CacheControl); ok {
		return cacheControl.Enabled
	}

	return c.cacheCondition(req)
}

func (c *Client) getCacheTTLForRequest(req *http.Request) time.Duration {
	if cacheControl, ok := req.Context().Value(CacheControlKey).(*CacheControl); ok && cacheControl.TTL > 0 {
		return cacheControl.TTL
	}

	return c.cacheTTL
}

func WithContextCacheEnabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true})
}

func WithContextCacheDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: false})
}

func WithContextCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, CacheControlKey, &CacheControl{Enabled: true, TTL: ttl})
}
