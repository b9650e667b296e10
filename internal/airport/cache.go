package airport

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Lookup with an in-memory LRU cache.
type Cached struct {
	inner Lookup
	cache *lru.Cache[string, *Info]
}

// NewCached creates a cache decorator around a lookup.
func NewCached(inner Lookup, maxEntries int) (*Cached, error) {
	cache, err := lru.New[string, *Info](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Lookup returns the cached airport or asks the inner lookup.
func (c *Cached) Lookup(ctx context.Context, ident string) (*Info, error) {
	key := strings.ToUpper(ident)
	if info, ok := c.cache.Get(key); ok {
		return info, nil
	}
	info, err := c.inner.Lookup(ctx, ident)
	if err != nil {
		return nil, err
	}
	// Misses are not cached so a later import can fill them.
	if info != nil && info.Ident != "" {
		c.cache.Add(key, info)
	}
	return info, nil
}

// Len returns the number of cached airports.
func (c *Cached) Len() int {
	return c.cache.Len()
}
