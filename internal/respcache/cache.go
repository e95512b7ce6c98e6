// Package respcache provides a short-TTL cache of successful insights
// responses plus request coalescing, so identical concurrent queries share
// one network call and circuit-open fallbacks have something to serve.
package respcache

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// credentialParams are excluded from cache keys so tokens never leak into
// keyed state.
var credentialParams = map[string]bool{
	"access_token": true,
	"token":        true,
	"api_key":      true,
}

type entry struct {
	page   *insights.Page
	expiry time.Time
}

// Cache is a TTL-bounded response store keyed by normalized query.
type Cache struct {
	mu      sync.Mutex
	clock   timeframe.Clock
	ttl     time.Duration
	entries map[string]entry
	group   singleflight.Group
}

// New creates a cache with the given entry TTL. A nil clock falls back to
// the system clock.
func New(ttl time.Duration, clock timeframe.Clock) *Cache {
	if clock == nil {
		clock = timeframe.SystemClock{}
	}
	return &Cache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key derives a stable cache key from a request URL: endpoint path plus
// sorted query parameters, credentials excluded.
func Key(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	values := u.Query()
	keys := make([]string, 0, len(values))
	for k := range values {
		if credentialParams[strings.ToLower(k)] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(u.Path)
	for _, k := range keys {
		vs := values[k]
		sort.Strings(vs)
		for _, v := range vs {
			sb.WriteByte('&')
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(v)
		}
	}
	return sb.String()
}

// Get returns the cached page for key if it has not expired.
func (c *Cache) Get(key string) (*insights.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(e.expiry) {
		delete(c.entries, key)
		return nil, false
	}
	return e.page, true
}

// Set stores a page under key and opportunistically sweeps expired entries
// to bound memory.
func (c *Cache) Set(key string, page *insights.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for k, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{page: page, expiry: now.Add(c.ttl)}
}

// Fetch coalesces concurrent calls for the same key onto one execution of
// fn; followers receive the leader's result. Successful results are cached.
func (c *Cache) Fetch(key string, fn func() (*insights.Page, error)) (*insights.Page, bool, error) {
	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		page, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, page)
		return page, nil
	})
	if err != nil {
		return nil, shared, err
	}
	return result.(*insights.Page), shared, nil
}

// Len returns the number of live entries; intended for tests and metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	count := 0
	for _, e := range c.entries {
		if now.Before(e.expiry) {
			count++
		}
	}
	return count
}
