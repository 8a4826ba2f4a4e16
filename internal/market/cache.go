package market

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the width of a cache bucket
const DefaultTTL = 60 * time.Second

// Resolver produces a quote on a cache miss
type Resolver interface {
	Resolve(ctx context.Context, symbol string) *models.Quote
}

// SharedTier is an optional second cache level shared by several replicas.
// storage.RedisClient satisfies it.
type SharedTier interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}

type cacheKey struct {
	symbol string
	bucket int64
}

// QuoteCache memoizes resolved quotes per (symbol, time bucket)
type QuoteCache struct {
	resolver Resolver
	shared   SharedTier
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]*models.Quote
	group   singleflight.Group
}

// NewQuoteCache creates a cache in front of resolver. shared may be nil.
func NewQuoteCache(resolver Resolver, shared SharedTier, now func() time.Time) *QuoteCache {
	if now == nil {
		now = time.Now
	}
	return &QuoteCache{
		resolver: resolver,
		shared:   shared,
		ttl:      DefaultTTL,
		now:      now,
		entries:  make(map[cacheKey]*models.Quote),
	}
}

// Bucket returns the bucket index for t
func (c *QuoteCache) Bucket(t time.Time) int64 {
	return t.Unix() / int64(c.ttl/time.Second)
}

// Get returns the quote for symbol in the current bucket, resolving it on miss.
// Concurrent misses for the same key share one resolution.
func (c *QuoteCache) Get(ctx context.Context, symbol string) *models.Quote {
	key := cacheKey{symbol: symbol, bucket: c.Bucket(c.now())}

	if q := c.lookup(key); q != nil {
		cacheLookups.WithLabelValues("hit").Inc()
		return q
	}

	flightKey := symbol + ":" + strconv.FormatInt(key.bucket, 10)
	v, _, _ := c.group.Do(flightKey, func() (interface{}, error) {
		if q := c.lookup(key); q != nil {
			cacheLookups.WithLabelValues("hit").Inc()
			return q, nil
		}
		if q := c.loadShared(ctx, key); q != nil {
			cacheLookups.WithLabelValues("shared_hit").Inc()
			c.store(key, q)
			return q, nil
		}

		cacheLookups.WithLabelValues("miss").Inc()
		q := c.resolver.Resolve(ctx, symbol)
		c.store(key, q)
		c.saveShared(ctx, key, q)
		return q, nil
	})
	return v.(*models.Quote)
}

// Len returns the number of cached entries
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QuoteCache) lookup(key cacheKey) *models.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// store writes the entry and drops every entry from an older bucket
func (c *QuoteCache) store(key cacheKey, q *models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.bucket < key.bucket {
			delete(c.entries, k)
		}
	}
	c.entries[key] = q
}

func sharedKey(key cacheKey) string {
	return fmt.Sprintf("quote:%s:%d", key.symbol, key.bucket)
}

func (c *QuoteCache) loadShared(ctx context.Context, key cacheKey) *models.Quote {
	if c.shared == nil {
		return nil
	}
	var q models.Quote
	if err := c.shared.GetJSON(ctx, sharedKey(key), &q); err != nil {
		return nil
	}
	if q.Validate() != nil {
		return nil
	}
	return &q
}

func (c *QuoteCache) saveShared(ctx context.Context, key cacheKey, q *models.Quote) {
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, sharedKey(key), q, 2*c.ttl); err != nil {
		logger.Warn("Failed to write quote to shared cache",
			logger.String("symbol", key.symbol),
			logger.ErrorField(err),
		)
	}
}
