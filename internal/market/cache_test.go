package market

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richgang/indice-killer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls atomic.Int32
	delay time.Duration
}

func (r *countingResolver) Resolve(_ context.Context, symbol string) *models.Quote {
	n := r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return &models.Quote{Symbol: symbol, Price: float64(1000 + n), Timestamp: fixedNow}
}

type memoryTier struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryTier() *memoryTier {
	return &memoryTier{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryTier) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

func (m *memoryTier) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return assert.AnError
	}
	return json.Unmarshal(b, dest)
}

type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestQuoteCache_Bucket(t *testing.T) {
	c := NewQuoteCache(&countingResolver{}, nil, nil)

	assert.Equal(t, int64(2), c.Bucket(time.Unix(120, 0)))
	assert.Equal(t, int64(2), c.Bucket(time.Unix(179, 0)))
	assert.Equal(t, int64(3), c.Bucket(time.Unix(180, 0)))
}

func TestQuoteCache_SameBucketReturnsSameQuote(t *testing.T) {
	clock := &steppedClock{now: time.Unix(1_700_000_040, 0)}
	resolver := &countingResolver{}
	c := NewQuoteCache(resolver, nil, clock.Now)

	first := c.Get(context.Background(), "US30")
	clock.Advance(10 * time.Second)
	second := c.Get(context.Background(), "US30")

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestQuoteCache_NewBucketRefetchesAndPrunes(t *testing.T) {
	clock := &steppedClock{now: time.Unix(1_700_000_040, 0)}
	resolver := &countingResolver{}
	c := NewQuoteCache(resolver, nil, clock.Now)

	first := c.Get(context.Background(), "US30")
	c.Get(context.Background(), "GER30")
	assert.Equal(t, 2, c.Len())

	clock.Advance(DefaultTTL)
	second := c.Get(context.Background(), "US30")

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(3), resolver.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestQuoteCache_SymbolsAreIndependent(t *testing.T) {
	resolver := &countingResolver{}
	c := NewQuoteCache(resolver, nil, func() time.Time { return fixedNow })

	us30 := c.Get(context.Background(), "US30")
	ger30 := c.Get(context.Background(), "GER30")

	assert.Equal(t, "US30", us30.Symbol)
	assert.Equal(t, "GER30", ger30.Symbol)
	assert.Equal(t, int32(2), resolver.calls.Load())
}

func TestQuoteCache_ConcurrentMissesCollapse(t *testing.T) {
	resolver := &countingResolver{delay: 50 * time.Millisecond}
	c := NewQuoteCache(resolver, nil, func() time.Time { return fixedNow })

	var wg sync.WaitGroup
	results := make([]*models.Quote, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(context.Background(), "US100")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), resolver.calls.Load())
	for _, q := range results {
		assert.Same(t, results[0], q)
	}
}

func TestQuoteCache_SharedTier(t *testing.T) {
	tier := newMemoryTier()
	now := func() time.Time { return time.Unix(1_700_000_040, 0) }

	resolverA := &countingResolver{}
	a := NewQuoteCache(resolverA, tier, now)
	qa := a.Get(context.Background(), "US30")

	key := "quote:US30:" + "28333334"
	require.Contains(t, tier.data, key)
	assert.Equal(t, 2*DefaultTTL, tier.ttls[key])

	resolverB := &countingResolver{}
	b := NewQuoteCache(resolverB, tier, now)
	qb := b.Get(context.Background(), "US30")

	assert.Equal(t, int32(0), resolverB.calls.Load())
	assert.Equal(t, qa.Price, qb.Price)
	assert.Equal(t, qa.Symbol, qb.Symbol)
}
