package candle

import (
	"sort"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// Cache holds the candles of one granularity for one instrument,
// keyed by bucket start. A capacity of zero means unbounded; a bounded
// cache evicts its oldest bucket when a new bucket would exceed the
// capacity.
type Cache struct {
	candleType domain.CandleType
	capacity   int
	candles    map[int64]*domain.Candle
	keys       []int64 // ascending bucket starts
}

// NewCache creates an unbounded cache (day, month).
func NewCache(candleType domain.CandleType) *Cache {
	return &Cache{
		candleType: candleType,
		candles:    make(map[int64]*domain.Candle),
	}
}

// NewBoundedCache creates a cache that holds at most capacity buckets
// (minute, hour).
func NewBoundedCache(candleType domain.CandleType, capacity int) *Cache {
	return &Cache{
		candleType: candleType,
		capacity:   capacity,
		candles:    make(map[int64]*domain.Candle),
	}
}

// Type returns the granularity this cache aggregates.
func (c *Cache) Type() domain.CandleType {
	return c.candleType
}

// Len returns the number of buckets currently held.
func (c *Cache) Len() int {
	return len(c.candles)
}

// Init inserts a candle at its own bucket start. It is used only
// during restore and never evicts; the restore path is bounded by the
// partition scan that feeds it.
func (c *Cache) Init(candle domain.Candle) {
	if _, exists := c.candles[candle.Datetime]; !exists {
		c.insertKey(candle.Datetime)
	}
	stored := candle
	c.candles[candle.Datetime] = &stored
}

// HandleRate folds one observation into the bucket enclosing unixSec,
// creating the bucket if needed. The returned update carries a copy of
// the resulting candle.
func (c *Cache) HandleRate(unixSec int64, rate float64) domain.CandleUpdate {
	bucket := c.candleType.BucketStart(unixSec)

	if existing, ok := c.candles[bucket]; ok {
		existing.ApplyRate(rate)
		return domain.CandleUpdate{Type: c.candleType, Candle: *existing}
	}

	if c.capacity > 0 && len(c.candles) >= c.capacity {
		c.evictOldest()
	}

	created := domain.NewCandleFromRate(bucket, rate)
	stored := created
	c.candles[bucket] = &stored
	c.insertKey(bucket)

	return domain.CandleUpdate{Type: c.candleType, Candle: created}
}

// Range returns copies of all candles whose bucket start lies in
// [from, to), ascending by bucket start.
func (c *Cache) Range(from, to int64) []domain.Candle {
	lo := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= from })
	hi := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= to })

	if lo >= hi {
		return nil
	}

	result := make([]domain.Candle, 0, hi-lo)
	for _, key := range c.keys[lo:hi] {
		result = append(result, *c.candles[key])
	}
	return result
}

// Clear drops all buckets.
func (c *Cache) Clear() {
	c.candles = make(map[int64]*domain.Candle)
	c.keys = c.keys[:0]
}

func (c *Cache) insertKey(key int64) {
	pos := sort.Search(len(c.keys), func(i int) bool { return c.keys[i] >= key })
	c.keys = append(c.keys, 0)
	copy(c.keys[pos+1:], c.keys[pos:])
	c.keys[pos] = key
}

func (c *Cache) evictOldest() {
	if len(c.keys) == 0 {
		return
	}
	oldest := c.keys[0]
	c.keys = c.keys[1:]
	delete(c.candles, oldest)
}
