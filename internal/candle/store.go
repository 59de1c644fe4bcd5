package candle

import (
	"sort"
	"sync"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// sideCache is one side's instrument map under its own reader/writer
// lock. Locks guard in-memory work only; no I/O happens under them.
type sideCache struct {
	mu          sync.RWMutex
	instruments map[string]*InstrumentCache
}

// Store maintains the bid and ask candle caches for every instrument.
// Updates take the side's write lock; range queries take the read lock
// and return copies, so readers never observe a half-applied tick.
type Store struct {
	sides          [2]sideCache
	minuteCapacity int
	hourCapacity   int
}

// NewStore creates an empty store with the given per-instrument
// capacities for the minute and hour caches.
func NewStore(minuteCapacity, hourCapacity int) *Store {
	s := &Store{
		minuteCapacity: minuteCapacity,
		hourCapacity:   hourCapacity,
	}
	for i := range s.sides {
		s.sides[i].instruments = make(map[string]*InstrumentCache)
	}
	return s
}

// Update applies a batch of ticks to both sides and returns the
// concatenated per-tick per-granularity updates for each.
func (s *Store) Update(ticks []domain.Tick) (bid, ask []domain.CandleUpdate) {
	return s.UpdateSide(domain.SideBid, ticks), s.UpdateSide(domain.SideAsk, ticks)
}

// UpdateSide applies a batch of ticks to one side, creating instrument
// caches lazily on first sight.
func (s *Store) UpdateSide(side domain.Side, ticks []domain.Tick) []domain.CandleUpdate {
	sc := &s.sides[side]
	sc.mu.Lock()
	defer sc.mu.Unlock()

	result := make([]domain.CandleUpdate, 0, len(ticks)*len(domain.CandleTypes))
	for i := range ticks {
		tick := &ticks[i]

		cache, ok := sc.instruments[tick.Instrument]
		if !ok {
			cache = NewInstrumentCache(tick.Instrument, s.minuteCapacity, s.hourCapacity)
			sc.instruments[tick.Instrument] = cache
		}

		result = append(result, cache.HandleRate(tick.UnixTimeSec, tick.Rate(side))...)
	}

	return result
}

// Init inserts a restored candle for one instrument, side and
// granularity, creating the instrument cache if needed.
func (s *Store) Init(instrument string, side domain.Side, candleType domain.CandleType, candle domain.Candle) {
	sc := &s.sides[side]
	sc.mu.Lock()
	defer sc.mu.Unlock()

	cache, ok := sc.instruments[instrument]
	if !ok {
		cache = NewInstrumentCache(instrument, s.minuteCapacity, s.hourCapacity)
		sc.instruments[instrument] = cache
	}

	cache.Init(candleType, candle)
}

// Range returns the candles of one instrument, side and granularity
// with bucket starts in [from, to). An unknown instrument yields nil.
func (s *Store) Range(instrument string, side domain.Side, candleType domain.CandleType, from, to int64) []domain.Candle {
	sc := &s.sides[side]
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	cache, ok := sc.instruments[instrument]
	if !ok {
		return nil
	}

	return cache.Range(candleType, from, to)
}

// Instruments returns the sorted instrument ids present on one side.
func (s *Store) Instruments(side domain.Side) []string {
	sc := &s.sides[side]
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	ids := make([]string, 0, len(sc.instruments))
	for id := range sc.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops every instrument cache on both sides.
func (s *Store) Clear() {
	for i := range s.sides {
		sc := &s.sides[i]
		sc.mu.Lock()
		sc.instruments = make(map[string]*InstrumentCache)
		sc.mu.Unlock()
	}
}
