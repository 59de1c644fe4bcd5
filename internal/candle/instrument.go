package candle

import "github.com/meridianfx/candle-writer/internal/domain"

// InstrumentCache aggregates one instrument's ticks into the four
// granularity caches. Minute and hour are bounded; day and month grow
// with calendar time.
type InstrumentCache struct {
	instrument string
	minute     *Cache
	hour       *Cache
	day        *Cache
	month      *Cache
}

// NewInstrumentCache creates the four caches for one instrument.
func NewInstrumentCache(instrument string, minuteCapacity, hourCapacity int) *InstrumentCache {
	return &InstrumentCache{
		instrument: instrument,
		minute:     NewBoundedCache(domain.CandleTypeMinute, minuteCapacity),
		hour:       NewBoundedCache(domain.CandleTypeHour, hourCapacity),
		day:        NewCache(domain.CandleTypeDay),
		month:      NewCache(domain.CandleTypeMonth),
	}
}

// Instrument returns the instrument id this cache aggregates.
func (ic *InstrumentCache) Instrument() string {
	return ic.instrument
}

// HandleRate fans one observation out to all four granularities and
// returns the four updates in fan-out order (minute, hour, day, month).
// Every granularity is updated on every tick.
func (ic *InstrumentCache) HandleRate(unixSec int64, rate float64) []domain.CandleUpdate {
	return []domain.CandleUpdate{
		ic.minute.HandleRate(unixSec, rate),
		ic.hour.HandleRate(unixSec, rate),
		ic.day.HandleRate(unixSec, rate),
		ic.month.HandleRate(unixSec, rate),
	}
}

// Init inserts a restored candle into the cache of its granularity.
func (ic *InstrumentCache) Init(candleType domain.CandleType, candle domain.Candle) {
	ic.cacheFor(candleType).Init(candle)
}

// Range returns the candles of one granularity with bucket starts in
// [from, to), ascending.
func (ic *InstrumentCache) Range(candleType domain.CandleType, from, to int64) []domain.Candle {
	return ic.cacheFor(candleType).Range(from, to)
}

// Clear drops all candles of all granularities.
func (ic *InstrumentCache) Clear() {
	ic.minute.Clear()
	ic.hour.Clear()
	ic.day.Clear()
	ic.month.Clear()
}

func (ic *InstrumentCache) cacheFor(candleType domain.CandleType) *Cache {
	switch candleType {
	case domain.CandleTypeMinute:
		return ic.minute
	case domain.CandleTypeHour:
		return ic.hour
	case domain.CandleTypeDay:
		return ic.day
	default:
		return ic.month
	}
}
