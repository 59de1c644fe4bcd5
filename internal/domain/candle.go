package domain

import "fmt"

// Candle is one OHLC bucket. Datetime is the bucket start in unix
// seconds (UTC) and doubles as the cache key.
type Candle struct {
	Open     float64 `json:"open"`
	Close    float64 `json:"close"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Datetime int64   `json:"datetime"`
}

// NewCandleFromRate creates a candle whose four prices all equal the
// first observed rate of the bucket.
func NewCandleFromRate(bucketStart int64, rate float64) Candle {
	return Candle{
		Open:     rate,
		Close:    rate,
		High:     rate,
		Low:      rate,
		Datetime: bucketStart,
	}
}

// ApplyRate folds one more observation into the candle. Open never
// changes after the candle exists.
func (c *Candle) ApplyRate(rate float64) {
	c.Close = rate
	if rate > c.High {
		c.High = rate
	}
	if rate < c.Low {
		c.Low = rate
	}
}

// Validate checks the OHLC ordering invariants.
func (c *Candle) Validate() error {
	if c.Low > c.High {
		return fmt.Errorf("low %v exceeds high %v", c.Low, c.High)
	}
	if c.Open < c.Low || c.Open > c.High {
		return fmt.Errorf("open %v outside [%v, %v]", c.Open, c.Low, c.High)
	}
	if c.Close < c.Low || c.Close > c.High {
		return fmt.Errorf("close %v outside [%v, %v]", c.Close, c.Low, c.High)
	}
	return nil
}

// CandleUpdate is the result of applying one tick to one granularity
// cache. The candle is a copy; callers may publish it without holding
// any reference into the cache.
type CandleUpdate struct {
	Type   CandleType
	Candle Candle
}
