package domain

// CandleItem is the OHLC payload of one granularity in a published
// snapshot.
type CandleItem struct {
	Open  float64 `json:"open"`
	Close float64 `json:"close"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
}

// CandleGroup carries the four granularities of one side after a tick.
type CandleGroup struct {
	Minute CandleItem `json:"minute"`
	Hour   CandleItem `json:"hour"`
	Day    CandleItem `json:"day"`
	Month  CandleItem `json:"month"`
}

// Snapshot is published once per input tick, after both sides of the
// cache have been updated.
type Snapshot struct {
	Instrument  string      `json:"instrument"`
	UnixTimeSec int64       `json:"unix_time_sec"`
	Bid         CandleGroup `json:"bid"`
	Ask         CandleGroup `json:"ask"`
}

// NewCandleGroup assembles a group from the four per-granularity
// updates of one side, in fan-out order (minute, hour, day, month).
func NewCandleGroup(updates []CandleUpdate) CandleGroup {
	var group CandleGroup
	for _, u := range updates {
		item := CandleItem{
			Open:  u.Candle.Open,
			Close: u.Candle.Close,
			High:  u.Candle.High,
			Low:   u.Candle.Low,
		}

		switch u.Type {
		case CandleTypeMinute:
			group.Minute = item
		case CandleTypeHour:
			group.Hour = item
		case CandleTypeDay:
			group.Day = item
		case CandleTypeMonth:
			group.Month = item
		}
	}
	return group
}
