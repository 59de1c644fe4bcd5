package persistence

import (
	"strings"
	"testing"
	"time"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// 2022-09-07 13:23:24 UTC
var sampleTime = time.Date(2022, 9, 7, 13, 23, 24, 0, time.UTC).Unix()

func TestPartitionKey(t *testing.T) {
	tests := []struct {
		candleType domain.CandleType
		want       string
	}{
		{domain.CandleTypeMinute, "20220907"},
		{domain.CandleTypeHour, "202209"},
		{domain.CandleTypeDay, "2022"},
		{domain.CandleTypeMonth, "2022"},
	}

	for _, tt := range tests {
		t.Run(tt.candleType.String(), func(t *testing.T) {
			if got := PartitionKey(tt.candleType, sampleTime); got != tt.want {
				t.Errorf("PartitionKey(%s, %d) = %q, want %q", tt.candleType, sampleTime, got, tt.want)
			}
		})
	}
}

func TestRowKey(t *testing.T) {
	tests := []struct {
		candleType domain.CandleType
		want       string
	}{
		{domain.CandleTypeMinute, "13"},  // hour of day
		{domain.CandleTypeHour, "07"},    // day of month
		{domain.CandleTypeDay, "09"},     // month of year
		{domain.CandleTypeMonth, "2022"}, // year
	}

	for _, tt := range tests {
		t.Run(tt.candleType.String(), func(t *testing.T) {
			if got := RowKey(tt.candleType, sampleTime); got != tt.want {
				t.Errorf("RowKey(%s, %d) = %q, want %q", tt.candleType, sampleTime, got, tt.want)
			}
		})
	}
}

func TestEncodeCandles_ZeroPadsDatePart(t *testing.T) {
	bucket := time.Date(2022, 9, 7, 13, 5, 0, 0, time.UTC).Unix()
	data := EncodeCandles(domain.CandleTypeMinute, map[int64]domain.Candle{
		bucket: {Open: 1, Close: 2, High: 3, Low: 0.5, Datetime: bucket},
	})

	if !strings.HasPrefix(data, "05;") {
		t.Errorf("encoded entry = %q, want zero-padded date part prefix \"05;\"", data)
	}
}

func TestEncodeCandles_OrderAndFields(t *testing.T) {
	first := time.Date(2022, 9, 7, 13, 5, 0, 0, time.UTC).Unix()
	second := time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC).Unix()

	data := EncodeCandles(domain.CandleTypeMinute, map[int64]domain.Candle{
		second: {Open: 5, Close: 6, High: 7, Low: 4, Datetime: second},
		first:  {Open: 1, Close: 2, High: 3, Low: 0.5, Datetime: first},
	})

	if data != "05;1;2;3;0.5|23;5;6;7;4" {
		t.Errorf("encoded payload = %q, want \"05;1;2;3;0.5|23;5;6;7;4\"", data)
	}
}

func TestDecodeCandles_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		candleType domain.CandleType
		buckets    []int64
	}{
		{
			name:       "minute record",
			candleType: domain.CandleTypeMinute,
			buckets: []int64{
				time.Date(2022, 9, 7, 13, 0, 0, 0, time.UTC).Unix(),
				time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC).Unix(),
				time.Date(2022, 9, 7, 13, 59, 0, 0, time.UTC).Unix(),
			},
		},
		{
			name:       "hour record",
			candleType: domain.CandleTypeHour,
			buckets: []int64{
				time.Date(2022, 9, 7, 0, 0, 0, 0, time.UTC).Unix(),
				time.Date(2022, 9, 7, 13, 0, 0, 0, time.UTC).Unix(),
			},
		},
		{
			name:       "day record",
			candleType: domain.CandleTypeDay,
			buckets: []int64{
				time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC).Unix(),
				time.Date(2022, 9, 30, 0, 0, 0, 0, time.UTC).Unix(),
			},
		},
		{
			name:       "month record",
			candleType: domain.CandleTypeMonth,
			buckets: []int64{
				time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
				time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC).Unix(),
				time.Date(2022, 12, 1, 0, 0, 0, 0, time.UTC).Unix(),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := make(map[int64]domain.Candle, len(tt.buckets))
			for i, bucket := range tt.buckets {
				candles[bucket] = domain.Candle{
					Open:     10 + float64(i),
					Close:    20 + float64(i),
					High:     30 + float64(i),
					Low:      5 + float64(i),
					Datetime: bucket,
				}
			}

			partitionKey := PartitionKey(tt.candleType, tt.buckets[0])
			rowKey := RowKey(tt.candleType, tt.buckets[0])

			decoded, err := DecodeCandles(tt.candleType, partitionKey, rowKey,
				EncodeCandles(tt.candleType, candles))
			if err != nil {
				t.Fatalf("DecodeCandles() error = %v", err)
			}

			if len(decoded) != len(candles) {
				t.Fatalf("decoded %d candles, want %d", len(decoded), len(candles))
			}

			for bucket, want := range candles {
				got, ok := decoded[bucket]
				if !ok {
					t.Fatalf("bucket %d missing after round trip", bucket)
				}
				if got != want {
					t.Errorf("bucket %d = %+v, want %+v", bucket, got, want)
				}
			}
		})
	}
}

// The hour layout mixes coarser date parts across key and entry: the
// row key carries the day of month while the entry carries the hour.
func TestDecodeCandles_HourLayering(t *testing.T) {
	decoded, err := DecodeCandles(domain.CandleTypeHour, "202209", "07", "13;1;2;3;0.5")
	if err != nil {
		t.Fatalf("DecodeCandles() error = %v", err)
	}

	want := time.Date(2022, 9, 7, 13, 0, 0, 0, time.UTC).Unix()
	if _, ok := decoded[want]; !ok {
		t.Fatalf("decoded buckets = %v, want %d (2022-09-07T13:00)", keysOf(decoded), want)
	}
}

// Legacy records wrote the date part without padding; the decoder
// accepts both forms.
func TestDecodeCandles_UnpaddedDatePart(t *testing.T) {
	decoded, err := DecodeCandles(domain.CandleTypeMinute, "20220907", "13", "5;1;2;3;0.5")
	if err != nil {
		t.Fatalf("DecodeCandles() error = %v", err)
	}

	want := time.Date(2022, 9, 7, 13, 5, 0, 0, time.UTC).Unix()
	if _, ok := decoded[want]; !ok {
		t.Errorf("decoded buckets = %v, want %d", keysOf(decoded), want)
	}
}

func TestDecodeCandles_DistinctFields(t *testing.T) {
	decoded, err := DecodeCandles(domain.CandleTypeMinute, "20220907", "13", "23;25.55;50.55;60.55;20.55")
	if err != nil {
		t.Fatalf("DecodeCandles() error = %v", err)
	}

	bucket := time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC).Unix()
	got := decoded[bucket]
	if got.Open != 25.55 || got.Close != 50.55 || got.High != 60.55 || got.Low != 20.55 {
		t.Errorf("decoded candle = %+v, want open=25.55 close=50.55 high=60.55 low=20.55", got)
	}
}

func TestDecodeCandles_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "too few fields", data: "23;1;2;3"},
		{name: "too many fields", data: "23;1;2;3;4;5"},
		{name: "non-numeric price", data: "23;1;x;3;4"},
		{name: "non-numeric date part", data: "xx;1;2;3;4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCandles(domain.CandleTypeMinute, "20220907", "13", tt.data); err == nil {
				t.Errorf("DecodeCandles(%q) expected error, got none", tt.data)
			}
		})
	}
}

func TestDecodeCandles_Empty(t *testing.T) {
	decoded, err := DecodeCandles(domain.CandleTypeMinute, "20220907", "13", "")
	if err != nil {
		t.Fatalf("DecodeCandles() error = %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d candles from empty payload, want 0", len(decoded))
	}
}

func keysOf(candles map[int64]domain.Candle) []int64 {
	keys := make([]int64, 0, len(candles))
	for key := range candles {
		keys = append(keys, key)
	}
	return keys
}
