package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/meridianfx/candle-writer/internal/tablestore"
)

func testEngine(now time.Time) (*Engine, *tablestore.Memory, *tablestore.Memory) {
	bid := tablestore.NewMemory()
	ask := tablestore.NewMemory()
	engine := NewEngine(bid, ask, WithEngineClock(func() time.Time { return now }))
	return engine, bid, ask
}

func TestEngine_BulkSave_Load_RoundTrip(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		candleType domain.CandleType
		buckets    []time.Time
	}{
		{
			name:       "minute across two hours",
			candleType: domain.CandleTypeMinute,
			buckets: []time.Time{
				time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC),
				time.Date(2022, 9, 7, 13, 24, 0, 0, time.UTC),
				time.Date(2022, 9, 7, 14, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "hour across two days",
			candleType: domain.CandleTypeHour,
			buckets: []time.Time{
				time.Date(2022, 9, 6, 23, 0, 0, 0, time.UTC),
				time.Date(2022, 9, 7, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "day across two months",
			candleType: domain.CandleTypeDay,
			buckets: []time.Time{
				time.Date(2022, 8, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:       "months of one year",
			candleType: domain.CandleTypeMonth,
			buckets: []time.Time{
				time.Date(2022, 8, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := testEngine(now)
			ctx := context.Background()

			candles := make([]domain.Candle, 0, len(tt.buckets))
			for i, bucket := range tt.buckets {
				candles = append(candles, domain.Candle{
					Open:     10 + float64(i),
					Close:    20 + float64(i),
					High:     30 + float64(i),
					Low:      5 + float64(i),
					Datetime: bucket.Unix(),
				})
			}

			engine.BulkSave(ctx, "EURUSD", domain.SideBid, tt.candleType, candles)

			loaded := engine.Load(ctx, "EURUSD", domain.SideBid, tt.candleType, tt.buckets[0].Unix())
			if len(loaded) != len(candles) {
				t.Fatalf("loaded %d candles, want %d", len(loaded), len(candles))
			}

			byBucket := make(map[int64]domain.Candle, len(loaded))
			for _, c := range loaded {
				byBucket[c.Datetime] = c
			}
			for _, want := range candles {
				if got := byBucket[want.Datetime]; got != want {
					t.Errorf("bucket %d = %+v, want %+v", want.Datetime, got, want)
				}
			}
		})
	}
}

func TestEngine_BulkSave_MergesExistingRecord(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)
	engine, _, _ := testEngine(now)
	ctx := context.Background()

	first := time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC).Unix()
	second := time.Date(2022, 9, 7, 13, 24, 0, 0, time.UTC).Unix()

	engine.BulkSave(ctx, "EURUSD", domain.SideBid, domain.CandleTypeMinute, []domain.Candle{
		{Open: 25.55, Close: 25.55, High: 25.55, Low: 25.55, Datetime: first},
	})

	// A later save touching the same record must keep the first bucket
	// and overwrite nothing but the buckets it carries.
	engine.BulkSave(ctx, "EURUSD", domain.SideBid, domain.CandleTypeMinute, []domain.Candle{
		{Open: 30, Close: 31, High: 32, Low: 29, Datetime: second},
	})

	// Overwrite the first bucket with merged OHLC values.
	engine.BulkSave(ctx, "EURUSD", domain.SideBid, domain.CandleTypeMinute, []domain.Candle{
		{Open: 25.55, Close: 50.55, High: 60.55, Low: 25.55, Datetime: first},
	})

	loaded := engine.Load(ctx, "EURUSD", domain.SideBid, domain.CandleTypeMinute, first)
	if len(loaded) != 2 {
		t.Fatalf("loaded %d candles, want 2", len(loaded))
	}

	byBucket := make(map[int64]domain.Candle, len(loaded))
	for _, c := range loaded {
		byBucket[c.Datetime] = c
	}

	wantFirst := domain.Candle{Open: 25.55, Close: 50.55, High: 60.55, Low: 25.55, Datetime: first}
	if byBucket[first] != wantFirst {
		t.Errorf("first bucket = %+v, want %+v", byBucket[first], wantFirst)
	}

	wantSecond := domain.Candle{Open: 30, Close: 31, High: 32, Low: 29, Datetime: second}
	if byBucket[second] != wantSecond {
		t.Errorf("second bucket = %+v, want %+v", byBucket[second], wantSecond)
	}
}

func TestEngine_BulkSave_SeparatesSides(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)
	engine, bidStore, askStore := testEngine(now)
	ctx := context.Background()

	bucket := time.Date(2022, 9, 7, 13, 23, 0, 0, time.UTC).Unix()
	engine.BulkSave(ctx, "EURUSD", domain.SideBid, domain.CandleTypeMinute, []domain.Candle{
		{Open: 1, Close: 1, High: 1, Low: 1, Datetime: bucket},
	})

	if tables := bidStore.Tables(); len(tables) != 1 || tables[0] != "EURUSD0" {
		t.Errorf("bid tables = %v, want [EURUSD0]", tables)
	}
	if tables := askStore.Tables(); len(tables) != 0 {
		t.Errorf("ask tables = %v, want empty", tables)
	}
}

func TestEngine_Load_WalksPartitions(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)
	engine, _, _ := testEngine(now)
	ctx := context.Background()

	dayOne := time.Date(2022, 9, 6, 10, 0, 0, 0, time.UTC).Unix()
	dayTwo := time.Date(2022, 9, 7, 10, 0, 0, 0, time.UTC).Unix()

	engine.BulkSave(ctx, "EURUSD", domain.SideAsk, domain.CandleTypeMinute, []domain.Candle{
		{Open: 1, Close: 1, High: 1, Low: 1, Datetime: dayOne},
		{Open: 2, Close: 2, High: 2, Low: 2, Datetime: dayTwo},
	})

	loaded := engine.Load(ctx, "EURUSD", domain.SideAsk, domain.CandleTypeMinute, dayOne)
	if len(loaded) != 2 {
		t.Fatalf("loaded %d candles, want 2 (one per daily partition)", len(loaded))
	}

	// Starting the walk after the first day skips its partition.
	loaded = engine.Load(ctx, "EURUSD", domain.SideAsk, domain.CandleTypeMinute, dayTwo)
	if len(loaded) != 1 || loaded[0].Datetime != dayTwo {
		t.Errorf("loaded = %v, want only the second day's candle", loaded)
	}
}

func TestEngine_Load_DropsUndecodableRecords(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)
	engine, _, askStore := testEngine(now)
	ctx := context.Background()

	bucket := time.Date(2022, 9, 7, 0, 0, 0, 0, time.UTC).Unix()
	engine.BulkSave(ctx, "EURUSD", domain.SideAsk, domain.CandleTypeDay, []domain.Candle{
		{Open: 1, Close: 2, High: 3, Low: 0.5, Datetime: bucket},
	})

	// Corrupt a sibling record directly in the store.
	if err := askStore.InsertOrReplace(ctx, "EURUSD2", []tablestore.Entity{
		{PartitionKey: "2021", RowKey: "05", Data: "not-a-candle"},
	}); err != nil {
		t.Fatalf("failed to plant corrupt record: %v", err)
	}

	loaded := engine.Load(ctx, "EURUSD", domain.SideAsk, domain.CandleTypeDay, 0)
	if len(loaded) != 1 || loaded[0].Datetime != bucket {
		t.Errorf("loaded = %v, want only the intact candle", loaded)
	}
}

func TestEngine_Load_EmptyTable(t *testing.T) {
	now := time.Date(2022, 9, 8, 12, 0, 0, 0, time.UTC)
	engine, _, _ := testEngine(now)

	loaded := engine.Load(context.Background(), "EURUSD", domain.SideBid, domain.CandleTypeMonth, 0)
	if len(loaded) != 0 {
		t.Errorf("loaded %d candles from empty table, want 0", len(loaded))
	}
}
