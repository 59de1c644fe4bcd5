package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/meridianfx/candle-writer/internal/tablestore"
	"go.uber.org/zap"
)

// Engine reads and writes packed candle records. Bid and ask live in
// separate storage accounts; within an account there is one table per
// (instrument, granularity), created on first use and remembered in a
// small per-side cache so creation happens once per process.
type Engine struct {
	stores [2]tablestore.Store

	tablesMu sync.RWMutex
	tables   [2]map[string]struct{} // per side: table names already ensured

	logger *zap.Logger
	now    func() time.Time
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for the engine.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEngineClock overrides the wall clock; tests use this to pin the
// partition walk horizon.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the bid and ask table stores.
func NewEngine(bid, ask tablestore.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		stores: [2]tablestore.Store{bid, ask},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for i := range e.tables {
		e.tables[i] = make(map[string]struct{})
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// table resolves the store and table name for one (instrument, side,
// granularity), ensuring the table exists on first use. A creation
// failure is logged and tolerated: the table may already exist and the
// next operation will surface a real problem.
func (e *Engine) table(ctx context.Context, instrument string, side domain.Side, candleType domain.CandleType) (tablestore.Store, string) {
	name := TableName(candleType, instrument)
	store := e.stores[side]

	e.tablesMu.RLock()
	_, ensured := e.tables[side][name]
	e.tablesMu.RUnlock()
	if ensured {
		return store, name
	}

	if err := store.CreateTable(ctx, name); err != nil {
		e.logger.Error("Failed to create candle table",
			zap.String("table", name),
			zap.Stringer("side", side),
			zap.Error(err),
		)
	}

	e.tablesMu.Lock()
	e.tables[side][name] = struct{}{}
	e.tablesMu.Unlock()

	return store, name
}

// BulkSave merges a set of candles of one (instrument, side,
// granularity) into their durable records. Candles are grouped by key
// pair; each group is read-merged-rewritten so buckets already on disk
// keep their history. Individual upsert failures are logged and do not
// abort the rest of the save; they are not reported to the caller, and
// the affected candles are not retried.
func (e *Engine) BulkSave(ctx context.Context, instrument string, side domain.Side, candleType domain.CandleType, candles []domain.Candle) {
	if len(candles) == 0 {
		return
	}

	store, table := e.table(ctx, instrument, side, candleType)

	// partition key -> row key -> merged candles of that record
	records := make(map[string]map[string]map[int64]domain.Candle)

	for _, candle := range candles {
		partitionKey := PartitionKey(candleType, candle.Datetime)
		rowKey := RowKey(candleType, candle.Datetime)

		partition, ok := records[partitionKey]
		if !ok {
			partition = make(map[string]map[int64]domain.Candle)
			records[partitionKey] = partition
		}

		merged, ok := partition[rowKey]
		if !ok {
			existing, err := e.loadRecord(ctx, store, table, candleType, partitionKey, rowKey)
			if err != nil {
				e.logger.Error("Skipping unreadable candle record",
					zap.String("table", table),
					zap.String("partition_key", partitionKey),
					zap.String("row_key", rowKey),
					zap.Error(err),
				)
				continue
			}
			merged = existing
			partition[rowKey] = merged
		}

		merged[candle.Datetime] = candle
	}

	for partitionKey, partition := range records {
		entities := make([]tablestore.Entity, 0, len(partition))
		for rowKey, merged := range partition {
			entities = append(entities, tablestore.Entity{
				PartitionKey: partitionKey,
				RowKey:       rowKey,
				Data:         EncodeCandles(candleType, merged),
			})
		}

		for start := 0; start < len(entities); start += tablestore.MaxBatchSize {
			end := start + tablestore.MaxBatchSize
			if end > len(entities) {
				end = len(entities)
			}

			if err := store.InsertOrReplace(ctx, table, entities[start:end]); err != nil {
				e.logger.Error("Failed to save candle batch",
					zap.String("table", table),
					zap.String("partition_key", partitionKey),
					zap.Int("batch_size", end-start),
					zap.Error(err),
				)
			}
		}
	}
}

// loadRecord fetches and decodes one record, returning an empty set
// when the record does not exist yet.
func (e *Engine) loadRecord(ctx context.Context, store tablestore.Store, table string, candleType domain.CandleType, partitionKey, rowKey string) (map[int64]domain.Candle, error) {
	entity, err := store.Get(ctx, table, partitionKey, rowKey)
	if errors.Is(err, tablestore.ErrNotFound) {
		return make(map[int64]domain.Candle), nil
	}
	if err != nil {
		return nil, err
	}

	return DecodeCandles(candleType, entity.PartitionKey, entity.RowKey, entity.Data)
}

// Load returns the stored candles of one (instrument, side,
// granularity). Day and month tables are small enough to scan whole;
// minute and hour tables are read by walking partitions from the given
// start time to now, one calendar day or month per step. Unreadable
// partitions are logged and dropped so a damaged fragment never blocks
// a restore.
func (e *Engine) Load(ctx context.Context, instrument string, side domain.Side, candleType domain.CandleType, startUnixSec int64) []domain.Candle {
	store, table := e.table(ctx, instrument, side, candleType)

	if candleType == domain.CandleTypeDay || candleType == domain.CandleTypeMonth {
		entities, err := store.Scan(ctx, table)
		if err != nil {
			e.logger.Error("Failed to scan candle table",
				zap.String("table", table),
				zap.Error(err),
			)
			return nil
		}
		return e.decodeEntities(table, candleType, entities)
	}

	var result []domain.Candle
	for _, partitionKey := range e.partitionWalk(candleType, startUnixSec) {
		entities, err := store.QueryPartition(ctx, table, partitionKey)
		if err != nil {
			e.logger.Error("Failed to read candle partition",
				zap.String("table", table),
				zap.String("partition_key", partitionKey),
				zap.Error(err),
			)
			continue
		}
		result = append(result, e.decodeEntities(table, candleType, entities)...)
	}

	return result
}

// partitionWalk lists the partition keys from startUnixSec until
// strictly past now: minute partitions advance one day per step, hour
// partitions one calendar month.
func (e *Engine) partitionWalk(candleType domain.CandleType, startUnixSec int64) []string {
	keys := []string{PartitionKey(candleType, startUnixSec)}

	now := e.now().UTC().Unix()
	next := startUnixSec
	for {
		t := time.Unix(next, 0).UTC()
		if candleType == domain.CandleTypeMinute {
			next = t.AddDate(0, 0, 1).Unix()
		} else {
			next = t.AddDate(0, 1, 0).Unix()
		}

		keys = append(keys, PartitionKey(candleType, next))
		if next > now {
			return keys
		}
	}
}

func (e *Engine) decodeEntities(table string, candleType domain.CandleType, entities []tablestore.Entity) []domain.Candle {
	var result []domain.Candle
	for _, entity := range entities {
		decoded, err := DecodeCandles(candleType, entity.PartitionKey, entity.RowKey, entity.Data)
		if err != nil {
			e.logger.Error("Dropping undecodable candle record",
				zap.String("table", table),
				zap.String("partition_key", entity.PartitionKey),
				zap.String("row_key", entity.RowKey),
				zap.Error(err),
			)
			continue
		}

		for _, candle := range sortedCandles(decoded) {
			result = append(result, candle)
		}
	}
	return result
}

func sortedCandles(candles map[int64]domain.Candle) []domain.Candle {
	keys := make([]int64, 0, len(candles))
	for key := range candles {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	result := make([]domain.Candle, 0, len(keys))
	for _, key := range keys {
		result = append(result, candles[key])
	}
	return result
}
