package persistence

import (
	"context"
	"math"
	"time"

	"github.com/meridianfx/candle-writer/internal/candle"
	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/meridianfx/candle-writer/internal/registry"
	"go.uber.org/zap"
)

// Restore rebuilds the in-memory caches from the table stores. It
// loads the instrument registry, then for every instrument, side and
// granularity reads back the stored candles: minute and hour limited
// to the cache horizon, day and month in full. The returned timestamp
// is the newest bucket start seen; the checkpoint loop starts from it.
//
// Restore must complete before tick intake begins.
func Restore(ctx context.Context, store *candle.Store, reg *registry.Registry, engine *Engine, minuteCapacity, hourCapacity int, logger *zap.Logger) (latest int64, restored int, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := reg.Restore(ctx); err != nil {
		return 0, 0, err
	}

	now := engine.now().UTC()
	bounds := [4]struct {
		candleType domain.CandleType
		start      int64
	}{
		{domain.CandleTypeMinute, now.Add(-time.Duration(minuteCapacity) * time.Minute).Unix()},
		{domain.CandleTypeHour, now.Add(-time.Duration(hourCapacity) * time.Hour).Unix()},
		{domain.CandleTypeDay, math.MaxInt64},
		{domain.CandleTypeMonth, math.MaxInt64},
	}

	instruments := reg.Instruments()
	logger.Info("Restoring candles", zap.Int("instruments", len(instruments)))

	restoreStart := time.Now()

	for _, instrument := range instruments {
		instrumentStart := time.Now()

		for _, side := range domain.Sides {
			for _, bound := range bounds {
				candles := engine.Load(ctx, instrument, side, bound.candleType, bound.start)

				for _, c := range candles {
					if c.Datetime > latest {
						latest = c.Datetime
					}
					store.Init(instrument, side, bound.candleType, c)
				}
				restored += len(candles)

				logger.Debug("Restored candle series",
					zap.String("instrument", instrument),
					zap.Stringer("side", side),
					zap.Stringer("candle_type", bound.candleType),
					zap.Int("count", len(candles)),
				)
			}
		}

		logger.Info("Instrument restored",
			zap.String("instrument", instrument),
			zap.Duration("duration", time.Since(instrumentStart)),
		)
	}

	logger.Info("Restore complete",
		zap.Int64("latest_timestamp", latest),
		zap.Int("candles", restored),
		zap.Duration("duration", time.Since(restoreStart)),
	)

	return latest, restored, nil
}
