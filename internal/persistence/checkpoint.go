package persistence

import (
	"context"
	"time"

	"github.com/meridianfx/candle-writer/internal/candle"
	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/meridianfx/candle-writer/internal/registry"
	"go.uber.org/zap"
)

// Checkpointer periodically flushes cached candles into the table
// stores. Each cycle persists the instrument registry first, then for
// every side, instrument and granularity saves the candles whose bucket
// start lies between the previous cycle's upper bound (inclusive) and
// now (exclusive). The window always advances to now: a bucket that
// started before it is not saved again, whether its upsert failed or
// it received further ticks.
type Checkpointer struct {
	store    *candle.Store
	registry *registry.Registry
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
	observer CheckpointObserver

	lastCheckpoint int64
}

// CheckpointObserver receives checkpoint cycle measurements.
type CheckpointObserver interface {
	ObserveCheckpointDuration(seconds float64)
	RecordCandlesPersisted(count int)
}

// CheckpointerOption is a functional option for configuring
// Checkpointer.
type CheckpointerOption func(*Checkpointer)

// WithCheckpointClock overrides the wall clock for tests.
func WithCheckpointClock(now func() time.Time) CheckpointerOption {
	return func(c *Checkpointer) {
		c.now = now
	}
}

// WithCheckpointObserver wires cycle measurements into metrics.
func WithCheckpointObserver(observer CheckpointObserver) CheckpointerOption {
	return func(c *Checkpointer) {
		c.observer = observer
	}
}

// NewCheckpointer creates a checkpoint loop over the given cache,
// registry and engine. The first cycle flushes everything newer than
// lastCheckpoint, normally the latest restored bucket start.
func NewCheckpointer(store *candle.Store, reg *registry.Registry, engine *Engine, interval time.Duration, lastCheckpoint int64, logger *zap.Logger, opts ...CheckpointerOption) *Checkpointer {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Checkpointer{
		store:          store,
		registry:       reg,
		engine:         engine,
		interval:       interval,
		logger:         logger,
		now:            time.Now,
		lastCheckpoint: lastCheckpoint,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes checkpoint cycles until the context is canceled. The
// cancellation check sits at the iteration boundary; an in-flight
// cycle always completes.
func (c *Checkpointer) Run(ctx context.Context) error {
	c.logger.Info("Checkpoint loop started", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Checkpoint loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce executes one checkpoint cycle: registry first, then every
// side, instrument and granularity in turn. Each (instrument,
// granularity) range is taken atomically under the side's read lock;
// the lock is released between ranges, so the cut is consistent
// neither across instruments nor across one instrument's granularities.
func (c *Checkpointer) RunOnce(ctx context.Context) {
	started := c.now()
	now := started.UTC().Unix()
	from := c.lastCheckpoint

	c.logger.Info("Checkpoint cycle started",
		zap.Int64("from", from),
		zap.Int64("to", now),
	)

	c.registry.Persist(ctx)

	saved := 0
	for _, side := range domain.Sides {
		for _, instrument := range c.store.Instruments(side) {
			for _, candleType := range domain.CandleTypes {
				candles := c.store.Range(instrument, side, candleType, from, now)
				if len(candles) == 0 {
					continue
				}

				c.logger.Debug("Persisting candles",
					zap.String("instrument", instrument),
					zap.Stringer("side", side),
					zap.Stringer("candle_type", candleType),
					zap.Int("count", len(candles)),
				)

				c.engine.BulkSave(ctx, instrument, side, candleType, candles)
				saved += len(candles)
			}
		}
	}

	c.lastCheckpoint = now

	if c.observer != nil {
		c.observer.ObserveCheckpointDuration(time.Since(started).Seconds())
		c.observer.RecordCandlesPersisted(saved)
	}

	c.logger.Info("Checkpoint cycle ended",
		zap.Int("candles", saved),
		zap.Duration("duration", time.Since(started)),
	)
}

// LastCheckpoint returns the upper bound of the last completed cycle.
func (c *Checkpointer) LastCheckpoint() int64 {
	return c.lastCheckpoint
}
