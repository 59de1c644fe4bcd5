package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meridianfx/candle-writer/internal/candle"
	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/meridianfx/candle-writer/internal/registry"
	"go.uber.org/zap"
)

// Pipeline orchestrates the tick intake process:
// Reader → Parser → aggregate (registry + candle store) → Publisher.
//
// Aggregation runs on a single goroutine so ticks are applied in
// arrival order and each instrument's candle sequence stays
// deterministic. The aggregation path itself never fails: parse
// failures skip the message and publish failures are logged and
// absorbed.
type Pipeline struct {
	reader     Reader
	parser     Parser
	publisher  Publisher
	store      *candle.Store
	registry   *registry.Registry
	logger     *zap.Logger
	metrics    *Metrics
	bufferSize int

	// Internal state
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// PipelineConfig holds configuration for the pipeline.
type PipelineConfig struct {
	BufferSize int // Buffered channel capacity (default: 10000)
}

// DefaultPipelineConfig returns the default configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BufferSize: 10000,
	}
}

// NewPipeline creates a new tick intake pipeline.
func NewPipeline(reader Reader, parser Parser, publisher Publisher, store *candle.Store, reg *registry.Registry, logger *zap.Logger, metrics *Metrics, config PipelineConfig) *Pipeline {
	if config.BufferSize == 0 {
		config.BufferSize = DefaultPipelineConfig().BufferSize
	}

	return &Pipeline{
		reader:     reader,
		parser:     parser,
		publisher:  publisher,
		store:      store,
		registry:   reg,
		logger:     logger,
		metrics:    metrics,
		bufferSize: config.BufferSize,
		stopCh:     make(chan struct{}),
	}
}

// Run starts the pipeline and blocks until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Starting tick intake pipeline",
		zap.Int("buffer_size", p.bufferSize),
	)

	payloadCh := make(chan []byte, p.bufferSize)

	// Start reading from the bus
	p.wg.Add(1)
	go p.readFromBus(ctx, payloadCh)

	// Single aggregation goroutine keeps per-instrument tick order
	p.wg.Add(1)
	go p.aggregateLoop(ctx, payloadCh)

	// Wait for context cancellation
	<-ctx.Done()
	p.logger.Info("Shutdown signal received, draining pipeline...")

	close(p.stopCh)

	// Wait for all workers to finish
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Pipeline shut down gracefully")
	case <-time.After(30 * time.Second):
		p.logger.Warn("Pipeline shutdown timed out after 30s")
	}

	return nil
}

// readFromBus forwards raw payloads from the reader to the channel.
func (p *Pipeline) readFromBus(ctx context.Context, payloadCh chan<- []byte) {
	defer p.wg.Done()
	defer close(payloadCh)

	busCh, errCh := p.reader.Read(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case payload, ok := <-busCh:
			if !ok {
				p.logger.Info("Bus stream closed")
				return
			}
			payloadCh <- payload
		case err, ok := <-errCh:
			if !ok {
				return
			}
			if err != nil {
				p.logger.Error("Bus error", zap.Error(err))
			}
		}
	}
}

// aggregateLoop parses payloads and applies them to the caches.
func (p *Pipeline) aggregateLoop(ctx context.Context, payloadCh <-chan []byte) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case payload, ok := <-payloadCh:
			if !ok {
				return
			}

			tick, err := p.parser.Parse(payload)
			if err != nil {
				p.logger.Error("Failed to parse tick", zap.Error(err))
				p.metrics.RecordParseError()
				p.metrics.RecordTickError()
				continue
			}

			p.processTick(ctx, tick)
		}
	}
}

// processTick applies one tick to both sides of the cache and
// publishes the resulting snapshot.
func (p *Pipeline) processTick(ctx context.Context, tick *domain.Tick) {
	if !p.registry.Contains(tick.Instrument) {
		p.registry.Add(tick.Instrument)
	}

	bidUpdates, askUpdates := p.store.Update([]domain.Tick{*tick})

	snapshot, err := buildSnapshot(tick.Instrument, bidUpdates, askUpdates)
	if err != nil {
		p.logger.Error("Failed to assemble snapshot",
			zap.String("instrument", tick.Instrument),
			zap.Error(err),
		)
		p.metrics.RecordTickError()
		return
	}

	if err := p.publisher.Publish(ctx, snapshot); err != nil {
		p.logger.Error("Failed to publish snapshot",
			zap.String("instrument", tick.Instrument),
			zap.Error(err),
		)
		p.metrics.RecordPublishError()
	}

	p.metrics.RecordTickSuccess()
}

// buildSnapshot assembles the published message from the four
// per-granularity updates of each side. The bid minute bucket supplies
// the snapshot timestamp.
func buildSnapshot(instrument string, bidUpdates, askUpdates []domain.CandleUpdate) (*domain.Snapshot, error) {
	if len(bidUpdates) != len(domain.CandleTypes) || len(askUpdates) != len(domain.CandleTypes) {
		return nil, fmt.Errorf("expected %d updates per side, got bid=%d ask=%d",
			len(domain.CandleTypes), len(bidUpdates), len(askUpdates))
	}

	return &domain.Snapshot{
		Instrument:  instrument,
		UnixTimeSec: bidUpdates[0].Candle.Datetime,
		Bid:         domain.NewCandleGroup(bidUpdates),
		Ask:         domain.NewCandleGroup(askUpdates),
	}, nil
}

// Close gracefully shuts down the pipeline.
func (p *Pipeline) Close() error {
	p.logger.Info("Closing pipeline resources")

	var errs []error

	if err := p.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("reader close error: %w", err))
	}

	if err := p.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher close error: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("pipeline close errors: %v", errs)
	}

	return nil
}
