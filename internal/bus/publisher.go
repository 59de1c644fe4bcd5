package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meridianfx/candle-writer/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher publishes candle snapshots to a Redis pub/sub
// channel, one message per processed tick.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends one snapshot. Failures are returned for the caller to
// count and absorb; publishing never blocks the aggregation path
// beyond the Redis round trip.
func (p *RedisPublisher) Publish(ctx context.Context, snapshot *domain.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	p.logger.Debug("Published snapshot",
		zap.String("instrument", snapshot.Instrument),
		zap.Int64("unix_time_sec", snapshot.UnixTimeSec),
	)

	return nil
}

// Ping checks bus connectivity, used by the readiness probe.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the Redis client connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
