package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisReader consumes raw tick payloads from a Redis pub/sub channel.
// It implements automatic resubscription with exponential backoff.
type RedisReader struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger

	// Reconnection config
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	backoffFactor float64

	onReconnect func()
}

// RedisReaderOption is a functional option for configuring RedisReader.
type RedisReaderOption func(*RedisReader)

// WithReaderLogger sets the logger for the reader.
func WithReaderLogger(logger *zap.Logger) RedisReaderOption {
	return func(r *RedisReader) {
		r.logger = logger
	}
}

// WithReaderBackoff sets the exponential backoff configuration.
func WithReaderBackoff(base, max time.Duration, factor float64) RedisReaderOption {
	return func(r *RedisReader) {
		r.baseBackoff = base
		r.maxBackoff = max
		r.backoffFactor = factor
	}
}

// WithReconnectHook registers a callback invoked on every
// resubscription attempt after the first.
func WithReconnectHook(hook func()) RedisReaderOption {
	return func(r *RedisReader) {
		r.onReconnect = hook
	}
}

// NewRedisReader creates a reader subscribed to the given channel.
func NewRedisReader(client *redis.Client, channel string, opts ...RedisReaderOption) *RedisReader {
	r := &RedisReader{
		client:        client,
		channel:       channel,
		logger:        zap.NewNop(),
		baseBackoff:   1 * time.Second,
		maxBackoff:    30 * time.Second,
		backoffFactor: 2.0,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Read starts consuming from the channel and returns channels for
// payloads and errors. Both are closed when the context is canceled.
func (r *RedisReader) Read(ctx context.Context) (<-chan []byte, <-chan error) {
	payloadCh := make(chan []byte, 100)
	errCh := make(chan error, 10)

	go r.readLoop(ctx, payloadCh, errCh)

	return payloadCh, errCh
}

// Close releases the Redis client connection.
func (r *RedisReader) Close() error {
	return r.client.Close()
}

// readLoop subscribes and forwards payloads, resubscribing with
// backoff when the subscription drops.
func (r *RedisReader) readLoop(ctx context.Context, payloadCh chan<- []byte, errCh chan<- error) {
	defer close(payloadCh)
	defer close(errCh)

	backoff := r.baseBackoff
	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if attempts > 0 && r.onReconnect != nil {
			r.onReconnect()
		}

		pubsub := r.client.Subscribe(ctx, r.channel)

		// Confirm the subscription before trusting the channel.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()

			if ctx.Err() != nil {
				return
			}

			errCh <- fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
			attempts++
			r.sleep(ctx, backoff)
			backoff = r.nextBackoff(backoff)
			continue
		}

		r.logger.Info("Subscribed to tick channel", zap.String("channel", r.channel))
		backoff = r.baseBackoff

		if done := r.consume(ctx, pubsub, payloadCh, errCh); done {
			_ = pubsub.Close()
			return
		}

		_ = pubsub.Close()
		attempts++
		r.sleep(ctx, backoff)
		backoff = r.nextBackoff(backoff)
	}
}

// consume forwards messages until the context ends or the subscription
// channel closes. Returns true when the loop should stop for good.
func (r *RedisReader) consume(ctx context.Context, pubsub *redis.PubSub, payloadCh chan<- []byte, errCh chan<- error) bool {
	msgCh := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return true
		case msg, ok := <-msgCh:
			if !ok {
				errCh <- fmt.Errorf("subscription to %s closed (will resubscribe)", r.channel)
				return false
			}

			select {
			case payloadCh <- []byte(msg.Payload):
			case <-ctx.Done():
				return true
			}
		}
	}
}

// sleep sleeps for the given duration or until context is canceled.
func (r *RedisReader) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// nextBackoff calculates the next backoff duration with exponential
// growth.
func (r *RedisReader) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * r.backoffFactor)
	if next > r.maxBackoff {
		return r.maxBackoff
	}
	return next
}
