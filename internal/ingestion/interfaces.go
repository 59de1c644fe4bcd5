package ingestion

import (
	"context"

	"github.com/meridianfx/candle-writer/internal/domain"
)

// Reader consumes raw tick payloads from the bus (Redis pub/sub, file,
// mock, etc.). Implementations must be safe for concurrent use.
//
// The Read method returns two channels:
//   - payload channel: emits raw messages as they arrive
//   - error channel: emits errors that occur while consuming
//
// Both channels are closed when the context is canceled.
type Reader interface {
	// Read starts consuming and returns channels for payloads and
	// errors. The returned channels will be closed when ctx is
	// canceled.
	Read(ctx context.Context) (<-chan []byte, <-chan error)

	// Close gracefully shuts down the reader and releases resources.
	Close() error
}

// Parser transforms raw bus payloads into domain ticks.
// Implementations should be stateless and safe for concurrent use.
type Parser interface {
	// Parse converts one raw payload to a domain tick.
	// Returns an error if the payload cannot be parsed or is invalid.
	Parse(payload []byte) (*domain.Tick, error)
}

// Publisher emits one candle snapshot per processed tick.
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish sends one snapshot. Returns an error if the publish
	// fails; the pipeline logs and absorbs it.
	Publish(ctx context.Context, snapshot *domain.Snapshot) error

	// Close gracefully shuts down the publisher and releases
	// resources.
	Close() error
}
