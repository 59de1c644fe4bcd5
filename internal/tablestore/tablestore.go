package tablestore

import (
	"context"
	"errors"
)

// MaxBatchSize is the largest entity batch InsertOrReplace accepts.
// Larger writes must be chunked by the caller.
const MaxBatchSize = 90

// ErrNotFound is returned by Get when no entity exists at the key pair.
var ErrNotFound = errors.New("tablestore: entity not found")

// Entity is one row of a logical table, addressed by its partition and
// row keys with an opaque string payload.
type Entity struct {
	PartitionKey string
	RowKey       string
	Data         string
}

// Store is a row-oriented table store keyed by (partition_key,
// row_key). Implementations must be safe for concurrent use.
//
// Tables are created lazily by callers; creating a table that already
// exists is benign. All operations may block on I/O and honor context
// cancellation.
type Store interface {
	// CreateTable ensures the named table exists. Idempotent.
	CreateTable(ctx context.Context, table string) error

	// Get fetches the entity at (partitionKey, rowKey), or ErrNotFound.
	Get(ctx context.Context, table, partitionKey, rowKey string) (*Entity, error)

	// InsertOrReplace upserts a batch of entities. All entities must
	// share one partition key and the batch must not exceed
	// MaxBatchSize.
	InsertOrReplace(ctx context.Context, table string, entities []Entity) error

	// QueryPartition returns all entities of one partition, ascending
	// by row key.
	QueryPartition(ctx context.Context, table, partitionKey string) ([]Entity, error)

	// Scan returns every entity of the table, ascending by
	// (partition_key, row_key).
	Scan(ctx context.Context, table string) ([]Entity, error)

	// Close releases the underlying connections.
	Close() error
}
