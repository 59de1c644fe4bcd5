package registry

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/meridianfx/candle-writer/internal/tablestore"
	"go.uber.org/zap"
)

const (
	// TableName is the durable table mirroring the instrument set.
	TableName = "instrumentstorage"

	// PartitionKey is the single partition all instrument rows share;
	// the row key is the instrument id itself.
	PartitionKey = "INSTRUMENTSTORAGE"
)

// Registry is the set of known instrument ids with a durable mirror.
// Adds are cheap and in-memory; newly seen ids queue for upsert at the
// next Persist. A drained id that fails to write is logged and not
// re-queued: the mirror is at-most-once by design and the id will be
// re-discovered from the live tick stream.
type Registry struct {
	store  tablestore.Store
	logger *zap.Logger

	mu          sync.RWMutex
	instruments map[string]struct{}

	queueMu sync.Mutex
	queue   []string

	tableCreated atomic.Bool
}

// New creates a registry backed by the given table store.
func New(store tablestore.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:       store,
		logger:      logger,
		instruments: make(map[string]struct{}),
		queue:       make([]string, 0, 100),
	}
}

// Contains reports whether the instrument is already known.
func (r *Registry) Contains(instrument string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instruments[instrument]
	return ok
}

// Add registers an instrument. Idempotent; a new id is queued for the
// next durable persist.
func (r *Registry) Add(instrument string) {
	r.mu.Lock()
	if _, ok := r.instruments[instrument]; ok {
		r.mu.Unlock()
		return
	}
	r.instruments[instrument] = struct{}{}
	r.mu.Unlock()

	r.queueMu.Lock()
	r.queue = append(r.queue, instrument)
	r.queueMu.Unlock()
}

// Len returns the number of known instruments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}

// Instruments returns the sorted ids of all known instruments.
func (r *Registry) Instruments() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.instruments))
	for id := range r.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Persist drains the pending queue into the durable mirror. Upsert
// failures are logged; drained ids are not retried.
func (r *Registry) Persist(ctx context.Context) {
	r.ensureTable(ctx)

	r.queueMu.Lock()
	pending := r.queue
	r.queue = make([]string, 0, 100)
	r.queueMu.Unlock()

	if len(pending) == 0 {
		return
	}

	for _, instrument := range pending {
		entity := tablestore.Entity{
			PartitionKey: PartitionKey,
			RowKey:       instrument,
		}

		if err := r.store.InsertOrReplace(ctx, TableName, []tablestore.Entity{entity}); err != nil {
			r.logger.Error("Failed to persist instrument",
				zap.String("instrument", instrument),
				zap.Error(err),
			)
		}
	}
}

// Restore loads the durable instrument set into memory. It runs once
// at startup, before any tick processing begins.
func (r *Registry) Restore(ctx context.Context) error {
	r.ensureTable(ctx)

	r.logger.Info("Restoring instrument registry")

	entities, err := r.store.QueryPartition(ctx, TableName, PartitionKey)
	if err != nil {
		return err
	}

	r.mu.Lock()
	for _, entity := range entities {
		r.instruments[entity.RowKey] = struct{}{}
	}
	count := len(r.instruments)
	r.mu.Unlock()

	r.logger.Info("Restored instrument registry", zap.Int("count", count))
	return nil
}

// ensureTable creates the mirror table once per process. A creation
// race with another writer is indistinguishable from already-exists
// and benign.
func (r *Registry) ensureTable(ctx context.Context) {
	if r.tableCreated.Load() {
		return
	}

	if err := r.store.CreateTable(ctx, TableName); err != nil {
		r.logger.Error("Failed to create instrument table", zap.Error(err))
	}
	r.tableCreated.Store(true)
}
