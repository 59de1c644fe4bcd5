package tablestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory implements Store on in-process maps. It backs tests and local
// runs without a database.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]string // table -> partition -> row -> data
}

// NewMemory creates an empty in-memory table store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]map[string]map[string]string),
	}
}

// CreateTable ensures the named table exists.
func (m *Memory) CreateTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[table]; !ok {
		m.tables[table] = make(map[string]map[string]string)
	}
	return nil
}

// Get fetches the entity at (partitionKey, rowKey).
func (m *Memory) Get(_ context.Context, table, partitionKey, rowKey string) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.tables[table][partitionKey][rowKey]
	if !ok {
		return nil, ErrNotFound
	}

	return &Entity{PartitionKey: partitionKey, RowKey: rowKey, Data: data}, nil
}

// InsertOrReplace upserts a batch of entities within one partition.
func (m *Memory) InsertOrReplace(_ context.Context, table string, entities []Entity) error {
	if len(entities) > MaxBatchSize {
		return fmt.Errorf("batch size %d exceeds limit %d", len(entities), MaxBatchSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("table %s does not exist", table)
	}

	for _, entity := range entities {
		partition, ok := tbl[entity.PartitionKey]
		if !ok {
			partition = make(map[string]string)
			tbl[entity.PartitionKey] = partition
		}
		partition[entity.RowKey] = entity.Data
	}

	return nil
}

// QueryPartition returns all entities of one partition, ascending by
// row key.
func (m *Memory) QueryPartition(_ context.Context, table, partitionKey string) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partition := m.tables[table][partitionKey]
	entities := make([]Entity, 0, len(partition))
	for rowKey, data := range partition {
		entities = append(entities, Entity{PartitionKey: partitionKey, RowKey: rowKey, Data: data})
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].RowKey < entities[j].RowKey })
	return entities, nil
}

// Scan returns every entity of the table.
func (m *Memory) Scan(_ context.Context, table string) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entities []Entity
	for partitionKey, partition := range m.tables[table] {
		for rowKey, data := range partition {
			entities = append(entities, Entity{PartitionKey: partitionKey, RowKey: rowKey, Data: data})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].PartitionKey != entities[j].PartitionKey {
			return entities[i].PartitionKey < entities[j].PartitionKey
		}
		return entities[i].RowKey < entities[j].RowKey
	})
	return entities, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

// Tables returns the sorted names of all created tables.
func (m *Memory) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
