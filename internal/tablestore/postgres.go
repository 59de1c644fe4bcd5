package tablestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Postgres implements Store on a pgx connection pool. Each logical
// table maps to one physical table with a (partition_key, row_key)
// primary key and a text payload column.
type Postgres struct {
	pool         *pgxpool.Pool
	logger       *zap.Logger
	writeLimiter *rate.Limiter
}

// PostgresOption is a functional option for configuring Postgres.
type PostgresOption func(*Postgres)

// WithLogger sets the logger for the store.
func WithLogger(logger *zap.Logger) PostgresOption {
	return func(p *Postgres) {
		p.logger = logger
	}
}

// WithWriteLimit paces upsert batches at the given ops per second
// (0 = unlimited).
func WithWriteLimit(opsPerSecond float64, burst int) PostgresOption {
	return func(p *Postgres) {
		if opsPerSecond > 0 {
			p.writeLimiter = rate.NewLimiter(rate.Limit(opsPerSecond), burst)
		}
	}
}

// NewPostgres creates a new Postgres-backed table store.
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) *Postgres {
	p := &Postgres{
		pool:   pool,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CreateTable ensures the named table exists. Creation races with other
// writers are indistinguishable from table-already-exists and benign.
func (p *Postgres) CreateTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			partition_key text NOT NULL,
			row_key       text NOT NULL,
			data          text NOT NULL DEFAULT '',
			PRIMARY KEY (partition_key, row_key)
		)
	`, quoteIdentifier(table))

	if _, err := p.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	return nil
}

// Get fetches the entity at (partitionKey, rowKey).
func (p *Postgres) Get(ctx context.Context, table, partitionKey, rowKey string) (*Entity, error) {
	query := fmt.Sprintf(
		`SELECT data FROM %s WHERE partition_key = $1 AND row_key = $2`,
		quoteIdentifier(table),
	)

	entity := Entity{PartitionKey: partitionKey, RowKey: rowKey}
	err := p.pool.QueryRow(ctx, query, partitionKey, rowKey).Scan(&entity.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s (%s, %s): %w", table, partitionKey, rowKey, err)
	}

	return &entity, nil
}

// InsertOrReplace upserts a batch of entities within one partition.
func (p *Postgres) InsertOrReplace(ctx context.Context, table string, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	if len(entities) > MaxBatchSize {
		return fmt.Errorf("batch size %d exceeds limit %d", len(entities), MaxBatchSize)
	}

	if p.writeLimiter != nil {
		if err := p.writeLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("write limiter: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (partition_key, row_key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (partition_key, row_key) DO UPDATE SET data = EXCLUDED.data
	`, quoteIdentifier(table))

	batch := &pgx.Batch{}
	for _, entity := range entities {
		batch.Queue(query, entity.PartitionKey, entity.RowKey, entity.Data)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert into %s: %w", table, err)
		}
	}

	return nil
}

// QueryPartition returns all entities of one partition, ascending by
// row key.
func (p *Postgres) QueryPartition(ctx context.Context, table, partitionKey string) ([]Entity, error) {
	query := fmt.Sprintf(`
		SELECT partition_key, row_key, data FROM %s
		WHERE partition_key = $1
		ORDER BY row_key
	`, quoteIdentifier(table))

	rows, err := p.pool.Query(ctx, query, partitionKey)
	if err != nil {
		return nil, fmt.Errorf("query partition %s of %s: %w", partitionKey, table, err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// Scan returns every entity of the table.
func (p *Postgres) Scan(ctx context.Context, table string) ([]Entity, error) {
	query := fmt.Sprintf(`
		SELECT partition_key, row_key, data FROM %s
		ORDER BY partition_key, row_key
	`, quoteIdentifier(table))

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func collectEntities(rows pgx.Rows) ([]Entity, error) {
	var entities []Entity
	for rows.Next() {
		var entity Entity
		if err := rows.Scan(&entity.PartitionKey, &entity.RowKey, &entity.Data); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}

	return entities, nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
