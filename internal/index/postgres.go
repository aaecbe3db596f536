package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/verdin0/verdin/internal/log"
)

// Postgres is a pgvector-backed index. Unlike the in-memory index its
// dimensionality is fixed by the migration's column type, so it is
// supplied at construction instead of being learned from the first
// insert.
type Postgres struct {
	pool   *pgxpool.Pool
	dims   int
	logger log.Logger
}

// NewPostgres wraps an existing connection pool. dims must match the
// vector column declared by the schema migration.
func NewPostgres(pool *pgxpool.Pool, dims int, logger log.Logger) *Postgres {
	return &Postgres{pool: pool, dims: dims, logger: logger}
}

// Insert adds entries in a single transaction so a failed batch leaves
// no partial document behind.
func (p *Postgres) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != p.dims {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(e.Vector), p.dims)
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunk_vectors (chunk_id, document_id, embedding) VALUES ($1, $2, $3)`,
			e.ChunkID, e.DocumentID, pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %q: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}

	p.logger.Debug("inserted vectors", "count", len(entries))
	return nil
}

// Search runs cosine k-nearest-neighbor over the whole table. Score is
// cosine similarity; ties resolve toward the earlier-inserted row.
func (p *Postgres) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(vector) != p.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), p.dims)
	}

	query := pgvector.NewVector(vector)
	rows, err := p.pool.Query(ctx,
		`SELECT chunk_id, document_id, 1 - (embedding <=> $1) AS score
		 FROM chunk_vectors
		 ORDER BY embedding <=> $1, seq
		 LIMIT $2`,
		query, k,
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search rows: %w", err)
	}
	return hits, nil
}

// Delete removes every vector belonging to documentID. A single DELETE
// statement is atomic with respect to concurrent searches.
func (p *Postgres) Delete(ctx context.Context, documentID string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete document %q vectors: %w", documentID, err)
	}
	p.logger.Debug("deleted vectors", "document_id", documentID, "count", tag.RowsAffected())
	return nil
}

// Reset empties the table.
func (p *Postgres) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE chunk_vectors`); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	return nil
}

// Len reports the number of stored vectors.
func (p *Postgres) Len(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunk_vectors`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

var _ VectorIndex = (*Postgres)(nil)
