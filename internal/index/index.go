// Package index stores chunk embeddings and answers k-nearest-neighbor
// queries. Two backends implement the same contract: an in-memory index
// for single-process deployments and a pgvector-backed index for
// durable installs.
package index

import (
	"context"
	"errors"
)

// ErrDimensionMismatch indicates a vector whose length differs from the
// dimensionality established by the index's first insert.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is one vector bound to a chunk at insert time.
type Entry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
}

// Hit is one search result. Score is cosine similarity, higher is more
// similar.
type Hit struct {
	ChunkID    string
	DocumentID string
	Score      float64
}

// VectorIndex is the storage contract for chunk embeddings.
//
// Search returns hits ordered by descending score; ties break toward
// the earlier-inserted entry. An empty index returns zero hits, not an
// error. Delete removes every vector belonging to a document and is
// atomic with respect to concurrent searches.
type VectorIndex interface {
	Insert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Delete(ctx context.Context, documentID string) error
	Reset(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
