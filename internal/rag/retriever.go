// Package rag composes the retrieval pipeline: retriever, generator
// and the orchestrator that binds them to document ingestion and
// session recording.
package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
)

// ErrRetrievalFailed indicates the vector index could not be searched.
// Embedding failures propagate as ai.ErrEmbeddingUnavailable instead.
var ErrRetrievalFailed = errors.New("retrieval failed")

// ChunkSource resolves chunk ids to display data. knowledge.Store
// satisfies it.
type ChunkSource interface {
	Chunk(id string) (knowledge.Chunk, bool)
	Document(id string) (knowledge.Document, bool)
}

// Retriever turns a question into ranked citations.
type Retriever struct {
	embedder ai.Embedder
	index    index.VectorIndex
	source   ChunkSource
	topK     int
	minScore float64
	logger   log.Logger
}

// NewRetriever wires a retriever. topK bounds the number of index hits
// considered; minScore is the relevance floor applied on top of the
// index's ranking.
func NewRetriever(embedder ai.Embedder, idx index.VectorIndex, source ChunkSource, topK int, minScore float64, logger log.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    idx,
		source:   source,
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

// Retrieve embeds the query, searches the index and resolves the
// surviving hits into citations ordered by descending relevance.
// Hits below the relevance floor are dropped, as are hits whose chunk
// or document was deleted concurrently; a citation never references a
// ghost.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]knowledge.Citation, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	hits, err := r.index.Search(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	citations := make([]knowledge.Citation, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < r.minScore {
			continue
		}
		chunk, ok := r.source.Chunk(hit.ChunkID)
		if !ok {
			r.logger.Debug("dropping hit with missing chunk", "chunk_id", hit.ChunkID)
			continue
		}
		doc, ok := r.source.Document(chunk.DocumentID)
		if !ok {
			r.logger.Debug("dropping hit with missing document", "document_id", chunk.DocumentID)
			continue
		}
		citations = append(citations, knowledge.Citation{
			ChunkID:    chunk.ID,
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Text:       chunk.Text,
			PageNumber: chunk.PageNumber,
			Score:      hit.Score,
		})
	}

	r.logger.Debug("retrieved citations",
		"hits", len(hits),
		"citations", len(citations),
		"min_score", r.minScore,
	)
	return citations, nil
}
