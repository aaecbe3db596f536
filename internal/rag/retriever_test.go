package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/extract"
	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/testutil"
)

// seedStore ingests a document with the given chunk texts directly into
// the store and index, bypassing the orchestrator.
func seedStore(t *testing.T, store *knowledge.Store, idx index.VectorIndex, embedder ai.Embedder, docID, filename string, texts ...string) {
	t.Helper()
	ctx := context.Background()

	chunks := make([]knowledge.Chunk, len(texts))
	vectors, err := embedder.Embed(ctx, texts)
	require.NoError(t, err)

	entries := make([]index.Entry, len(texts))
	for i, text := range texts {
		chunks[i] = knowledge.Chunk{
			ID:         fmt.Sprintf("%s:%d", docID, i),
			DocumentID: docID,
			Text:       text,
			Position:   i,
		}
		entries[i] = index.Entry{ChunkID: chunks[i].ID, DocumentID: docID, Vector: vectors[i]}
	}

	require.NoError(t, idx.Insert(ctx, entries))
	require.NoError(t, store.Add(knowledge.Document{
		ID:         docID,
		Filename:   filename,
		Format:     extract.FormatPlainText,
		IngestedAt: time.Now(),
		ChunkCount: len(chunks),
	}, chunks))
}

func TestRetriever_RanksByRelevance(t *testing.T) {
	embedder := testutil.NewHashEmbedder(64)
	idx := index.NewMemory()
	store := knowledge.NewStore()

	seedStore(t, store, idx, embedder, "d1", "billing.txt",
		"invoice total: $42",
		"payment due on the first of the month",
	)
	seedStore(t, store, idx, embedder, "d2", "wildlife.txt",
		"penguins live in antarctica",
	)

	r := NewRetriever(embedder, idx, store, 5, 0.0, log.NewNop())
	citations, err := r.Retrieve(context.Background(), "what is the invoice total?")
	require.NoError(t, err)
	require.NotEmpty(t, citations)

	assert.Equal(t, "billing.txt", citations[0].Filename)
	assert.Equal(t, "invoice total: $42", citations[0].Text)
	for i := 1; i < len(citations); i++ {
		assert.GreaterOrEqual(t, citations[i-1].Score, citations[i].Score)
	}
}

func TestRetriever_MinScoreIsMonotonic(t *testing.T) {
	embedder := testutil.NewHashEmbedder(64)
	idx := index.NewMemory()
	store := knowledge.NewStore()

	seedStore(t, store, idx, embedder, "d1", "a.txt",
		"the quick brown fox jumps",
		"a completely different subject entirely",
		"quick notes about a fox",
	)

	query := "quick fox"
	prev := -1
	for _, floor := range []float64{-1, 0, 0.2, 0.5, 0.9, 1.01} {
		r := NewRetriever(embedder, idx, store, 10, floor, log.NewNop())
		citations, err := r.Retrieve(context.Background(), query)
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, len(citations), prev,
				"raising the floor to %v increased the result count", floor)
		}
		prev = len(citations)
	}
	assert.Zero(t, prev, "a floor above the cosine bound must filter everything")
}

func TestRetriever_DropsGhostHits(t *testing.T) {
	embedder := testutil.NewHashEmbedder(64)
	idx := index.NewMemory()
	store := knowledge.NewStore()

	seedStore(t, store, idx, embedder, "d1", "kept.txt", "alpha beta gamma")
	seedStore(t, store, idx, embedder, "d2", "removed.txt", "alpha beta delta")

	// Simulate a concurrent delete that reached the store but whose
	// index purge has not landed yet.
	store.Delete("d2")

	r := NewRetriever(embedder, idx, store, 10, -1, log.NewNop())
	citations, err := r.Retrieve(context.Background(), "alpha beta")
	require.NoError(t, err)

	require.Len(t, citations, 1)
	assert.Equal(t, "kept.txt", citations[0].Filename)
}

func TestRetriever_EmbeddingFailurePropagates(t *testing.T) {
	failing := testutil.FailingEmbedder{Err: ai.ErrEmbeddingUnavailable}
	r := NewRetriever(&failing, index.NewMemory(), knowledge.NewStore(), 5, 0, log.NewNop())

	_, err := r.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, ai.ErrEmbeddingUnavailable)
	assert.NotErrorIs(t, err, ErrRetrievalFailed)
}

type failingSearchIndex struct {
	index.VectorIndex
}

func (f *failingSearchIndex) Search(context.Context, []float32, int) ([]index.Hit, error) {
	return nil, errors.New("index offline")
}

func TestRetriever_IndexFailureWrapsRetrievalFailed(t *testing.T) {
	embedder := testutil.NewHashEmbedder(8)
	r := NewRetriever(embedder, &failingSearchIndex{index.NewMemory()}, knowledge.NewStore(), 5, 0, log.NewNop())

	_, err := r.Retrieve(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestRetriever_EmptyIndex(t *testing.T) {
	embedder := testutil.NewHashEmbedder(8)
	r := NewRetriever(embedder, index.NewMemory(), knowledge.NewStore(), 5, 0, log.NewNop())

	citations, err := r.Retrieve(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, citations)
}
