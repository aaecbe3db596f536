package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory vector index. Contents live for the process
// lifetime; a restart starts empty.
type Memory struct {
	mu      sync.RWMutex
	entries []memEntry
	byDoc   map[string][]int // documentID -> positions in entries
	dims    int              // established by first insert, 0 = unset
	nextSeq uint64
}

type memEntry struct {
	ChunkID    string
	DocumentID string
	Vector     []float32
	Seq        uint64 // insertion order, breaks score ties
	Deleted    bool
}

// NewMemory returns an empty in-memory index with no fixed
// dimensionality.
func NewMemory() *Memory {
	return &Memory{byDoc: make(map[string][]int)}
}

// Insert adds entries as one batch. The first vector ever inserted
// fixes the index dimensionality; any later mismatch rejects the whole
// batch before mutating state.
func (m *Memory) Insert(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dims := m.dims
	if dims == 0 {
		dims = len(entries[0].Vector)
	}
	for _, e := range entries {
		if len(e.Vector) != dims {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(e.Vector), dims)
		}
	}
	m.dims = dims

	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		m.entries = append(m.entries, memEntry{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Vector:     vec,
			Seq:        m.nextSeq,
		})
		m.byDoc[e.DocumentID] = append(m.byDoc[e.DocumentID], len(m.entries)-1)
		m.nextSeq++
	}
	return nil
}

// Search returns up to k hits ordered by descending cosine similarity,
// ties broken by insertion order. Searching an empty index yields zero
// hits.
func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	if len(vector) != m.dims {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vector), m.dims)
	}

	type scored struct {
		score float64
		seq   uint64
		pos   int
	}

	var results []scored
	for pos, e := range m.entries {
		if e.Deleted {
			continue
		}
		results = append(results, scored{
			score: cosineSimilarity(vector, e.Vector),
			seq:   e.Seq,
			pos:   pos,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > k {
		results = results[:k]
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		e := m.entries[r.pos]
		hits[i] = Hit{ChunkID: e.ChunkID, DocumentID: e.DocumentID, Score: r.score}
	}
	return hits, nil
}

// Delete removes every vector belonging to documentID. Entries are
// tombstoned under the write lock, so an in-flight search sees either
// all of the document's vectors or none of them.
func (m *Memory) Delete(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	positions, ok := m.byDoc[documentID]
	if !ok {
		return nil
	}
	for _, pos := range positions {
		m.entries[pos].Deleted = true
		m.entries[pos].Vector = nil
	}
	delete(m.byDoc, documentID)
	return nil
}

// Reset empties the index and clears its dimensionality, as if freshly
// constructed.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	m.byDoc = make(map[string][]int)
	m.dims = 0
	m.nextSeq = 0
	return nil
}

// Len reports the number of live vectors.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if !e.Deleted {
			n++
		}
	}
	return n, nil
}

// cosineSimilarity computes the cosine of the angle between two equal
// length vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
