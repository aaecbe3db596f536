package knowledge

import (
	"fmt"
	"sort"
	"sync"
)

// Store is an in-memory document and chunk store. Contents live for the
// process lifetime and start empty on restart.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu        sync.RWMutex
	documents map[string]Document
	chunks    map[string]Chunk
	docChunks map[string][]string // documentID -> chunk ids
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]Document),
		chunks:    make(map[string]Chunk),
		docChunks: make(map[string][]string),
	}
}

// Add records a document together with all of its chunks in one
// atomic step. Every chunk must belong to the document.
func (s *Store) Add(doc Document, chunks []Chunk) error {
	for _, c := range chunks {
		if c.DocumentID != doc.ID {
			return fmt.Errorf("chunk %q belongs to document %q, not %q", c.ID, c.DocumentID, doc.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("document %q already recorded", doc.ID)
	}

	s.documents[doc.ID] = doc
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		s.chunks[c.ID] = c
		ids = append(ids, c.ID)
	}
	s.docChunks[doc.ID] = ids
	return nil
}

// Document looks up a document by id.
func (s *Store) Document(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	return doc, ok
}

// Chunk looks up a chunk by id.
func (s *Store) Chunk(id string) (Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunk, ok := s.chunks[id]
	return chunk, ok
}

// Delete removes a document and all of its chunks. Unknown ids are a
// no-op so deletes are idempotent.
func (s *Store) Delete(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunkID := range s.docChunks[documentID] {
		delete(s.chunks, chunkID)
	}
	delete(s.docChunks, documentID)
	delete(s.documents, documentID)
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = make(map[string]Document)
	s.chunks = make(map[string]Chunk)
	s.docChunks = make(map[string][]string)
}

// List returns all documents ordered by ingestion time, oldest first.
// Documents ingested in the same instant order by id for determinism.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].IngestedAt.Equal(docs[j].IngestedAt) {
			return docs[i].IngestedAt.Before(docs[j].IngestedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

// Counts reports the number of stored documents and chunks.
func (s *Store) Counts() (documents, chunks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.documents), len(s.chunks)
}
