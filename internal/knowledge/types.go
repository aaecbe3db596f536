// Package knowledge tracks ingested documents and their chunks. It is
// the source of truth for document metadata and chunk text; the vector
// index only ever holds (chunk id, document id, vector) and resolves
// display data through this package.
package knowledge

import (
	"time"

	"github.com/verdin0/verdin/internal/extract"
)

// Document describes one ingested document. Immutable once created;
// removed only by an explicit delete or knowledge base reset.
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	Format     extract.Format `json:"sourceFormat"`
	IngestedAt time.Time      `json:"ingestedAt"`
	ChunkCount int            `json:"chunkCount"`
}

// Chunk is one bounded excerpt of a document's extracted text.
// Position is the ordinal within the source document. PageNumber is 0
// when the source format carries no page information.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Text       string `json:"text"`
	Position   int    `json:"position"`
	PageNumber int    `json:"pageNumber,omitempty"`
}

// Citation is a retrieved chunk plus its provenance, attached to an
// answer. It holds a copy of the display text rather than owning the
// chunk, so it never outlives the answer it belongs to.
type Citation struct {
	ChunkID    string  `json:"chunkId"`
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	Text       string  `json:"text"`
	PageNumber int     `json:"pageNumber,omitempty"`
	Score      float64 `json:"relevanceScore"`
}
