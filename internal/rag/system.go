package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/chunker"
	"github.com/verdin0/verdin/internal/extract"
	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/session"
)

// ErrDocumentNotFound indicates a delete for a document id that is not
// in the store.
var ErrDocumentNotFound = errors.New("document not found")

// Config carries the collaborators and policy knobs for a System.
type Config struct {
	Extractor *extract.Registry
	Chunker   *chunker.Chunker
	Embedder  ai.Embedder
	Completer ai.Completer
	Index     index.VectorIndex
	Documents *knowledge.Store
	Sessions  *session.Store

	// TopK and MinScore govern retrieval; MaxTranscriptTurns bounds the
	// conversation window passed to the model.
	TopK               int
	MinScore           float64
	MaxTranscriptTurns int

	Logger log.Logger
}

// System orchestrates the full pipeline: ingestion on one side,
// retrieval-augmented answering on the other. All operations are safe
// for concurrent use.
type System struct {
	extractor *extract.Registry
	chunker   *chunker.Chunker
	embedder  ai.Embedder
	index     index.VectorIndex
	documents *knowledge.Store
	sessions  *session.Store
	retriever *Retriever
	generator *Generator

	maxTranscriptTurns int
	logger             log.Logger
}

// Answer is the result of one answer request. SessionID echoes the
// caller's id or carries the server-generated one for a fresh session.
type Answer struct {
	SessionID string
	Turn      session.Turn
}

// Stats is a point-in-time snapshot of system state.
type Stats struct {
	DocumentCount int `json:"documentCount"`
	ChunkCount    int `json:"chunkCount"`
	SessionCount  int `json:"sessionCount"`
}

// New validates the configuration and builds a System.
func New(cfg Config) (*System, error) {
	switch {
	case cfg.Extractor == nil:
		return nil, fmt.Errorf("extractor is required")
	case cfg.Chunker == nil:
		return nil, fmt.Errorf("chunker is required")
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case cfg.Completer == nil:
		return nil, fmt.Errorf("completer is required")
	case cfg.Index == nil:
		return nil, fmt.Errorf("index is required")
	case cfg.Documents == nil:
		return nil, fmt.Errorf("document store is required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case cfg.TopK < 1:
		return nil, fmt.Errorf("top-k must be >= 1, got %d", cfg.TopK)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	return &System{
		extractor:          cfg.Extractor,
		chunker:            cfg.Chunker,
		embedder:           cfg.Embedder,
		index:              cfg.Index,
		documents:          cfg.Documents,
		sessions:           cfg.Sessions,
		retriever:          NewRetriever(cfg.Embedder, cfg.Index, cfg.Documents, cfg.TopK, cfg.MinScore, cfg.Logger),
		generator:          NewGenerator(cfg.Completer, cfg.Logger),
		maxTranscriptTurns: cfg.MaxTranscriptTurns,
		logger:             cfg.Logger,
	}, nil
}

// Ingest extracts, chunks, embeds and indexes one document. Ingestion
// is all-or-nothing: a failure at any stage removes whatever the
// document already wrote to the index, so no partially-indexed
// document is ever visible. A document whose text yields zero chunks
// is recorded with ChunkCount 0 and nothing enters the index.
func (s *System) Ingest(ctx context.Context, filename string, raw []byte) (knowledge.Document, error) {
	format, err := extract.DetectFormat(filename)
	if err != nil {
		return knowledge.Document{}, err
	}

	text, err := s.extractor.Text(raw, format)
	if err != nil {
		return knowledge.Document{}, err
	}

	docID := uuid.NewString()
	doc := knowledge.Document{
		ID:         docID,
		Filename:   filename,
		Format:     format,
		IngestedAt: time.Now(),
	}

	chunkTexts := s.chunker.Split(text)
	if len(chunkTexts) == 0 {
		if err := s.documents.Add(doc, nil); err != nil {
			return knowledge.Document{}, fmt.Errorf("record empty document: %w", err)
		}
		s.logger.Info("ingested document without chunks", "document_id", docID, "filename", filename)
		return doc, nil
	}

	chunks := make([]knowledge.Chunk, len(chunkTexts))
	for i, chunkText := range chunkTexts {
		chunks[i] = knowledge.Chunk{
			ID:         fmt.Sprintf("%s:%d", docID, i),
			DocumentID: docID,
			Text:       chunkText,
			Position:   i,
		}
	}

	vectors, err := s.embedder.Embed(ctx, chunkTexts)
	if err != nil {
		return knowledge.Document{}, fmt.Errorf("embed document %q: %w", filename, err)
	}
	if len(vectors) != len(chunks) {
		return knowledge.Document{}, fmt.Errorf("embed document %q: %d chunks, %d vectors", filename, len(chunks), len(vectors))
	}

	entries := make([]index.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = index.Entry{ChunkID: chunk.ID, DocumentID: docID, Vector: vectors[i]}
	}
	if err := s.index.Insert(ctx, entries); err != nil {
		s.rollback(docID)
		return knowledge.Document{}, fmt.Errorf("index document %q: %w", filename, err)
	}

	// Record the document last so a half-ingested document is never
	// observable through the store.
	doc.ChunkCount = len(chunks)
	if err := s.documents.Add(doc, chunks); err != nil {
		s.rollback(docID)
		return knowledge.Document{}, fmt.Errorf("record document %q: %w", filename, err)
	}

	s.logger.Info("ingested document",
		"document_id", docID,
		"filename", filename,
		"format", format,
		"chunks", len(chunks),
	)
	return doc, nil
}

// rollback purges a document's vectors after a failed ingestion. It
// runs on a fresh context so cancellation of the request cannot strand
// partial state.
func (s *System) rollback(docID string) {
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.index.Delete(cleanupCtx, docID); err != nil {
		s.logger.Error("rollback failed, index may hold orphan vectors",
			"document_id", docID, "error", err)
	}
}

// AnswerQuestion runs one answer request: retrieve (when useRAG is
// set), generate, then record the exchange. Retrieval failures are
// hard failures; the system never silently degrades to a non-RAG
// answer. An empty sessionID starts a fresh session with a generated
// id.
func (s *System) AnswerQuestion(ctx context.Context, question, sessionID string, useRAG bool) (Answer, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var citations []knowledge.Citation
	if useRAG {
		var err error
		citations, err = s.retriever.Retrieve(ctx, question)
		if err != nil {
			return Answer{}, err
		}
	}

	transcript, err := s.sessions.Transcript(sessionID, s.maxTranscriptTurns)
	if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return Answer{}, err
	}

	text, used, err := s.generator.Generate(ctx, question, citations, transcript, useRAG)
	if err != nil {
		return Answer{}, err
	}

	userTurn := session.NewUserTurn(question)
	assistantTurn := session.NewAssistantTurn(text, used)
	s.sessions.Append(sessionID, userTurn, assistantTurn)

	return Answer{SessionID: sessionID, Turn: assistantTurn}, nil
}

// Transcript returns a session's full history, oldest first.
func (s *System) Transcript(sessionID string) ([]session.Turn, error) {
	return s.sessions.Transcript(sessionID, 0)
}

// ClearSession empties a session's history, keeping the id usable.
func (s *System) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// ListDocuments returns all ingested documents, oldest first.
func (s *System) ListDocuments() []knowledge.Document {
	return s.documents.List()
}

// DeleteDocument removes one document and purges its vectors.
func (s *System) DeleteDocument(ctx context.Context, documentID string) error {
	if _, ok := s.documents.Document(documentID); !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	if err := s.index.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("purge vectors for %q: %w", documentID, err)
	}
	s.documents.Delete(documentID)
	s.logger.Info("deleted document", "document_id", documentID)
	return nil
}

// Reset empties the knowledge base: every document, chunk and vector.
// Sessions are untouched. Calling it twice leaves the same empty state
// as once.
func (s *System) Reset(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	s.documents.Reset()
	s.logger.Info("knowledge base reset")
	return nil
}

// Stats reports document, chunk and session counts. The chunk count
// comes from the document store, which stays consistent with the index
// under the all-or-nothing ingestion policy.
func (s *System) Stats() Stats {
	docs, chunks := s.documents.Counts()
	return Stats{
		DocumentCount: docs,
		ChunkCount:    chunks,
		SessionCount:  s.sessions.Count(),
	}
}
