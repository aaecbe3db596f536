package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/chunker"
	"github.com/verdin0/verdin/internal/extract"
	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
	"github.com/verdin0/verdin/internal/session"
	"github.com/verdin0/verdin/internal/testutil"
)

// testServer builds a server over a fully in-memory pipeline.
type testServer struct {
	handler   http.Handler
	completer *testutil.ScriptedCompleter
	system    *rag.System
}

func newTestServer(t *testing.T, opts ...func(*rag.Config)) *testServer {
	t.Helper()

	completer := testutil.NewScriptedCompleter("scripted answer")
	cfg := rag.Config{
		Extractor:          extract.NewRegistry(),
		Chunker:            chunker.New(200, 20),
		Embedder:           testutil.NewHashEmbedder(64),
		Completer:          completer,
		Index:              index.NewMemory(),
		Documents:          knowledge.NewStore(),
		Sessions:           session.NewStore(),
		TopK:               5,
		MinScore:           0.1,
		MaxTranscriptTurns: 10,
		Logger:             log.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	system, err := rag.New(cfg)
	require.NoError(t, err)

	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		System:        system,
		RatePerSecond: 1000,
		RateBurst:     1000,
	})
	require.NoError(t, err)

	return &testServer{handler: srv.Handler(), completer: completer, system: system}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) ingest(t *testing.T, filename, content string) knowledge.Document {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/documents", ingestRequest{Filename: filename, Content: content})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc knowledge.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	return doc
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestServer_RequiresSystem(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIngestDocument(t *testing.T) {
	ts := newTestServer(t)

	doc := ts.ingest(t, "notes.txt", "The invoice total is $42. Payment is due in thirty days.")

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Positive(t, doc.ChunkCount)
}

func TestIngestDocument_Multipart(t *testing.T) {
	ts := newTestServer(t)

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "upload.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Some uploaded text content."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc knowledge.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "upload.txt", doc.Filename)
}

func TestIngestDocument_Errors(t *testing.T) {
	ts := newTestServer(t)

	t.Run("unsupported format", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents", ingestRequest{Filename: "report.pdf", Content: "x"})
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, "unsupported_format", decodeErr(t, w).Error)
	})

	t.Run("unknown extension", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents", ingestRequest{Filename: "archive.zip", Content: "x"})
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("corrupt document", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents", ingestRequest{Filename: "data.txt", Content: "bad\x00bytes"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "corrupt_document", decodeErr(t, w).Error)
	})

	t.Run("missing filename", func(t *testing.T) {
		w := ts.do(t, http.MethodPost, "/api/documents", ingestRequest{Content: "x"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListDocuments(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "a.txt", "alpha content")
	ts.ingest(t, "b.txt", "beta content")

	w := ts.do(t, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp listDocumentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Documents, 2)
}

func TestDeleteDocument(t *testing.T) {
	ts := newTestServer(t)
	doc := ts.ingest(t, "a.txt", "alpha content")

	w := ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Second delete reports not found.
	w = ts.do(t, http.MethodDelete, "/api/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "document_not_found", decodeErr(t, w).Error)
}

func TestChat(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "billing.txt", "The invoice total is $42. Payment is due in thirty days.")

	w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "what is the invoice total?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "scripted answer", resp.Answer)
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.Citations)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestChat_SessionContinuity(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "first question"})
	require.Equal(t, http.StatusOK, w.Code)
	var first chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "second question", SessionID: first.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	var second chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.SessionID, second.SessionID)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/transcript", first.SessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var transcript transcriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transcript))
	assert.Equal(t, 4, transcript.Count)
	assert.Equal(t, "first question", transcript.Turns[0].Content)
}

func TestChat_UseRagDisabled(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "billing.txt", "The invoice total is $42.")

	useRag := false
	w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "what is the invoice total?", UseRag: &useRag})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Citations)
}

func TestChat_Errors(t *testing.T) {
	t.Run("missing question", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing_question", decodeErr(t, w).Error)
	})

	t.Run("embedding unavailable", func(t *testing.T) {
		ts := newTestServer(t, func(cfg *rag.Config) {
			cfg.Embedder = &testutil.FailingEmbedder{Err: fmt.Errorf("%w: provider down", ai.ErrEmbeddingUnavailable)}
		})
		w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "anything"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "embedding_unavailable", decodeErr(t, w).Error)
	})

	t.Run("generation failed", func(t *testing.T) {
		ts := newTestServer(t, func(cfg *rag.Config) {
			cfg.Completer = &testutil.FailingCompleter{Err: fmt.Errorf("%w: model refused", ai.ErrGenerationFailed)}
		})
		w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "anything"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "generation_failed", decodeErr(t, w).Error)
	})
}

func TestTranscript_UnknownSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/sessions/"+uuid.New().String()+"/transcript", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session_not_found", decodeErr(t, w).Error)
}

func TestClearSession(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = ts.do(t, http.MethodDelete, "/api/sessions/"+resp.SessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Cleared session stays addressable with an empty transcript.
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sessions/%s/transcript", resp.SessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var transcript transcriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transcript))
	assert.Equal(t, 0, transcript.Count)
	assert.NotNil(t, transcript.Turns)
}

func TestResetAndStats(t *testing.T) {
	ts := newTestServer(t)
	ts.ingest(t, "a.txt", "alpha content here")

	w := ts.do(t, http.MethodPost, "/api/chat", chatRequest{Question: "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats rag.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 1, stats.SessionCount)

	w = ts.do(t, http.MethodPost, "/api/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 0, stats.ChunkCount)
	// Sessions survive a knowledge base reset.
	assert.Equal(t, 1, stats.SessionCount)
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/documents", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
