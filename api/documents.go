package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
)

// maxDocumentBytes bounds uploads. Plenty for text documents; keeps a
// single request from exhausting memory.
const maxDocumentBytes = 10 << 20

// documentsHandler serves the document ingestion and management endpoints.
type documentsHandler struct {
	system *rag.System
	logger log.Logger
}

// ingestRequest is the JSON upload form. Content carries the raw document
// text; binary formats should use multipart upload instead.
type ingestRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type listDocumentsResponse struct {
	Documents []knowledge.Document `json:"documents"`
	Count     int                  `json:"count"`
}

// ingest handles POST /api/documents. Accepts either a multipart form with
// a "file" field or a JSON body {"filename": ..., "content": ...}.
func (h *documentsHandler) ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)

	filename, data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(filename) == "" {
		writeError(w, http.StatusBadRequest, "missing_filename", "filename is required", h.logger)
		return
	}

	doc, err := h.system.Ingest(r.Context(), filename, data)
	if err != nil {
		status, code := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("ingesting document", "error", err, "filename", filename)
		}
		writeError(w, status, code, safeMessage(err, code), h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, doc, h.logger)
}

// readUpload extracts the filename and raw bytes from either upload form.
// Writes the error response itself and returns ok=false on failure.
func (h *documentsHandler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	ct := r.Header.Get("Content-Type")

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
			if tooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
				return "", nil, false
			}
			writeError(w, http.StatusBadRequest, "invalid_body", "invalid multipart form", h.logger)
			return "", nil, false
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "multipart form must include a file field", h.logger)
			return "", nil, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to read uploaded file", h.logger)
			return "", nil, false
		}
		return header.Filename, data, true
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return "", nil, false
	}
	return req.Filename, []byte(req.Content), true
}

// list handles GET /api/documents.
func (h *documentsHandler) list(w http.ResponseWriter, r *http.Request) {
	docs := h.system.ListDocuments()
	writeJSON(w, http.StatusOK, listDocumentsResponse{Documents: docs, Count: len(docs)}, h.logger)
}

// deleteDocument handles DELETE /api/documents/{id}.
func (h *documentsHandler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.system.DeleteDocument(r.Context(), id); err != nil {
		status, code := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("deleting document", "error", err, "id", id)
		}
		writeError(w, status, code, safeMessage(err, code), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id}, h.logger)
}

func tooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
