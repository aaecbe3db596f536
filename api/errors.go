package api

import (
	"errors"
	"net/http"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/extract"
	"github.com/verdin0/verdin/internal/rag"
	"github.com/verdin0/verdin/internal/session"
)

// statusForError maps pipeline errors to an HTTP status and a stable
// machine-readable error code. Unknown errors map to 500 with a generic
// code so internal details never leak to clients.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, extract.ErrCorruptDocument):
		return http.StatusUnprocessableEntity, "corrupt_document"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, rag.ErrDocumentNotFound):
		return http.StatusNotFound, "document_not_found"
	case errors.Is(err, ai.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "embedding_unavailable"
	case errors.Is(err, ai.ErrGenerationFailed):
		return http.StatusServiceUnavailable, "generation_failed"
	case errors.Is(err, rag.ErrRetrievalFailed):
		return http.StatusServiceUnavailable, "retrieval_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// safeMessage returns an error message suitable for clients. Errors with a
// known mapping carry their own message; everything else is replaced.
func safeMessage(err error, code string) string {
	if code == "internal_error" {
		return "internal server error"
	}
	return err.Error()
}
