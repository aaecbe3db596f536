package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
	"github.com/verdin0/verdin/internal/session"
)

// maxChatBytes bounds chat request bodies.
const maxChatBytes = 64 << 10

// chatHandler serves the question answering and session endpoints.
type chatHandler struct {
	system *rag.System
	logger log.Logger
}

// chatRequest is the body for POST /api/chat. UseRag defaults to true
// when omitted.
type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	UseRag    *bool  `json:"useRag"`
}

type chatResponse struct {
	Answer    string               `json:"answer"`
	SessionID string               `json:"sessionId"`
	Timestamp time.Time            `json:"timestamp"`
	Citations []knowledge.Citation `json:"citations,omitempty"`
}

type transcriptResponse struct {
	SessionID string         `json:"sessionId"`
	Turns     []session.Turn `json:"turns"`
	Count     int            `json:"count"`
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", h.logger)
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}

	useRAG := req.UseRag == nil || *req.UseRag

	answer, err := h.system.AnswerQuestion(r.Context(), req.Question, req.SessionID, useRAG)
	if err != nil {
		status, code := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("answering question", "error", err, "session_id", req.SessionID)
		}
		writeError(w, status, code, safeMessage(err, code), h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:    answer.Turn.Content,
		SessionID: answer.SessionID,
		Timestamp: answer.Turn.Timestamp,
		Citations: answer.Turn.Citations,
	}, h.logger)
}

// transcript handles GET /api/sessions/{id}/transcript.
func (h *chatHandler) transcript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	turns, err := h.system.Transcript(id)
	if err != nil {
		status, code := statusForError(err)
		writeError(w, status, code, safeMessage(err, code), h.logger)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}

	writeJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Turns: turns, Count: len(turns)}, h.logger)
}

// clearSession handles DELETE /api/sessions/{id}. Clearing keeps the
// session id valid with an empty transcript.
func (h *chatHandler) clearSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.system.ClearSession(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "id": id}, h.logger)
}
