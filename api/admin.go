package api

import (
	"net/http"

	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
)

// adminHandler serves the reset and stats endpoints.
type adminHandler struct {
	system *rag.System
	logger log.Logger
}

// reset handles POST /api/reset. Clears all documents and vectors;
// conversation sessions survive.
func (h *adminHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.system.Reset(r.Context()); err != nil {
		h.logger.Error("resetting knowledge base", "error", err)
		writeError(w, http.StatusInternalServerError, "reset_failed", "failed to reset knowledge base", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"}, h.logger)
}

// stats handles GET /api/stats.
func (h *adminHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.system.Stats(), h.logger)
}
