package api

import (
	"net/http"

	"github.com/verdin0/verdin/internal/log"
)

// health is a simple liveness probe for Docker/Kubernetes.
// Returns 200 OK with {"status":"ok"}.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}
