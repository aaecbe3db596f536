// Package api exposes the question answering pipeline over HTTP.
//
// Endpoints:
//
//	POST   /api/documents                 ingest a document
//	GET    /api/documents                 list ingested documents
//	DELETE /api/documents/{id}            remove a document and its vectors
//	POST   /api/chat                      ask a question
//	GET    /api/sessions/{id}/transcript  fetch a conversation transcript
//	DELETE /api/sessions/{id}             clear a conversation
//	POST   /api/reset                     clear the knowledge base
//	GET    /api/stats                     system counters
//	GET    /health                        liveness probe
//
// The /health probe sits outside the middleware stack so load balancers
// are never rate limited.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
)

const (
	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout guards against Slowloris attacks.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because generation calls can take a while.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive window between requests.
	IdleTimeout = 120 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger log.Logger
	System *rag.System // Required

	// RatePerSecond and RateBurst configure the per-IP token bucket.
	// Zero values fall back to 5 req/s with a burst of 30.
	RatePerSecond float64
	RateBurst     int

	// TrustProxy enables X-Real-IP / X-Forwarded-For handling behind a
	// reverse proxy.
	TrustProxy bool
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.System == nil {
		return nil, errors.New("rag system is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	dh := &documentsHandler{system: cfg.System, logger: logger}
	ch := &chatHandler{system: cfg.System, logger: logger}
	ah := &adminHandler{system: cfg.System, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents", dh.ingest)
	mux.HandleFunc("GET /api/documents", dh.list)
	mux.HandleFunc("DELETE /api/documents/{id}", dh.deleteDocument)

	mux.HandleFunc("POST /api/chat", ch.send)
	mux.HandleFunc("GET /api/sessions/{id}/transcript", ch.transcript)
	mux.HandleFunc("DELETE /api/sessions/{id}", ch.clearSession)

	mux.HandleFunc("POST /api/reset", ah.reset)
	mux.HandleFunc("GET /api/stats", ah.stats)

	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(rps, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID sits before Logging so request ids appear in log output.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps the health probe outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
