package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verdin0/verdin/api"
	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/chunker"
	"github.com/verdin0/verdin/internal/config"
	"github.com/verdin0/verdin/internal/database"
	"github.com/verdin0/verdin/internal/extract"
	"github.com/verdin0/verdin/internal/index"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/rag"
	"github.com/verdin0/verdin/internal/session"
)

// embeddingDims matches the vector column width in
// internal/database/migrations and the output of text-embedding-004.
const embeddingDims = 768

// runServe initializes the full pipeline and starts the HTTP API server.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addrFlag := fs.String("addr", "", "listen address (overrides configuration)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	logger := initLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting verdin", "version", AppVersion, "index_backend", cfg.IndexBackend)

	var idx index.VectorIndex
	switch cfg.IndexBackend {
	case config.IndexBackendPostgres:
		dsn := cfg.PostgresDSN()
		if err := database.Migrate(dsn); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		pool, err := database.NewPool(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer pool.Close()
		idx = index.NewPostgres(pool, embeddingDims, logger)
	default:
		idx = index.NewMemory()
	}

	provider, err := ai.NewProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing AI provider: %w", err)
	}

	client := ai.NewClient(provider, provider, logger,
		ai.WithTimeout(time.Duration(cfg.AITimeoutSeconds)*time.Second),
		ai.WithRetry(ai.DefaultRetryConfig()),
	)

	system, err := rag.New(rag.Config{
		Extractor:          extract.NewRegistry(),
		Chunker:            chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		Embedder:           client,
		Completer:          client,
		Index:              idx,
		Documents:          knowledge.NewStore(),
		Sessions:           session.NewStore(),
		TopK:               cfg.TopK,
		MinScore:           cfg.MinScore,
		MaxTranscriptTurns: cfg.MaxTranscriptTurns,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	server, err := api.NewServer(api.ServerConfig{
		Logger:        logger,
		System:        system,
		RatePerSecond: cfg.RatePerSecond,
		RateBurst:     cfg.RateBurst,
		TrustProxy:    cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	addr := cfg.ListenAddr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	if err := server.Run(ctx, addr); err != nil {
		return fmt.Errorf("running server: %w", err)
	}
	return nil
}

// initLogger builds the process logger. DEBUG in the environment enables
// debug level; VERDIN_LOG_JSON switches to JSON output for log shippers.
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	if os.Getenv("VERDIN_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}
