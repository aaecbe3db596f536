// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.verdin/config.yaml, or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, completion model, embedder model, capability timeout
//   - Pipeline: chunk size/overlap, top-k, relevance floor, transcript window
//   - Index: backend selection (memory or postgres) and connection settings
//   - Server: listen address and rate limiting
//
// Security: the Postgres password is masked in MarshalJSON/String.
// Validation is fail-fast with sentinel errors checked via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// Index backend identifiers used in Config.IndexBackend.
const (
	IndexBackendMemory   = "memory"
	IndexBackendPostgres = "postgres"
)

const (
	// DefaultEmbedderModel is the default embedding model.
	// text-embedding-004 outputs 768-dimension vectors, matching the
	// pgvector schema in internal/database/migrations.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultChunkSize is the default chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default overlap between consecutive
	// chunks in characters.
	DefaultChunkOverlap = 200

	// DefaultTopK is the default number of passages retrieved per query.
	DefaultTopK = 5

	// DefaultMinScore is the default relevance floor. Results scoring
	// below it are never used as context or returned as citations.
	DefaultMinScore = 0.25

	// DefaultMaxTranscriptTurns bounds the conversation window included
	// in prompts.
	DefaultMaxTranscriptTurns = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`

	// Per-call deadline, in seconds. Applies to every embedding and
	// completion call; a timeout is treated the same as a hard failure.
	AITimeoutSeconds int `mapstructure:"ai_timeout_seconds" json:"ai_timeout_seconds"`

	// Pipeline configuration
	ChunkSize          int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap       int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK               int     `mapstructure:"top_k" json:"top_k"`
	MinScore           float64 `mapstructure:"min_score" json:"min_score"`
	MaxTranscriptTurns int     `mapstructure:"max_transcript_turns" json:"max_transcript_turns"`

	// Index backend: "memory" (default) or "postgres"
	IndexBackend string `mapstructure:"index_backend" json:"index_backend"`

	// Storage configuration (postgres backend only)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr    string  `mapstructure:"listen_addr" json:"listen_addr"`
	RatePerSecond float64 `mapstructure:"rate_per_second" json:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy    bool    `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".verdin")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("ai_timeout_seconds", 30)

	// Pipeline defaults
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)
	viper.SetDefault("top_k", DefaultTopK)
	viper.SetDefault("min_score", DefaultMinScore)
	viper.SetDefault("max_transcript_turns", DefaultMaxTranscriptTurns)

	// Index defaults
	viper.SetDefault("index_backend", IndexBackendMemory)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "verdin")
	viper.SetDefault("postgres_password", "verdin_dev_password")
	viper.SetDefault("postgres_db_name", "verdin")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("listen_addr", "127.0.0.1:3500")
	viper.SetDefault("rate_per_second", 10.0)
	viper.SetDefault("rate_burst", 30)
	viper.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper;
// its presence is checked in Validate().
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "VERDIN_PROVIDER")
	mustBind("model_name", "VERDIN_MODEL_NAME")
	mustBind("embedder_model", "VERDIN_EMBEDDER_MODEL")
	mustBind("index_backend", "VERDIN_INDEX_BACKEND")
	mustBind("listen_addr", "VERDIN_LISTEN_ADDR")
	mustBind("trust_proxy", "VERDIN_TRUST_PROXY")
	mustBind("postgres_host", "VERDIN_POSTGRES_HOST")
	mustBind("postgres_password", "VERDIN_POSTGRES_PASSWORD")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars
// or fewer are fully masked to prevent substring matching; longer ones
// keep the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// PostgresDSN returns the connection string for the postgres index backend.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}
