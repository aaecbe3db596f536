// Package ai defines the capability boundary between the pipeline and
// the model provider. The rest of the codebase depends only on the
// Embedder and Completer interfaces declared here; the Genkit adapter
// and the resilience wrapper both satisfy them.
package ai

import (
	"context"
	"errors"
)

// Sentinel errors for capability failures. Callers map these to
// transport-level responses; the pipeline never inspects provider
// error strings itself.
var (
	// ErrEmbeddingUnavailable indicates the embedding service could not
	// produce vectors, after retries were exhausted.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationFailed indicates the language model could not produce
	// a completion, after retries were exhausted.
	ErrGenerationFailed = errors.New("generation failed")
)

// Message roles in a conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one turn of prior conversation passed to the model.
type Message struct {
	Role string
	Text string
}

// CompletionRequest carries everything the model needs for one answer.
// History holds prior turns oldest first; Prompt is the current user
// message and is always sent last.
type CompletionRequest struct {
	System  string
	History []Message
	Prompt  string
}

// Embedder converts texts into dense vectors. Implementations must
// return exactly one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a model answer for a completion request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
