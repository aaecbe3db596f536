package ai

import (
	"context"
	"fmt"
	"strings"

	gkai "github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/verdin0/verdin/internal/config"
	"github.com/verdin0/verdin/internal/log"
)

// Provider adapts Genkit's Google AI plugin to the Embedder and
// Completer interfaces. One Provider is shared by the whole process.
type Provider struct {
	g           *genkit.Genkit
	embedder    gkai.Embedder
	modelName   string
	temperature float32
	logger      log.Logger
}

// NewProvider initializes Genkit with the Google AI plugin and resolves
// the configured embedder. The GEMINI_API_KEY environment variable is
// read by the plugin itself.
func NewProvider(ctx context.Context, cfg *config.Config, logger log.Logger) (*Provider, error) {
	if cfg.Provider != config.ProviderGoogleAI {
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initialize genkit")
	}

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("resolve embedder %q", cfg.EmbedderModel)
	}

	logger.Info("model provider initialized",
		"model", cfg.ModelName,
		"embedder", cfg.EmbedderModel,
	)

	return &Provider{
		g:           g,
		embedder:    embedder,
		modelName:   qualifyModelName(cfg.ModelName),
		temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// qualifyModelName prepends the googleai/ plugin prefix when the
// configured name is bare, e.g. "gemini-2.5-flash".
func qualifyModelName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// Embed implements Embedder. Texts are sent as a single batch request;
// the provider returns one vector per input document.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*gkai.Document, len(texts))
	for i, text := range texts {
		docs[i] = gkai.DocumentFromText(text, nil)
	}

	resp, err := p.embedder.Embed(ctx, &gkai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch of %d: got %d embeddings", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}

// Complete implements Completer. History precedes the current prompt,
// which is always the final user message.
func (p *Provider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]*gkai.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case RoleModel:
			messages = append(messages, gkai.NewModelMessage(gkai.NewTextPart(m.Text)))
		default:
			messages = append(messages, gkai.NewUserMessage(gkai.NewTextPart(m.Text)))
		}
	}
	messages = append(messages, gkai.NewUserMessage(gkai.NewTextPart(req.Prompt)))

	opts := []gkai.GenerateOption{
		gkai.WithModelName(p.modelName),
		gkai.WithMessages(messages...),
		gkai.WithConfig(map[string]any{"temperature": p.temperature}),
	}
	if req.System != "" {
		opts = append(opts, gkai.WithSystem(req.System))
	}

	response, err := genkit.Generate(ctx, p.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("generate: empty response")
	}
	return text, nil
}
