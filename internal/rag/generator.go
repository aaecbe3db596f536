package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/session"
)

const (
	contextStart = "--- CONTEXT START ---"
	contextEnd   = "--- CONTEXT END ---"

	systemPrompt = "You are a helpful assistant answering questions about the user's documents. " +
		"Be concise and factual. When context excerpts are provided, base your answer on them " +
		"and say so explicitly when they do not contain enough information to answer."
)

// Generator assembles the prompt and invokes the completion capability.
type Generator struct {
	completer ai.Completer
	logger    log.Logger
}

// NewGenerator wires a generator.
func NewGenerator(completer ai.Completer, logger log.Logger) *Generator {
	return &Generator{completer: completer, logger: logger}
}

// Generate produces an answer. When useRAG is true and citations are
// present, the prompt carries a delimited context block built from the
// citation texts, most relevant first; the returned slice echoes
// exactly the citations that entered the block. Otherwise the model
// answers from the transcript and background knowledge alone and no
// citations are returned.
func (g *Generator) Generate(
	ctx context.Context,
	question string,
	citations []knowledge.Citation,
	transcript []session.Turn,
	useRAG bool,
) (string, []knowledge.Citation, error) {
	var used []knowledge.Citation
	prompt := question
	if useRAG && len(citations) > 0 {
		prompt = contextPrompt(question, citations)
		used = citations
	}

	req := ai.CompletionRequest{
		System:  systemPrompt,
		History: transcriptHistory(transcript),
		Prompt:  prompt,
	}

	text, err := g.completer.Complete(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("complete: %w", err)
	}

	g.logger.Debug("generated answer",
		"context_citations", len(used),
		"history_turns", len(req.History),
	)
	return text, used, nil
}

// contextPrompt renders the question preceded by a delimited block of
// citation excerpts.
func contextPrompt(question string, citations []knowledge.Citation) string {
	var sb strings.Builder
	sb.WriteString("Use the following excerpts from the knowledge base to answer.\n\n")
	sb.WriteString(contextStart)
	sb.WriteByte('\n')
	for i, c := range citations {
		fmt.Fprintf(&sb, "[%d] %s: %s\n", i+1, c.Filename, c.Text)
	}
	sb.WriteString(contextEnd)
	sb.WriteString("\n\nIf the excerpts are insufficient to answer, say so instead of guessing.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	return sb.String()
}

// transcriptHistory converts session turns to provider messages,
// oldest first.
func transcriptHistory(transcript []session.Turn) []ai.Message {
	if len(transcript) == 0 {
		return nil
	}
	history := make([]ai.Message, 0, len(transcript))
	for _, turn := range transcript {
		role := ai.RoleUser
		if turn.Role == session.RoleAssistant {
			role = ai.RoleModel
		}
		history = append(history, ai.Message{Role: role, Text: turn.Content})
	}
	return history
}
