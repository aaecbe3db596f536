package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdin0/verdin/internal/ai"
	"github.com/verdin0/verdin/internal/knowledge"
	"github.com/verdin0/verdin/internal/log"
	"github.com/verdin0/verdin/internal/session"
	"github.com/verdin0/verdin/internal/testutil"
)

func sampleCitations() []knowledge.Citation {
	return []knowledge.Citation{
		{ChunkID: "c1", DocumentID: "d1", Filename: "billing.txt", Text: "invoice total: $42", Score: 0.9},
		{ChunkID: "c2", DocumentID: "d1", Filename: "billing.txt", Text: "payment due monthly", Score: 0.4},
	}
}

func TestGenerator_ContextBlockMostRelevantFirst(t *testing.T) {
	completer := testutil.NewScriptedCompleter("the total is $42")
	g := NewGenerator(completer, log.NewNop())

	text, used, err := g.Generate(context.Background(), "what is the total?", sampleCitations(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, "the total is $42", text)
	assert.Equal(t, sampleCitations(), used)

	prompt := completer.LastRequest().Prompt
	assert.Contains(t, prompt, contextStart)
	assert.Contains(t, prompt, contextEnd)
	assert.Contains(t, prompt, "insufficient")

	first := strings.Index(prompt, "invoice total: $42")
	second := strings.Index(prompt, "payment due monthly")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "most relevant citation must come first")

	assert.True(t, strings.HasSuffix(prompt, "what is the total?"),
		"question must be appended last, got: %s", prompt)
}

func TestGenerator_NoCitationsOmitsContextBlock(t *testing.T) {
	completer := testutil.NewScriptedCompleter("hello there")
	g := NewGenerator(completer, log.NewNop())

	_, used, err := g.Generate(context.Background(), "hello", nil, nil, true)
	require.NoError(t, err)
	assert.Empty(t, used)

	prompt := completer.LastRequest().Prompt
	assert.Equal(t, "hello", prompt)
	assert.NotContains(t, prompt, contextStart)
}

func TestGenerator_RAGDisabledOmitsContextBlock(t *testing.T) {
	completer := testutil.NewScriptedCompleter("from background knowledge")
	g := NewGenerator(completer, log.NewNop())

	_, used, err := g.Generate(context.Background(), "question", sampleCitations(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, used, "citations must not be echoed when RAG is off")
	assert.Equal(t, "question", completer.LastRequest().Prompt)
}

func TestGenerator_TranscriptBecomesHistory(t *testing.T) {
	completer := testutil.NewScriptedCompleter("follow-up answer")
	g := NewGenerator(completer, log.NewNop())

	transcript := []session.Turn{
		session.NewUserTurn("first question"),
		session.NewAssistantTurn("first answer", nil),
	}

	_, _, err := g.Generate(context.Background(), "second question", nil, transcript, false)
	require.NoError(t, err)

	history := completer.LastRequest().History
	require.Len(t, history, 2)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, "first question", history[0].Text)
	assert.Equal(t, ai.RoleModel, history[1].Role)
	assert.Equal(t, "first answer", history[1].Text)
}

func TestGenerator_CompletionFailureSurfaces(t *testing.T) {
	failing := &testutil.FailingCompleter{Err: ai.ErrGenerationFailed}
	g := NewGenerator(failing, log.NewNop())

	_, _, err := g.Generate(context.Background(), "question", nil, nil, false)
	assert.ErrorIs(t, err, ai.ErrGenerationFailed)
}

func TestGenerator_SystemPromptAlwaysSet(t *testing.T) {
	completer := testutil.NewScriptedCompleter()
	g := NewGenerator(completer, log.NewNop())

	_, _, err := g.Generate(context.Background(), "q", nil, nil, false)
	require.NoError(t, err)
	assert.NotEmpty(t, completer.LastRequest().System)
}

func TestGenerator_ErrorIsNotSwallowed(t *testing.T) {
	failing := &testutil.FailingCompleter{Err: errors.New("provider exploded")}
	g := NewGenerator(failing, log.NewNop())

	text, used, err := g.Generate(context.Background(), "q", sampleCitations(), nil, true)
	require.Error(t, err)
	assert.Empty(t, text, "no canned answer may substitute for a failure")
	assert.Empty(t, used)
}
