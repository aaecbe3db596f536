package testutil

import (
	"context"
	"sync"

	"github.com/verdin0/verdin/internal/ai"
)

// ScriptedCompleter is a Completer double that replays canned responses
// in order and records every request it receives, so tests can assert
// on the assembled prompt.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	requests  []ai.CompletionRequest
}

// NewScriptedCompleter returns a completer that answers with responses
// in order, repeating the last one once the script runs out. With no
// responses it answers "ok".
func NewScriptedCompleter(responses ...string) *ScriptedCompleter {
	return &ScriptedCompleter{responses: responses}
}

func (c *ScriptedCompleter) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	if len(c.responses) == 0 {
		return "ok", nil
	}
	i := len(c.requests) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

// Requests returns a copy of the recorded completion requests.
func (c *ScriptedCompleter) Requests() []ai.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ai.CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// LastRequest returns the most recent request, or a zero value if none
// was recorded.
func (c *ScriptedCompleter) LastRequest() ai.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.requests) == 0 {
		return ai.CompletionRequest{}
	}
	return c.requests[len(c.requests)-1]
}

// FailingCompleter always returns Err, for exercising failure paths.
type FailingCompleter struct {
	Err error
}

func (f *FailingCompleter) Complete(context.Context, ai.CompletionRequest) (string, error) {
	return "", f.Err
}
