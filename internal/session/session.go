// Package session manages isolated conversation histories keyed by an
// opaque session id. Sessions are created lazily on first append and
// live for the process lifetime.
package session

import (
	"errors"
	"time"

	"github.com/verdin0/verdin/internal/knowledge"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel errors for session operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates a transcript query for a session id
	// that was never created. Appending never raises it.
	ErrSessionNotFound = errors.New("session not found")
)

// Turn is one entry in a session's conversation history. Citations are
// present only on assistant turns and only when retrieval contributed
// context to the answer.
type Turn struct {
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	Timestamp time.Time            `json:"timestamp"`
	Citations []knowledge.Citation `json:"citations,omitempty"`
}

// NewUserTurn builds a user turn stamped now.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantTurn builds an assistant turn stamped now.
func NewAssistantTurn(content string, citations []knowledge.Citation) Turn {
	return Turn{Role: RoleAssistant, Content: content, Timestamp: time.Now(), Citations: citations}
}
