package session

import (
	"sync"
)

// Store holds all sessions in memory. Contents are lost on restart.
//
// Store is safe for concurrent use by multiple goroutines. A single
// lock guards the whole map; per-session contention is negligible at
// chat request rates.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// Append adds turns to a session in one atomic step, creating the
// session if the id is new. Callers append the user and assistant
// turns of an exchange together so a transcript never exposes a
// half-recorded exchange.
func (s *Store) Append(sessionID string, turns ...Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = append(s.sessions[sessionID], turns...)
}

// Transcript returns up to maxTurns most recent turns in order, oldest
// first. maxTurns <= 0 means no bound. Querying a session id that was
// never created returns ErrSessionNotFound; a cleared session returns
// an empty transcript.
func (s *Store) Transcript(sessionID string, maxTurns int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Clear empties a session's turn sequence but keeps the id, so later
// appends continue the same session. Clearing an unknown id creates an
// empty session rather than failing.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = nil
}

// Count reports the number of known sessions, cleared ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
