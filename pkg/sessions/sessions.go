// Package sessions stores conversation history keyed by session ID. The
// original process-wide buffer cleared every visitor at once; here each
// session owns its own ordered message list and clearing one leaves the rest
// untouched.
package sessions

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
)

// Store persists per-session conversation history.
type Store interface {
	// Append adds one turn to the session's history.
	Append(ctx context.Context, sessionID string, msg domain.Message) error
	// History returns the session's messages in order. Unknown sessions
	// yield an empty history, not an error.
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
	// Clear removes a single session's history.
	Clear(ctx context.Context, sessionID string) error
}

// NewSessionID generates a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// MemoryStore is an in-process Store. Suitable for a single instance; use the
// Redis store when running more than one replica.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Message
	maxTurns int
}

// NewMemoryStore creates a MemoryStore keeping at most maxTurns messages per
// session (0 means unbounded).
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]domain.Message),
		maxTurns: maxTurns,
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.sessions[sessionID], msg)
	if s.maxTurns > 0 && len(msgs) > s.maxTurns {
		msgs = msgs[len(msgs)-s.maxTurns:]
	}
	s.sessions[sessionID] = msgs
	return nil
}

// History implements Store.
func (s *MemoryStore) History(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
