package memory

import (
	"context"
	"sync"

	"turnsync/internal/ports"
)

// SessionStore is an in-memory ports.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	recs map[string]ports.SessionRecord
}

// NewSessionStore builds an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{recs: make(map[string]ports.SessionRecord)}
}

// Save implements ports.SessionStore.
func (s *SessionStore) Save(_ context.Context, rec ports.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Blob = append([]byte(nil), rec.Blob...)
	s.recs[rec.MatchID] = rec
	return nil
}

// Load implements ports.SessionStore.
func (s *SessionStore) Load(_ context.Context, matchID string) (ports.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[matchID]
	return rec, ok, nil
}

// Delete implements ports.SessionStore.
func (s *SessionStore) Delete(_ context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, matchID)
	return nil
}
