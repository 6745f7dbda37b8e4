package memory

import (
	"context"
	"sync"

	"turnsync/internal/ports"
)

// InviteStore is an in-memory ports.InviteStore.
type InviteStore struct {
	mu       sync.Mutex
	invites  map[string]ports.RematchInvite
	resolved map[string]bool
}

// NewInviteStore builds an empty store.
func NewInviteStore() *InviteStore {
	return &InviteStore{
		invites:  make(map[string]ports.RematchInvite),
		resolved: make(map[string]bool),
	}
}

// PutInvite implements ports.InviteStore.
func (s *InviteStore) PutInvite(_ context.Context, inv ports.RematchInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[inv.ProposalID]; !ok {
		s.invites[inv.ProposalID] = inv
	}
	return nil
}

// PendingInvites implements ports.InviteStore.
func (s *InviteStore) PendingInvites(_ context.Context, player string) ([]ports.RematchInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.RematchInvite
	for id, inv := range s.invites {
		if s.resolved[id] || inv.Proposer == player {
			continue
		}
		if inv.NewMatch.HasPlayer(player) {
			out = append(out, inv)
		}
	}
	return out, nil
}

// ResolveInvite implements ports.InviteStore.
func (s *InviteStore) ResolveInvite(_ context.Context, proposalID string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved[proposalID] = true
	return nil
}
