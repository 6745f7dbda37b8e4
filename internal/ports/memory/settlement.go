package memory

import (
	"context"
	"sync"

	"turnsync/internal/ports"
)

// Settlement records settlement hook calls, optionally failing them, so
// tests can assert the GameOver → settlement handoff and the void path.
type Settlement struct {
	mu    sync.Mutex
	calls []ports.SettlementResult
	fail  error
}

// NewSettlement builds a recorder.
func NewSettlement() *Settlement { return &Settlement{} }

// FailWith makes subsequent Settle calls return err (nil restores success).
func (s *Settlement) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Settle implements ports.SettlementPort.
func (s *Settlement) Settle(_ context.Context, result ports.SettlementResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.calls = append(s.calls, result)
	return nil
}

// Calls returns a copy of the recorded settlements.
func (s *Settlement) Calls() []ports.SettlementResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.SettlementResult(nil), s.calls...)
}
