package ports

import (
	"context"

	"turnsync/internal/domain"
)

// SettlementResult is the hook payload emitted once per finished match.
type SettlementResult struct {
	MatchID string
	Winner  string // empty on a draw or void
	Reason  domain.EndReason
	Stake   int64
	Losers  []string
}

// SettlementPort triggers the external stake settlement. The engine never
// waits for settlement before declaring GameOver locally; a failure marks
// the match void, which is surfaced distinctly from the game result.
type SettlementPort interface {
	// Settle pays out the match. Implementations must tolerate a second
	// call with the same result (the engine may retry).
	Settle(ctx context.Context, result SettlementResult) error
}

// WalletUpdate represents a single currency change for a user, applied by
// wallet-backed settlement adapters.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}
