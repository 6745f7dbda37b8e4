package ports

import "context"

// IdentityPort resolves the caller's stable player identity. The returned
// id is the key used for moves, clocks, and strike counters.
type IdentityPort interface {
	// PlayerID verifies a credential and returns the player id it proves.
	PlayerID(ctx context.Context, token string) (string, error)
}
