package ports

import (
	"context"
	"time"

	"turnsync/internal/domain"
)

// SessionRecord is the persisted snapshot of a running match on one device.
// Blob holds the rule engine's encoded GameState plus engine bookkeeping;
// hands and boards are always re-derivable from the deal and the move log,
// so the blob is an optimization, not the source of truth.
type SessionRecord struct {
	MatchID   string
	Blob      []byte
	TurnOwner string
	Status    domain.Phase
	SavedAt   time.Time
}

// SessionStore persists match sessions across reloads and device switches.
type SessionStore interface {
	// Save upserts the session for a match.
	Save(ctx context.Context, rec SessionRecord) error

	// Load returns the stored session, with ok=false when none exists.
	Load(ctx context.Context, matchID string) (rec SessionRecord, ok bool, err error)

	// Delete removes the session once the match is settled.
	Delete(ctx context.Context, matchID string) error
}
