package ports

import (
	"context"
	"time"

	"turnsync/internal/domain"
)

// RematchInvite is the persisted form of a rematch proposal, so a proposal
// sent while the invitee was offline is delivered once they reconnect.
type RematchInvite struct {
	ProposalID string
	OldMatchID string
	NewMatch   domain.Match
	Proposer   string
	CreatedAt  time.Time
}

// InviteStore persists rematch proposals alongside the move log.
type InviteStore interface {
	// PutInvite records a proposal. Idempotent on ProposalID.
	PutInvite(ctx context.Context, inv RematchInvite) error

	// PendingInvites lists unresolved proposals addressed to player.
	PendingInvites(ctx context.Context, player string) ([]RematchInvite, error)

	// ResolveInvite marks a proposal accepted or declined; it stops
	// appearing in PendingInvites for everyone.
	ResolveInvite(ctx context.Context, proposalID string, accepted bool) error
}
