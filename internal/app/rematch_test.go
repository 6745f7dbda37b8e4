package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRematchProposeAcceptReady(t *testing.T) {
	match := casualMatch("m-rematch")
	r := newRig(t, match)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.start(ctx, "alice", rigOpts{withRematch: true})
	r.start(ctx, "bob", rigOpts{withRematch: true})
	defer r.stop("alice")
	defer r.stop("bob")

	id, next, err := r.rematch["alice"].Propose()
	require.NoError(t, err)
	require.NotEqual(t, match.ID, next.ID, "a rematch must reshuffle under a new match id")
	require.ElementsMatch(t, match.Players, next.Players)

	proposed := r.watchers["bob"].waitFor(t, EventRematchProposed, 1).Payload.(RematchProposedPayload)
	require.Equal(t, id, proposed.ProposalID)
	require.Equal(t, "alice", proposed.Proposer)
	require.Equal(t, next.ID, proposed.NewMatch.ID)

	require.NoError(t, r.rematch["bob"].Accept(id))

	for _, p := range match.Players {
		ready := r.watchers[p].waitFor(t, EventRematchReady, 1).Payload.(RematchReadyPayload)
		require.Equal(t, id, ready.ProposalID)
		require.Equal(t, next.ID, ready.NewMatch.ID)
	}
}

func TestRematchDecline(t *testing.T) {
	match := casualMatch("m-decline")
	r := newRig(t, match)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.start(ctx, "alice", rigOpts{withRematch: true})
	r.start(ctx, "bob", rigOpts{withRematch: true})
	defer r.stop("alice")
	defer r.stop("bob")

	id, _, err := r.rematch["alice"].Propose()
	require.NoError(t, err)
	r.watchers["bob"].waitFor(t, EventRematchProposed, 1)

	require.NoError(t, r.rematch["bob"].Decline(id))

	declined := r.watchers["alice"].waitFor(t, EventRematchDeclined, 1).Payload.(RematchDeclinedPayload)
	require.Equal(t, id, declined.ProposalID)
	require.Equal(t, "bob", declined.Decliner)
	require.Empty(t, r.watchers["alice"].all(EventRematchReady))

	// A resolved proposal cannot be accepted afterwards.
	require.ErrorIs(t, r.rematch["bob"].Accept(id), ErrProposalResolved)
}

// A proposal made while the invitee is offline is delivered from the invite
// store once they come back.
func TestRematchDeliversToOfflineInvitee(t *testing.T) {
	match := casualMatch("m-offline-invite")
	r := newRig(t, match)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.start(ctx, "alice", rigOpts{withRematch: true})
	defer r.stop("alice")

	id, next, err := r.rematch["alice"].Propose()
	require.NoError(t, err)

	// Bob mounts later, sharing only the invite store.
	r.start(ctx, "bob", rigOpts{withRematch: true})
	defer r.stop("bob")

	proposed := r.watchers["bob"].waitFor(t, EventRematchProposed, 1).Payload.(RematchProposedPayload)
	require.Equal(t, id, proposed.ProposalID)
	require.Equal(t, next.ID, proposed.NewMatch.ID)

	require.NoError(t, r.rematch["bob"].Accept(id))
	for _, p := range match.Players {
		ready := r.watchers[p].waitFor(t, EventRematchReady, 1).Payload.(RematchReadyPayload)
		require.Equal(t, next.ID, ready.NewMatch.ID)
	}
}

func TestRematchUnknownProposal(t *testing.T) {
	match := casualMatch("m-unknown")
	r := newRig(t, match)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.start(ctx, "alice", rigOpts{withRematch: true})
	defer r.stop("alice")

	require.ErrorIs(t, r.rematch["alice"].Accept("nope"), ErrUnknownProposal)
	require.ErrorIs(t, r.rematch["alice"].Decline("nope"), ErrUnknownProposal)
}