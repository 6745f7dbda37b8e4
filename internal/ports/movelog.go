package ports

import (
	"context"
	"errors"

	"turnsync/internal/domain"
)

// ErrMoveConflict is returned when a submission reuses an existing
// (seq, player) key with a different payload. A byte-identical resubmission
// is a silent no-op, never an error.
var ErrMoveConflict = errors.New("conflicting move for sequence")

// MoveLog is the server-persisted, replayable system of record for a
// match's moves. It is the reliability fallback when the direct channel is
// degraded and the source of truth on reconnection. Mandatory for ranked
// and staked matches.
type MoveLog interface {
	// SubmitMove appends a move, idempotent on (matchID, seq, player).
	SubmitMove(ctx context.Context, mv domain.Move) error

	// Moves returns recorded moves with seq > afterSeq in sequence order.
	Moves(ctx context.Context, matchID string, afterSeq uint64) ([]domain.Move, error)

	// Subscribe replays moves after afterSeq and then streams new ones in
	// sequence order. The channel closes when ctx is done.
	Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error)
}
