package domain

import (
	"encoding/json"
	"errors"
)

// ErrIllegalMove is returned by a rule engine when a move violates the game
// rules. The sync engine treats it as a defensive no-op, never a crash:
// honest clients validate before sending, so an illegal move only arrives
// from a buggy or hostile peer.
var ErrIllegalMove = errors.New("illegal move")

// GameState is the engine-specific board/hand snapshot. Implementations must
// be JSON-serializable with a deterministic encoding (struct fields, sorted
// map keys) so that two peers holding the same state marshal to identical
// bytes.
type GameState any

// RuleEngine is the pluggable per-game legality and result logic. The sync
// core is agnostic to its internals; it only ever mutates GameState through
// ApplyMove.
type RuleEngine interface {
	// Kind names the game this engine implements.
	Kind() GameKind

	// InitialState derives the starting board and hands from the
	// deterministic deal. It must not consult any entropy beyond the deal.
	InitialState(deal Deal) (GameState, error)

	// LegalMoves enumerates the payloads player may submit in the given
	// state. An empty result means the player has no action available.
	LegalMoves(state GameState, player string) ([]json.RawMessage, error)

	// ApplyMove returns the successor state, or ErrIllegalMove. The input
	// state must not be mutated.
	ApplyMove(state GameState, mv Move) (GameState, error)

	// TurnOwner reports which player may move next in the given state.
	TurnOwner(state GameState) string

	// SkipTurn advances the turn past player without any board change,
	// applied when a turn is forfeited to the clock or the player left the
	// match. The input state must not be mutated.
	SkipTurn(state GameState, player string) GameState

	// CheckWinner inspects the state for a terminal result. winner is ""
	// for a draw when over is true.
	CheckWinner(state GameState) (winner string, reason EndReason, over bool)

	// DecodeState rebuilds a GameState from its JSON form, used when
	// restoring a persisted session.
	DecodeState(data []byte) (GameState, error)
}

// EncodeState marshals a GameState to its canonical JSON form. Both the
// session store and the bit-equality convergence checks go through here.
func EncodeState(state GameState) ([]byte, error) {
	return json.Marshal(state)
}
