package domain

import (
	"encoding/json"
	"time"
)

// Move is one accepted action in a match. Seq is monotonic and unique per
// match; (Seq, Player) is the deduplication key for at-least-once delivery.
// A move is immutable once accepted.
type Move struct {
	MatchID   string          `json:"matchId"`
	Seq       uint64          `json:"seq"`
	Player    string          `json:"player"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// MoveKey is the idempotence key of a move within its match.
type MoveKey struct {
	Seq    uint64
	Player string
}

// Key returns the move's idempotence key.
func (m Move) Key() MoveKey {
	return MoveKey{Seq: m.Seq, Player: m.Player}
}

// SamePayload reports whether two moves carry byte-identical payloads.
// Used to distinguish a harmless duplicate from a conflicting write.
func (m Move) SamePayload(other Move) bool {
	return string(m.Payload) == string(other.Payload)
}

// Synthetic move kinds. These are recorded by the engine itself, not by the
// rule engine, but share the move sequence so that every client converges on
// the same ordered history. Both the expiring player's own clock and the
// opponent's watchdog may submit the same timeout; the log's idempotence on
// (Seq, Player) makes the second submission a no-op.
const (
	SyntheticTimeout = "timeout"
	SyntheticResign  = "resign"
)

type syntheticPayload struct {
	Synthetic string `json:"synthetic"`
}

// NewTimeoutMove builds the synthetic move recording that player let their
// turn clock at seq expire.
func NewTimeoutMove(matchID string, seq uint64, player string, at time.Time) Move {
	raw, _ := json.Marshal(syntheticPayload{Synthetic: SyntheticTimeout})
	return Move{MatchID: matchID, Seq: seq, Player: player, Payload: raw, CreatedAt: at}
}

// NewResignMove builds the synthetic move recording a resignation, so that a
// resign reaches the opponent through the log even when the direct channel
// is down.
func NewResignMove(matchID string, seq uint64, player string, at time.Time) Move {
	raw, _ := json.Marshal(syntheticPayload{Synthetic: SyntheticResign})
	return Move{MatchID: matchID, Seq: seq, Player: player, Payload: raw, CreatedAt: at}
}

// Synthetic returns the synthetic kind of the move, or "" for a regular
// game move.
func (m Move) Synthetic() string {
	var p syntheticPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return ""
	}
	return p.Synthetic
}
