package domain

import (
	"errors"
	"time"
)

// GameKind identifies which pluggable rule engine drives a match.
type GameKind string

const (
	KindChess      GameKind = "chess"
	KindBackgammon GameKind = "backgammon"
	KindDominoes   GameKind = "dominoes"
	KindLudo       GameKind = "ludo"
)

// Mode classifies how a match was arranged.
type Mode string

const (
	// ModeCasual matches may run on the direct channel alone.
	ModeCasual Mode = "casual"
	// ModeRanked matches must record every move in the durable log.
	ModeRanked Mode = "ranked"
	// ModePrivate matches are invite-only but otherwise casual.
	ModePrivate Mode = "private"
)

var (
	ErrNoMatchID      = errors.New("match id is empty")
	ErrTooFewPlayers  = errors.New("match needs at least two players")
	ErrTooManyPlayers = errors.New("match supports at most four players")
	ErrUnknownPlayer  = errors.New("player not part of match")
)

// Match is the immutable description of one game between a fixed set of
// players. Index 0 of Players is the creator; the actual first mover comes
// from the fairness roll in Deal.
type Match struct {
	ID              string   `json:"id"`
	Players         []string `json:"players"`
	Kind            GameKind `json:"kind"`
	Mode            Mode     `json:"mode"`
	Stake           int64    `json:"stake"`
	TurnTimeSeconds int      `json:"turnTimeSeconds"`
}

// Validate checks the structural invariants of a match record.
func (m Match) Validate() error {
	if m.ID == "" {
		return ErrNoMatchID
	}
	if len(m.Players) < 2 {
		return ErrTooFewPlayers
	}
	if len(m.Players) > 4 {
		return ErrTooManyPlayers
	}
	return nil
}

// TurnTime returns the per-turn clock limit.
func (m Match) TurnTime() time.Duration {
	return time.Duration(m.TurnTimeSeconds) * time.Second
}

// RequiresDurableLog reports whether the durable move log is mandatory for
// this match. Staked and ranked games may never rely on the direct channel
// alone.
func (m Match) RequiresDurableLog() bool {
	return m.Mode == ModeRanked || m.Stake > 0
}

// Seat returns the index of the given player, or -1 if they are not part of
// the match.
func (m Match) Seat(player string) int {
	for i, p := range m.Players {
		if p == player {
			return i
		}
	}
	return -1
}

// HasPlayer reports whether player participates in the match.
func (m Match) HasPlayer(player string) bool {
	return m.Seat(player) >= 0
}

// Opponents returns every participant except self, in seat order.
func (m Match) Opponents(self string) []string {
	out := make([]string, 0, len(m.Players)-1)
	for _, p := range m.Players {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}

// NextAfter returns the player seated after the given one, skipping any ids
// present in the eliminated set. Falls back to the input when everyone else
// is eliminated.
func (m Match) NextAfter(player string, eliminated map[string]bool) string {
	seat := m.Seat(player)
	if seat < 0 {
		return player
	}
	n := len(m.Players)
	for i := 1; i <= n; i++ {
		next := m.Players[(seat+i)%n]
		if !eliminated[next] {
			return next
		}
	}
	return player
}
