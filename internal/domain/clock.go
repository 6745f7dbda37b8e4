package domain

import "time"

// MaxStrikes is the number of consecutive missed turns that forces a
// forfeit. One or two misses only skip the turn.
const MaxStrikes = 3

// TurnClock tracks per-player remaining turn time and the consecutive
// missed-turn strike counters. It is plain data owned by the engine actor;
// the actual timers live with the actor loop.
type TurnClock struct {
	limit     time.Duration
	remaining map[string]time.Duration
	strikes   map[string]int
}

// NewTurnClock builds a clock giving every player the full limit.
func NewTurnClock(limit time.Duration, players []string) *TurnClock {
	c := &TurnClock{
		limit:     limit,
		remaining: make(map[string]time.Duration, len(players)),
		strikes:   make(map[string]int, len(players)),
	}
	for _, p := range players {
		c.remaining[p] = limit
	}
	return c
}

// Limit returns the full per-turn allowance.
func (c *TurnClock) Limit() time.Duration {
	return c.limit
}

// Remaining returns the time left on player's current turn.
func (c *TurnClock) Remaining(player string) time.Duration {
	return c.remaining[player]
}

// ResetTurn refills player's clock to the full limit. Called whenever a turn
// passes to them.
func (c *TurnClock) ResetTurn(player string) {
	c.remaining[player] = c.limit
}

// MoveAccepted records a successful move: the clock refills and the strike
// streak resets to zero. Any legal move counts, including a pass.
func (c *TurnClock) MoveAccepted(player string) {
	c.remaining[player] = c.limit
	c.strikes[player] = 0
}

// Strike records a missed turn and returns the new streak length.
func (c *TurnClock) Strike(player string) int {
	c.remaining[player] = c.limit
	c.strikes[player]++
	return c.strikes[player]
}

// Strikes returns player's current consecutive missed-turn count.
func (c *TurnClock) Strikes(player string) int {
	return c.strikes[player]
}

// Forfeited reports whether player has struck out.
func (c *TurnClock) Forfeited(player string) bool {
	return c.strikes[player] >= MaxStrikes
}

// Snapshot returns a copy of the strike counters for persistence.
func (c *TurnClock) Snapshot() map[string]int {
	out := make(map[string]int, len(c.strikes))
	for p, n := range c.strikes {
		out[p] = n
	}
	return out
}

// Restore overwrites the strike counters, used when resuming a session.
func (c *TurnClock) Restore(strikes map[string]int) {
	for p, n := range strikes {
		c.strikes[p] = n
	}
}
