package domain

import (
	"hash/fnv"
	"math/rand"
)

// The deal must come out identical on two devices that have never exchanged
// a byte beyond the match id, so every source of entropy here is derived
// from the seed string and nothing else.

// seedInt reduces a seed string to a deterministic int64 source seed.
func seedInt(seed string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64())
}

// Shuffle returns a seeded Fisher-Yates permutation of deck. The input is
// not mutated. Equal seeds always produce equal output.
func Shuffle[T any](deck []T, seed string) []T {
	out := make([]T, len(deck))
	copy(out, deck)
	rng := rand.New(rand.NewSource(seedInt(seed)))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// FirstPlayer rolls the fairness coin-flip for the starting seat among n
// players. The seed is domain-separated from the deal so the roll does not
// correlate with card order.
func FirstPlayer(seed string, n int) int {
	if n <= 0 {
		return 0
	}
	rng := rand.New(rand.NewSource(seedInt(seed + "|first-player")))
	return rng.Intn(n)
}

// Deal captures everything needed to reconstruct the initial hidden state of
// a match: the seed (the match id), the seated players, and the fairness
// roll. Hands and boards are always re-derived from the deal plus the move
// history, never re-shuffled.
type Deal struct {
	Seed    string   `json:"seed"`
	Players []string `json:"players"`
	First   int      `json:"first"`
}

// NewDeal computes the deal for a match.
func NewDeal(m Match) Deal {
	return Deal{
		Seed:    m.ID,
		Players: append([]string(nil), m.Players...),
		First:   FirstPlayer(m.ID, len(m.Players)),
	}
}

// FirstPlayerID returns the player id holding the opening turn.
func (d Deal) FirstPlayerID() string {
	if len(d.Players) == 0 {
		return ""
	}
	return d.Players[d.First%len(d.Players)]
}
