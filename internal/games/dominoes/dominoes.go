// Package dominoes implements the draw-dominoes rule engine consumed by the
// sync core. It exists both as a playable game and as the reference
// implementation of the domain.RuleEngine contract: every hidden element is
// derived from the deterministic deal, so two peers holding the same match id
// always produce bit-equal states.
package dominoes

import (
	"encoding/json"
	"fmt"

	"turnsync/internal/domain"
)

// Tile is a single domino bone. L and R are pip counts 0..6.
type Tile struct {
	L int `json:"l"`
	R int `json:"r"`
}

func (t Tile) pips() int { return t.L + t.R }

func (t Tile) equals(o Tile) bool {
	return (t.L == o.L && t.R == o.R) || (t.L == o.R && t.R == o.L)
}

// FullSet returns the 28 bones of a double-six set in canonical order.
func FullSet() []Tile {
	set := make([]Tile, 0, 28)
	for l := 0; l <= 6; l++ {
		for r := l; r <= 6; r++ {
			set = append(set, Tile{L: l, R: r})
		}
	}
	return set
}

const handSize = 7

// State is the dominoes board snapshot. All fields are exported for JSON
// persistence; map keys marshal sorted, so encoding is deterministic.
type State struct {
	Players  []string          `json:"players"`
	Hands    map[string][]Tile `json:"hands"`
	Boneyard []Tile            `json:"boneyard"`
	Line     []Tile            `json:"line"` // played tiles oriented left-to-right
	Turn     string            `json:"turn"`
	Passes   int               `json:"passes"` // consecutive passes, for block detection
}

// Move payload actions.
const (
	ActionPlay = "play"
	ActionDraw = "draw"
	ActionPass = "pass"
)

// Ends of the line a tile may attach to.
const (
	EndLeft  = "left"
	EndRight = "right"
)

// MovePayload is the opaque payload the sync core carries for this game.
type MovePayload struct {
	Action string `json:"action"`
	Tile   *Tile  `json:"tile,omitempty"`
	End    string `json:"end,omitempty"`
}

// Engine implements domain.RuleEngine for draw dominoes.
type Engine struct{}

// New returns the dominoes rule engine.
func New() *Engine { return &Engine{} }

// Kind implements domain.RuleEngine.
func (e *Engine) Kind() domain.GameKind { return domain.KindDominoes }

// InitialState shuffles the double-six set with the deal seed and deals
// seven bones to each player in seat order. The remainder forms the
// boneyard. No entropy beyond the deal is consulted.
func (e *Engine) InitialState(deal domain.Deal) (domain.GameState, error) {
	n := len(deal.Players)
	if n < 2 || n > 4 {
		return nil, fmt.Errorf("dominoes: %d players unsupported", n)
	}
	if n*handSize > 28 {
		return nil, fmt.Errorf("dominoes: %d players exceed the tile set", n)
	}

	shuffled := domain.Shuffle(FullSet(), deal.Seed)
	s := &State{
		Players: append([]string(nil), deal.Players...),
		Hands:   make(map[string][]Tile, n),
		Turn:    deal.FirstPlayerID(),
	}
	idx := 0
	for _, p := range deal.Players {
		s.Hands[p] = append([]Tile(nil), shuffled[idx:idx+handSize]...)
		idx += handSize
	}
	s.Boneyard = append([]Tile(nil), shuffled[idx:]...)
	return s, nil
}

// LegalMoves enumerates plays on either open end, a draw when stuck with a
// non-empty boneyard, or a pass when stuck with an empty one.
func (e *Engine) LegalMoves(state domain.GameState, player string) ([]json.RawMessage, error) {
	s, err := asState(state)
	if err != nil {
		return nil, err
	}
	if s.Turn != player {
		return nil, nil
	}

	var out []json.RawMessage
	for _, t := range s.Hands[player] {
		tile := t
		for _, end := range []string{EndLeft, EndRight} {
			if s.fits(tile, end) {
				raw, _ := json.Marshal(MovePayload{Action: ActionPlay, Tile: &tile, End: end})
				out = append(out, raw)
			}
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	if len(s.Boneyard) > 0 {
		raw, _ := json.Marshal(MovePayload{Action: ActionDraw})
		return []json.RawMessage{raw}, nil
	}
	raw, _ := json.Marshal(MovePayload{Action: ActionPass})
	return []json.RawMessage{raw}, nil
}

// ApplyMove validates and applies a move, returning the successor state.
func (e *Engine) ApplyMove(state domain.GameState, mv domain.Move) (domain.GameState, error) {
	s, err := asState(state)
	if err != nil {
		return nil, err
	}
	if mv.Player != s.Turn {
		return nil, domain.ErrIllegalMove
	}

	var p MovePayload
	if err := json.Unmarshal(mv.Payload, &p); err != nil {
		return nil, domain.ErrIllegalMove
	}

	next := s.clone()
	switch p.Action {
	case ActionPlay:
		if p.Tile == nil {
			return nil, domain.ErrIllegalMove
		}
		if err := next.play(mv.Player, *p.Tile, p.End); err != nil {
			return nil, err
		}
		next.Passes = 0
		next.Turn = next.nextPlayer(mv.Player)
	case ActionDraw:
		// Drawing is only legal while genuinely stuck.
		if s.hasPlayable(mv.Player) || len(s.Boneyard) == 0 {
			return nil, domain.ErrIllegalMove
		}
		drawn := next.Boneyard[0]
		next.Boneyard = next.Boneyard[1:]
		next.Hands[mv.Player] = append(next.Hands[mv.Player], drawn)
		// The drawer keeps the turn to attempt a play with the new bone.
	case ActionPass:
		if s.hasPlayable(mv.Player) || len(s.Boneyard) > 0 {
			return nil, domain.ErrIllegalMove
		}
		next.Passes++
		next.Turn = next.nextPlayer(mv.Player)
	default:
		return nil, domain.ErrIllegalMove
	}
	return next, nil
}

// TurnOwner implements domain.RuleEngine.
func (e *Engine) TurnOwner(state domain.GameState) string {
	s, err := asState(state)
	if err != nil {
		return ""
	}
	return s.Turn
}

// SkipTurn implements domain.RuleEngine. A clock skip is not a pass: it
// leaves the block-detection counter alone.
func (e *Engine) SkipTurn(state domain.GameState, player string) domain.GameState {
	s, err := asState(state)
	if err != nil || s.Turn != player {
		return state
	}
	next := s.clone()
	next.Turn = next.nextPlayer(player)
	return next
}

// CheckWinner reports the result: an emptied hand wins outright; a fully
// blocked board goes to the lowest pip total, or to a draw on a tie.
func (e *Engine) CheckWinner(state domain.GameState) (string, domain.EndReason, bool) {
	s, err := asState(state)
	if err != nil {
		return "", "", false
	}
	for _, p := range s.Players {
		if len(s.Hands[p]) == 0 {
			return p, domain.ReasonBearOff, true
		}
	}
	if s.Passes >= len(s.Players) {
		winner := ""
		best := -1
		tied := false
		for _, p := range s.Players {
			total := 0
			for _, t := range s.Hands[p] {
				total += t.pips()
			}
			switch {
			case best == -1 || total < best:
				best, winner, tied = total, p, false
			case total == best:
				tied = true
			}
		}
		if tied {
			winner = ""
		}
		return winner, domain.ReasonBlockedDraw, true
	}
	return "", "", false
}

// DecodeState implements domain.RuleEngine.
func (e *Engine) DecodeState(data []byte) (domain.GameState, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Hands == nil {
		return nil, fmt.Errorf("dominoes: state missing hands")
	}
	return &s, nil
}

func asState(state domain.GameState) (*State, error) {
	s, ok := state.(*State)
	if !ok {
		return nil, fmt.Errorf("dominoes: foreign state %T", state)
	}
	return s, nil
}

func (s *State) clone() *State {
	out := &State{
		Players:  append([]string(nil), s.Players...),
		Hands:    make(map[string][]Tile, len(s.Hands)),
		Boneyard: append([]Tile(nil), s.Boneyard...),
		Line:     append([]Tile(nil), s.Line...),
		Turn:     s.Turn,
		Passes:   s.Passes,
	}
	for p, hand := range s.Hands {
		out.Hands[p] = append([]Tile(nil), hand...)
	}
	return out
}

func (s *State) nextPlayer(current string) string {
	for i, p := range s.Players {
		if p == current {
			return s.Players[(i+1)%len(s.Players)]
		}
	}
	return current
}

// fits reports whether tile can legally attach to the given end.
func (s *State) fits(tile Tile, end string) bool {
	if len(s.Line) == 0 {
		return end == EndLeft || end == EndRight
	}
	switch end {
	case EndLeft:
		open := s.Line[0].L
		return tile.L == open || tile.R == open
	case EndRight:
		open := s.Line[len(s.Line)-1].R
		return tile.L == open || tile.R == open
	}
	return false
}

func (s *State) hasPlayable(player string) bool {
	for _, t := range s.Hands[player] {
		if s.fits(t, EndLeft) || s.fits(t, EndRight) {
			return true
		}
	}
	return false
}

// play removes tile from the player's hand and attaches it, oriented so the
// matching pips touch the line.
func (s *State) play(player string, tile Tile, end string) error {
	if !s.fits(tile, end) {
		return domain.ErrIllegalMove
	}

	hand := s.Hands[player]
	found := -1
	for i, t := range hand {
		if t.equals(tile) {
			found = i
			break
		}
	}
	if found < 0 {
		return domain.ErrIllegalMove
	}
	owned := hand[found]
	s.Hands[player] = append(hand[:found:found], hand[found+1:]...)

	if len(s.Line) == 0 {
		s.Line = []Tile{owned}
		return nil
	}
	switch end {
	case EndLeft:
		open := s.Line[0].L
		placed := owned
		if placed.R != open {
			placed = Tile{L: placed.R, R: placed.L}
		}
		if placed.R != open {
			return domain.ErrIllegalMove
		}
		s.Line = append([]Tile{placed}, s.Line...)
	case EndRight:
		open := s.Line[len(s.Line)-1].R
		placed := owned
		if placed.L != open {
			placed = Tile{L: placed.R, R: placed.L}
		}
		if placed.L != open {
			return domain.ErrIllegalMove
		}
		s.Line = append(s.Line, placed)
	default:
		return domain.ErrIllegalMove
	}
	return nil
}
