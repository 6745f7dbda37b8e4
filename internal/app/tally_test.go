package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
	"turnsync/internal/ports/memory"
)

// quietLog serves submissions and fetches from the shared log but never
// streams live moves, so a recorded move only reaches the engine through the
// watchdog's conflict handling.
type quietLog struct {
	inner *memory.MoveLog
}

func (l *quietLog) SubmitMove(ctx context.Context, mv domain.Move) error {
	return l.inner.SubmitMove(ctx, mv)
}

func (l *quietLog) Moves(ctx context.Context, matchID string, afterSeq uint64) ([]domain.Move, error) {
	return l.inner.Moves(ctx, matchID, afterSeq)
}

func (l *quietLog) Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error) {
	ch := make(chan domain.Move)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// tally is a minimal deterministic game for engine tests: players alternate
// submitting the next integer, and whoever says Target wins. Any payload
// that is not exactly Count+1 is illegal, which makes every ordering and
// validation mistake in the engine visible.
type tallyState struct {
	Players []string `json:"players"`
	First   int      `json:"first"`
	Count   int      `json:"count"`
	Skips   int      `json:"skips"`
	Target  int      `json:"target"`
	Last    string   `json:"last"`
}

func (st *tallyState) owner() string {
	return st.Players[(st.First+st.Count+st.Skips)%len(st.Players)]
}

type tallyRules struct {
	target int
}

func (r tallyRules) Kind() domain.GameKind { return domain.GameKind("tally") }

func (r tallyRules) InitialState(d domain.Deal) (domain.GameState, error) {
	return &tallyState{Players: d.Players, First: d.First, Target: r.target}, nil
}

func (r tallyRules) LegalMoves(s domain.GameState, player string) ([]json.RawMessage, error) {
	st := s.(*tallyState)
	if st.owner() != player {
		return nil, nil
	}
	raw, _ := json.Marshal(map[string]int{"n": st.Count + 1})
	return []json.RawMessage{raw}, nil
}

func (r tallyRules) ApplyMove(s domain.GameState, mv domain.Move) (domain.GameState, error) {
	st := s.(*tallyState)
	if mv.Player != st.owner() {
		return nil, domain.ErrIllegalMove
	}
	var p struct {
		N int `json:"n"`
	}
	if err := json.Unmarshal(mv.Payload, &p); err != nil {
		return nil, domain.ErrIllegalMove
	}
	if p.N != st.Count+1 {
		return nil, domain.ErrIllegalMove
	}
	next := *st
	next.Count = p.N
	next.Last = mv.Player
	return &next, nil
}

func (r tallyRules) TurnOwner(s domain.GameState) string {
	return s.(*tallyState).owner()
}

func (r tallyRules) SkipTurn(s domain.GameState, player string) domain.GameState {
	st := s.(*tallyState)
	if st.owner() != player {
		return s
	}
	next := *st
	next.Skips++
	return &next
}

func (r tallyRules) CheckWinner(s domain.GameState) (string, domain.EndReason, bool) {
	st := s.(*tallyState)
	if st.Count >= st.Target {
		return st.Last, domain.ReasonBearOff, true
	}
	return "", "", false
}

func (r tallyRules) DecodeState(raw []byte) (domain.GameState, error) {
	var st tallyState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	if len(st.Players) == 0 {
		return nil, errors.New("tally: empty state")
	}
	return &st, nil
}

func tallyMove(n int) []byte {
	return []byte(fmt.Sprintf(`{"n":%d}`, n))
}

// watcher drains an engine's event stream so the buffer never fills, and
// lets tests wait for specific kinds.
type watcher struct {
	mu     sync.Mutex
	events []Event
}

func watch(ch <-chan Event) *watcher {
	w := &watcher{}
	go func() {
		for ev := range ch {
			w.mu.Lock()
			w.events = append(w.events, ev)
			w.mu.Unlock()
		}
	}()
	return w
}

func (w *watcher) all(kind EventKind) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []Event
	for _, ev := range w.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// waitFor blocks until at least n events of kind have arrived and returns
// the n-th one.
func (w *watcher) waitFor(t *testing.T, kind EventKind, n int) Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if evs := w.all(kind); len(evs) >= n {
			return evs[n-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q event(s)", n, kind)
	return Event{}
}

func (w *watcher) waitNone(t *testing.T, kind EventKind, window time.Duration) {
	t.Helper()
	time.Sleep(window)
	require.Empty(t, w.all(kind), "unexpected %q event", kind)
}

// rig stands up a full two-sided match over in-memory ports.
type rig struct {
	t        *testing.T
	match    domain.Match
	deal     domain.Deal
	net      *memory.Network
	log      *memory.MoveLog
	settle   *memory.Settlement
	sessions map[string]*memory.SessionStore
	invites  *memory.InviteStore
	engines  map[string]*Engine
	watchers map[string]*watcher
	rematch  map[string]*Rematch
}

func newRig(t *testing.T, match domain.Match) *rig {
	return &rig{
		t:        t,
		match:    match,
		deal:     domain.NewDeal(match),
		net:      memory.NewNetwork(),
		log:      memory.NewMoveLog(),
		settle:   memory.NewSettlement(),
		sessions: make(map[string]*memory.SessionStore),
		invites:  memory.NewInviteStore(),
		engines:  make(map[string]*Engine),
		watchers: make(map[string]*watcher),
		rematch:  make(map[string]*Rematch),
	}
}

type rigOpts struct {
	noLog       bool
	withRematch bool
	turnTime    time.Duration
	grace       time.Duration
	rules       domain.RuleEngine
	log         ports.MoveLog
}

func (r *rig) start(ctx context.Context, player string, opts rigOpts) *Engine {
	r.t.Helper()
	if r.sessions[player] == nil {
		r.sessions[player] = memory.NewSessionStore()
	}
	rules := opts.rules
	if rules == nil {
		rules = tallyRules{target: 100}
	}
	cfg := Config{
		Match:        r.match,
		Rules:        rules,
		SelfID:       player,
		Transport:    r.net.NewTransport(),
		Sessions:     r.sessions[player],
		Settlement:   r.settle,
		Logger:       zerolog.Nop(),
		SaveDebounce: 20 * time.Millisecond,
		TurnTime:     opts.turnTime,
	}
	if opts.log != nil {
		cfg.Log = opts.log
	} else if !opts.noLog {
		cfg.Log = r.log
	}
	if opts.grace > 0 {
		cfg.WatchdogGrace = opts.grace
	}
	if opts.withRematch {
		rm := NewRematch(r.invites)
		r.rematch[player] = rm
		cfg.Rematch = rm
	}
	eng, err := NewEngine(cfg)
	require.NoError(r.t, err)
	require.NoError(r.t, eng.Start(ctx))
	r.engines[player] = eng
	r.watchers[player] = watch(eng.Events())
	return eng
}

func (r *rig) stop(player string) {
	if eng, ok := r.engines[player]; ok {
		eng.Stop()
		delete(r.engines, player)
	}
}

// mover returns the engine whose player currently owns the turn, per the
// given engine's view.
func (r *rig) owner(t *testing.T) *Engine {
	t.Helper()
	for _, eng := range r.engines {
		snap, err := eng.Snapshot()
		require.NoError(t, err)
		if eng.selfID == snap.TurnOwner {
			return eng
		}
	}
	t.Fatal("no engine owns the turn")
	return nil
}
