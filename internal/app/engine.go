// Package app contains the turn-synchronization engine: a single actor per
// match that owns the game state, serializes every input source (direct
// channel, durable log, clocks, local submissions) through one command
// queue, and keeps two independently-running clients converged on one
// canonical move sequence.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrMatchOver     = errors.New("match is over")
	ErrNotStarted    = errors.New("engine not started")
	ErrBadSession    = errors.New("session blob is unusable")
	ErrNotInMatch    = errors.New("player not part of match")
	ErrEngineStopped = errors.New("engine stopped")
)

// Config wires an Engine to its match and ports.
type Config struct {
	Match      domain.Match
	Rules      domain.RuleEngine
	SelfID     string
	Transport  ports.Transport
	Log        ports.MoveLog // nil only for casual, transport-only play
	Sessions   ports.SessionStore
	Settlement ports.SettlementPort
	Rematch    *Rematch
	Logger     zerolog.Logger

	SaveDebounce    time.Duration
	WatchdogGrace   time.Duration
	LogPollInterval time.Duration

	// TurnTime overrides the match's per-turn clock when nonzero.
	TurnTime time.Duration
}

// Engine is the per-match orchestrator. All mutable fields below the cmds
// channel are owned by the run goroutine; the exported methods only post
// commands and never touch state directly, so a callback can never observe
// a stale snapshot.
type Engine struct {
	cfg    Config
	match  domain.Match
	rules  domain.RuleEngine
	selfID string
	log    zerolog.Logger

	cmds   chan any
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Actor-owned state.
	phase      domain.Phase
	state      domain.GameState
	deal       domain.Deal
	turnOwner  string
	clock      *domain.TurnClock
	applied    map[domain.MoveKey]struct{}
	appliedSeq uint64
	history    []domain.Move
	pending    map[uint64]domain.Move
	eliminated map[string]bool
	winner     string
	endReason  domain.EndReason

	turnTimer     *time.Timer
	watchdogTimer *time.Timer
	saveTimer     *time.Timer
	saveDirty     bool

	// muted suppresses event emission during bootstrap replay, so a restore
	// does not re-announce every historical move.
	muted bool
}

// Commands posted into the actor loop.
type (
	cmdLocalMove struct {
		payload []byte
		reply   chan error
	}
	cmdResign struct {
		reply chan error
	}
	cmdChat struct {
		text  string
		reply chan error
	}
	cmdEnvelope struct {
		env protocol.Envelope
	}
	cmdLogMove struct {
		mv domain.Move
	}
	cmdClockExpire struct {
		player string
		atSeq  uint64
	}
	cmdConnState struct {
		state ports.ConnState
	}
	cmdEmit struct {
		ev Event
	}
	cmdFlushSave   struct{}
	cmdRebuild     struct{ moves []domain.Move }
	cmdSettleDone  struct{ err error }
	cmdSnapshotReq struct {
		reply chan Snapshot
	}
)

// Snapshot is a read-only view of the actor state for UIs and sync replies.
type Snapshot struct {
	Phase      domain.Phase
	TurnOwner  string
	State      []byte
	AppliedSeq uint64
	Strikes    map[string]int
	Winner     string
	EndReason  domain.EndReason
}

// NewEngine validates the config and builds an unstarted engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Match.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rules == nil {
		return nil, errors.New("app: rule engine is required")
	}
	if !cfg.Match.HasPlayer(cfg.SelfID) {
		return nil, ErrNotInMatch
	}
	if cfg.Match.RequiresDurableLog() && cfg.Log == nil {
		return nil, fmt.Errorf("app: %s match requires a durable move log", cfg.Match.Mode)
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = DefaultSaveDebounce
	}
	if cfg.WatchdogGrace <= 0 {
		cfg.WatchdogGrace = DefaultWatchdogGrace
	}
	if cfg.LogPollInterval <= 0 {
		cfg.LogPollInterval = DefaultLogPollInterval
	}

	return &Engine{
		cfg:        cfg,
		match:      cfg.Match,
		rules:      cfg.Rules,
		selfID:     cfg.SelfID,
		log:        cfg.Logger.With().Str("match", cfg.Match.ID).Str("self", cfg.SelfID).Logger(),
		cmds:       make(chan any, 64),
		events:     make(chan Event, eventBuffer),
		done:       make(chan struct{}),
		applied:    make(map[domain.MoveKey]struct{}),
		pending:    make(map[uint64]domain.Move),
		eliminated: make(map[string]bool),
		phase:      domain.PhaseWaitingForPlayers,
	}, nil
}

// Start restores or deals the match, connects the channels, and launches
// the actor loop. It must be called once.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.deal = domain.NewDeal(e.match)
	limit := e.cfg.TurnTime
	if limit <= 0 {
		limit = e.match.TurnTime()
	}
	e.clock = domain.NewTurnClock(limit, e.match.Players)

	if err := e.bootstrap(); err != nil {
		e.cancel()
		return err
	}

	// Durable-log subscription: catch-up replay plus live stream. This is
	// also the degraded-transport path and the opponent-crash watchdog's
	// source of truth.
	if e.cfg.Log != nil {
		ch, err := e.cfg.Log.Subscribe(e.ctx, e.match.ID, e.appliedSeq)
		if err != nil {
			e.cancel()
			return fmt.Errorf("app: subscribe move log: %w", err)
		}
		go func() {
			for mv := range ch {
				e.post(cmdLogMove{mv: mv})
			}
		}()
	}

	if e.cfg.Transport != nil {
		if err := e.cfg.Transport.Connect(e.ctx, e.match.ID, e.selfID, e.match.Opponents(e.selfID)); err != nil {
			// The transport keeps retrying on its own; gameplay proceeds
			// through the log meanwhile.
			e.log.Warn().Err(err).Msg("transport connect failed, continuing degraded")
		}
		go func() {
			for env := range e.cfg.Transport.Receive() {
				e.post(cmdEnvelope{env: env})
			}
		}()
		go func() {
			for st := range e.cfg.Transport.StateChanges() {
				e.post(cmdConnState{state: st})
			}
		}()
	}

	if e.cfg.Rematch != nil {
		e.cfg.Rematch.bind(e)
	}

	go e.run()
	return nil
}

// Stop tears the actor down, flushing any pending session write.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

// Events returns the engine's notification stream.
func (e *Engine) Events() <-chan Event { return e.events }

// SubmitMove validates and applies a move by the local player, then fans it
// out to the log and the direct channel.
func (e *Engine) SubmitMove(payload []byte) error {
	reply := make(chan error, 1)
	if !e.post(cmdLocalMove{payload: payload, reply: reply}) {
		return ErrEngineStopped
	}
	return <-reply
}

// Resign concedes the match for the local player.
func (e *Engine) Resign() error {
	reply := make(chan error, 1)
	if !e.post(cmdResign{reply: reply}) {
		return ErrEngineStopped
	}
	return <-reply
}

// SendChat relays a table message; the engine never interprets it.
func (e *Engine) SendChat(text string) error {
	reply := make(chan error, 1)
	if !e.post(cmdChat{text: text, reply: reply}) {
		return ErrEngineStopped
	}
	return <-reply
}

// Snapshot returns the current actor state.
func (e *Engine) Snapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if !e.post(cmdSnapshotReq{reply: reply}) {
		return Snapshot{}, ErrEngineStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-e.done:
		return Snapshot{}, ErrEngineStopped
	}
}

func (e *Engine) post(cmd any) bool {
	select {
	case e.cmds <- cmd:
		return true
	case <-e.done:
		return false
	}
}

// run is the actor loop. Every state mutation in the engine happens on this
// goroutine.
func (e *Engine) run() {
	defer close(e.done)
	defer close(e.events)
	defer e.stopTimers()

	e.armTimers()

	for {
		select {
		case <-e.ctx.Done():
			if e.saveDirty {
				e.flushSave()
			}
			return
		case cmd := <-e.cmds:
			switch c := cmd.(type) {
			case cmdLocalMove:
				c.reply <- e.handleLocalMove(c.payload)
			case cmdResign:
				c.reply <- e.handleLocalResign()
			case cmdChat:
				c.reply <- e.handleLocalChat(c.text)
			case cmdEnvelope:
				e.handleEnvelope(c.env)
			case cmdLogMove:
				e.handleMove(c.mv, true)
			case cmdClockExpire:
				e.handleClockExpire(c.player, c.atSeq)
			case cmdConnState:
				e.emit(Event{Kind: EventConnState, Payload: ConnStatePayload{
					State:    c.state,
					Degraded: c.state != ports.StateConnected && e.phase == domain.PhaseInProgress,
				}})
			case cmdEmit:
				e.emit(c.ev)
			case cmdFlushSave:
				e.flushSave()
			case cmdRebuild:
				e.rebuild(c.moves)
			case cmdSettleDone:
				e.handleSettleDone(c.err)
			case cmdSnapshotReq:
				c.reply <- e.snapshotLocked()
			}
		}
	}
}

/* ---- local submissions ---- */

func (e *Engine) handleLocalMove(payload []byte) error {
	if e.phase == domain.PhaseGameOver {
		return ErrMatchOver
	}
	if e.phase != domain.PhaseInProgress {
		return ErrNotStarted
	}
	if e.turnOwner != e.selfID {
		return ErrNotYourTurn
	}

	mv := domain.Move{
		MatchID:   e.match.ID,
		Seq:       e.appliedSeq + 1,
		Player:    e.selfID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	next, err := e.rules.ApplyMove(e.state, mv)
	if err != nil {
		return err
	}
	e.commitMove(mv, next)
	e.fanOut(mv)
	return nil
}

func (e *Engine) handleLocalResign() error {
	if e.phase == domain.PhaseGameOver {
		return ErrMatchOver
	}
	mv := domain.NewResignMove(e.match.ID, e.appliedSeq+1, e.selfID, time.Now().UTC())
	e.applyResign(mv)
	e.fanOut(mv)
	return nil
}

func (e *Engine) handleLocalChat(text string) error {
	if e.cfg.Transport == nil {
		return ports.ErrNotConnected
	}
	env, err := protocol.New(e.match.ID, protocol.KindChat, e.selfID, protocol.ChatPayload{Text: text})
	if err != nil {
		return err
	}
	return e.cfg.Transport.Send(env)
}

// fanOut pushes an accepted local move to the durable log and, best effort,
// to the direct channel. At-least-once delivery; receivers dedupe.
func (e *Engine) fanOut(mv domain.Move) {
	if e.cfg.Log != nil {
		go func() {
			if err := e.cfg.Log.SubmitMove(e.ctx, mv); err != nil {
				if errors.Is(err, ports.ErrMoveConflict) {
					// We lost a submission race, most likely against the
					// opponent's timeout report for the same sequence. The
					// log is authoritative: rebuild from it.
					e.log.Warn().Uint64("seq", mv.Seq).Msg("move lost log race, resyncing")
					e.resyncFromLog()
					return
				}
				e.log.Error().Err(err).Uint64("seq", mv.Seq).Msg("durable submit failed")
			}
		}()
	}
	if e.cfg.Transport != nil {
		env, err := protocol.New(e.match.ID, protocol.KindMove, e.selfID, protocol.MovePayload{Move: mv})
		if err == nil {
			if err := e.cfg.Transport.Send(env); err != nil && !errors.Is(err, ports.ErrNotConnected) {
				e.log.Debug().Err(err).Msg("direct send failed")
			}
		}
	}
}

/* ---- inbound traffic ---- */

func (e *Engine) handleEnvelope(env protocol.Envelope) {
	if env.MatchID != "" && env.MatchID != e.match.ID {
		return
	}
	switch env.Kind {
	case protocol.KindMove:
		var p protocol.MovePayload
		if err := env.Decode(&p); err != nil {
			e.log.Debug().Err(err).Msg("malformed move envelope dropped")
			return
		}
		e.handleMove(p.Move, false)
	case protocol.KindResign:
		var p protocol.ResignPayload
		if err := env.Decode(&p); err != nil {
			return
		}
		e.handleMove(domain.NewResignMove(e.match.ID, p.Seq, p.Player, time.Now().UTC()), false)
	case protocol.KindChat:
		var p protocol.ChatPayload
		if err := env.Decode(&p); err != nil {
			return
		}
		e.emit(Event{Kind: EventChat, Payload: ChatPayload{From: env.From, Text: p.Text}})
	case protocol.KindElimination:
		var p protocol.EliminationPayload
		if err := env.Decode(&p); err != nil {
			return
		}
		e.emit(Event{Kind: EventEliminated, Payload: EliminatedPayload{Player: p.Player, Reason: p.Reason}})
	case protocol.KindSyncRequest:
		e.handleSyncRequest(env)
	case protocol.KindSyncResponse:
		var p protocol.SyncResponsePayload
		if err := env.Decode(&p); err != nil {
			return
		}
		for _, mv := range p.Moves {
			e.handleMove(mv, true)
		}
	case protocol.KindRematchPropose, protocol.KindRematchAccept,
		protocol.KindRematchDecline, protocol.KindRematchReady:
		if e.cfg.Rematch != nil {
			e.cfg.Rematch.handleEnvelope(env)
		}
	}
}

// handleSyncRequest answers a peer's catch-up request with our history past
// their applied prefix.
func (e *Engine) handleSyncRequest(env protocol.Envelope) {
	if env.From == e.selfID || env.From == "" {
		return
	}
	var p protocol.SyncRequestPayload
	_ = env.Decode(&p)

	var after []domain.Move
	for _, mv := range e.history {
		if mv.Seq > p.FromSeq {
			after = append(after, mv)
		}
	}
	resp, err := protocol.New(e.match.ID, protocol.KindSyncResponse, e.selfID, protocol.SyncResponsePayload{
		Moves:     after,
		Phase:     e.phase,
		TurnOwner: e.turnOwner,
		Strikes:   e.clock.Snapshot(),
	})
	if err != nil {
		return
	}
	resp.To = env.From
	if e.cfg.Transport != nil {
		_ = e.cfg.Transport.Send(resp)
	}
}

// refetchLog pulls everything after our applied prefix and replays it.
func (e *Engine) refetchLog() {
	if e.cfg.Log == nil {
		return
	}
	go func() {
		moves, err := e.cfg.Log.Moves(e.ctx, e.match.ID, 0)
		if err != nil {
			e.log.Error().Err(err).Msg("log refetch failed")
			return
		}
		for _, mv := range moves {
			e.post(cmdLogMove{mv: mv})
		}
	}()
}

// resyncFromLog fetches the full recorded sequence and posts it for a
// rebuild. Used when a local move lost the submission race: the move we
// already applied is not the one the log holds at that sequence, so the
// applied prefix itself is wrong and a replay-from-tip cannot mend it.
func (e *Engine) resyncFromLog() {
	if e.cfg.Log == nil {
		return
	}
	go func() {
		moves, err := e.cfg.Log.Moves(e.ctx, e.match.ID, 0)
		if err != nil {
			e.log.Error().Err(err).Msg("log refetch failed")
			return
		}
		e.post(cmdRebuild{moves: moves})
	}()
}

// rebuild resets the actor to the original deal and replays the recorded
// sequence over it, exactly as a cold restore would. The deal never changes,
// so every engine that rebuilds from the same log lands on the same state.
func (e *Engine) rebuild(moves []domain.Move) {
	if e.phase == domain.PhaseGameOver {
		return
	}
	state, err := e.rules.InitialState(e.deal)
	if err != nil {
		e.log.Error().Err(err).Msg("rebuild from log failed")
		return
	}
	e.state = state
	e.phase = domain.PhaseInProgress
	e.turnOwner = e.rules.TurnOwner(e.state)
	e.appliedSeq = 0
	e.history = nil
	e.applied = make(map[domain.MoveKey]struct{})
	e.pending = make(map[uint64]domain.Move)
	e.eliminated = make(map[string]bool)
	e.clock = domain.NewTurnClock(e.clock.Limit(), e.match.Players)

	e.muted = true
	for _, mv := range moves {
		e.handleMove(mv, true)
	}
	e.muted = false

	if e.phase == domain.PhaseGameOver {
		e.emit(Event{Kind: EventGameOver, Payload: GameOverPayload{Winner: e.winner, Reason: e.endReason}})
		e.emit(Event{Kind: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: e.phase, TurnOwner: ""}})
		return
	}
	e.emit(Event{Kind: EventResynced, Payload: ResyncedPayload{TurnOwner: e.turnOwner, AppliedSeq: e.appliedSeq}})
	e.armTimers()
	e.scheduleSave()
}

/* ---- move application pipeline ---- */

// handleMove is the single entry point for every move regardless of origin.
// fromLog marks deliveries from the durable log or a sync response, which
// are trusted for catch-up and therefore exempt from the live out-of-turn
// check (the rule engine still validates them).
func (e *Engine) handleMove(mv domain.Move, fromLog bool) {
	if e.phase == domain.PhaseGameOver {
		return
	}
	if mv.MatchID != e.match.ID || !e.match.HasPlayer(mv.Player) {
		return
	}
	if _, dup := e.applied[mv.Key()]; dup {
		return
	}
	if mv.Seq <= e.appliedSeq {
		// A different move already occupies this sequence: the loser of a
		// submission race. Idempotent discard.
		return
	}
	if mv.Seq > e.appliedSeq+1 {
		// We are behind; buffer and catch up.
		e.pending[mv.Seq] = mv
		e.requestCatchUp()
		return
	}

	switch mv.Synthetic() {
	case domain.SyntheticTimeout:
		e.applyTimeout(mv)
	case domain.SyntheticResign:
		e.applyResign(mv)
	default:
		e.applyRegular(mv, fromLog)
	}

	e.drainPending()
}

func (e *Engine) applyRegular(mv domain.Move, fromLog bool) {
	if !fromLog && mv.Player != e.turnOwner {
		e.log.Debug().Str("player", mv.Player).Uint64("seq", mv.Seq).Msg("out-of-turn move dropped")
		return
	}
	next, err := e.rules.ApplyMove(e.state, mv)
	if err != nil {
		// Honest clients validate before sending; an illegal move here is
		// a buggy or hostile peer. Defensive no-op.
		e.log.Warn().Err(err).Str("player", mv.Player).Uint64("seq", mv.Seq).Msg("illegal move dropped")
		e.emit(Event{Kind: EventMoveRejected, Payload: MoveRejectedPayload{Move: mv, Reason: err.Error()}})
		return
	}
	e.commitMove(mv, next)
}

// commitMove records an accepted regular move and advances the turn.
func (e *Engine) commitMove(mv domain.Move, next domain.GameState) {
	e.state = next
	e.applied[mv.Key()] = struct{}{}
	e.appliedSeq = mv.Seq
	e.history = append(e.history, mv)
	e.clock.MoveAccepted(mv.Player)
	e.turnOwner = e.nextOwner()
	e.emit(Event{Kind: EventMoveApplied, Payload: MoveAppliedPayload{Move: mv, TurnOwner: e.turnOwner}})

	if winner, reason, over := e.rules.CheckWinner(e.state); over {
		e.gameOver(winner, reason)
		return
	}
	e.armTimers()
	e.scheduleSave()
}

// nextOwner asks the rules who moves next, advancing the rules' own turn
// pointer past eliminated players so their validation stays in step.
func (e *Engine) nextOwner() string {
	owner := e.rules.TurnOwner(e.state)
	for owner != "" && e.eliminated[owner] {
		e.state = e.rules.SkipTurn(e.state, owner)
		next := e.rules.TurnOwner(e.state)
		if next == owner {
			break
		}
		owner = next
	}
	return owner
}

func (e *Engine) applyTimeout(mv domain.Move) {
	if mv.Player != e.turnOwner {
		// Either a stale report or a hostile one; the turn owner is the
		// only player whose clock can expire.
		return
	}
	e.applied[mv.Key()] = struct{}{}
	e.appliedSeq = mv.Seq
	e.history = append(e.history, mv)

	strikes := e.clock.Strike(mv.Player)
	e.emit(Event{Kind: EventStrike, Payload: StrikePayload{Player: mv.Player, Strikes: strikes}})

	if e.clock.Forfeited(mv.Player) {
		e.forfeit(mv.Player, domain.ReasonTimeoutForfeit)
		return
	}
	e.state = e.rules.SkipTurn(e.state, mv.Player)
	e.turnOwner = e.nextOwner()
	e.emit(Event{Kind: EventTurnSkipped, Payload: TurnSkippedPayload{Player: mv.Player, TurnOwner: e.turnOwner}})
	e.clock.ResetTurn(e.turnOwner)
	e.armTimers()
	e.scheduleSave()
}

func (e *Engine) applyResign(mv domain.Move) {
	e.applied[mv.Key()] = struct{}{}
	e.appliedSeq = mv.Seq
	e.history = append(e.history, mv)
	e.forfeit(mv.Player, domain.ReasonResign)
}

// forfeit removes a player for good. In a two-player match this ends the
// game; with more players it is an elimination until one remains.
func (e *Engine) forfeit(player string, reason domain.EndReason) {
	e.eliminated[player] = true

	var remaining []string
	for _, p := range e.match.Players {
		if !e.eliminated[p] {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 1 {
		e.gameOver(remaining[0], reason)
		return
	}

	e.emit(Event{Kind: EventEliminated, Payload: EliminatedPayload{Player: player, Reason: reason}})
	if e.cfg.Transport != nil {
		if env, err := protocol.New(e.match.ID, protocol.KindElimination, e.selfID,
			protocol.EliminationPayload{Player: player, Reason: reason}); err == nil {
			_ = e.cfg.Transport.Send(env)
		}
	}
	if e.turnOwner == player {
		e.state = e.rules.SkipTurn(e.state, player)
		e.turnOwner = e.nextOwner()
	}
	e.armTimers()
	e.scheduleSave()
}

func (e *Engine) drainPending() {
	for {
		mv, ok := e.pending[e.appliedSeq+1]
		if !ok {
			return
		}
		delete(e.pending, mv.Seq)
		e.handleMove(mv, true)
		if e.phase == domain.PhaseGameOver {
			return
		}
	}
}

// requestCatchUp asks both sources for the gap: the log by refetch, a peer
// by sync-request.
func (e *Engine) requestCatchUp() {
	e.refetchLog()
	if e.cfg.Transport == nil {
		return
	}
	env, err := protocol.New(e.match.ID, protocol.KindSyncRequest, e.selfID,
		protocol.SyncRequestPayload{FromSeq: e.appliedSeq})
	if err == nil {
		_ = e.cfg.Transport.Send(env)
	}
}

/* ---- clocks ---- */

// armTimers re-arms the turn clock watchdogs for the current owner. The
// owner's own device fires exactly at the limit and is authoritative; every
// opponent arms a watchdog delayed by a grace period, so a move arriving
// through the log in the meantime advances appliedSeq and the expiry is
// discarded as stale. Both sides may still report the same timeout; the
// shared (seq, player) key collapses them in the log.
func (e *Engine) armTimers() {
	e.stopTimers()
	if e.phase != domain.PhaseInProgress || e.turnOwner == "" {
		return
	}
	owner := e.turnOwner
	atSeq := e.appliedSeq
	if owner == e.selfID {
		e.turnTimer = time.AfterFunc(e.clock.Remaining(owner), func() {
			e.post(cmdClockExpire{player: owner, atSeq: atSeq})
		})
		return
	}
	e.watchdogTimer = time.AfterFunc(e.clock.Remaining(owner)+e.cfg.WatchdogGrace, func() {
		e.post(cmdClockExpire{player: owner, atSeq: atSeq})
	})
}

func (e *Engine) stopTimers() {
	if e.turnTimer != nil {
		e.turnTimer.Stop()
		e.turnTimer = nil
	}
	if e.watchdogTimer != nil {
		e.watchdogTimer.Stop()
		e.watchdogTimer = nil
	}
}

func (e *Engine) handleClockExpire(player string, atSeq uint64) {
	// Stale if anything moved since the timer was armed.
	if e.phase != domain.PhaseInProgress || player != e.turnOwner || atSeq != e.appliedSeq {
		return
	}
	mv := domain.NewTimeoutMove(e.match.ID, e.appliedSeq+1, player, time.Now().UTC())
	e.applyTimeout(mv)
	e.fanOut(mv)
}

/* ---- game over & settlement ---- */

func (e *Engine) gameOver(winner string, reason domain.EndReason) {
	e.phase = domain.PhaseGameOver
	e.winner = winner
	e.endReason = reason
	e.stopTimers()
	e.emit(Event{Kind: EventGameOver, Payload: GameOverPayload{Winner: winner, Reason: reason}})
	e.emit(Event{Kind: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: e.phase, TurnOwner: ""}})
	e.saveDirty = true
	e.flushSave()

	if e.cfg.Settlement == nil {
		return
	}
	e.emit(Event{Kind: EventSettlement, Payload: SettlementPayload{Status: SettlementPending}})
	result := ports.SettlementResult{
		MatchID: e.match.ID,
		Winner:  winner,
		Reason:  reason,
		Stake:   e.match.Stake,
		Losers:  losersOf(e.match, winner),
	}
	go func() {
		err := e.cfg.Settlement.Settle(e.ctx, result)
		e.post(cmdSettleDone{err: err})
	}()
}

func losersOf(m domain.Match, winner string) []string {
	if winner == "" {
		return nil
	}
	return m.Opponents(winner)
}

func (e *Engine) handleSettleDone(err error) {
	if err != nil {
		// Settlement failed: the match is void, surfaced distinctly from
		// the game result which stands as computed.
		e.log.Error().Err(err).Msg("settlement failed, match void")
		e.emit(Event{Kind: EventSettlement, Payload: SettlementPayload{Status: SettlementVoid, Err: err.Error()}})
		return
	}
	e.emit(Event{Kind: EventSettlement, Payload: SettlementPayload{Status: SettlementDone}})
	e.clearSession()
}

/* ---- events ---- */

func (e *Engine) emit(ev Event) {
	if e.muted {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.log.Warn().Str("kind", string(ev.Kind)).Msg("event buffer full, dropping")
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	raw, _ := domain.EncodeState(e.state)
	return Snapshot{
		Phase:      e.phase,
		TurnOwner:  e.turnOwner,
		State:      raw,
		AppliedSeq: e.appliedSeq,
		Strikes:    e.clock.Snapshot(),
		Winner:     e.winner,
		EndReason:  e.endReason,
	}
}
