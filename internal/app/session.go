package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jinzhu/copier"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// sessionBlob is the persisted engine state. Everything in it is
// re-derivable from the deal and the move log; the blob only saves the
// replay on the common reload path.
type sessionBlob struct {
	State      json.RawMessage  `json:"state"`
	Phase      domain.Phase     `json:"phase"`
	TurnOwner  string           `json:"turnOwner"`
	AppliedSeq uint64           `json:"appliedSeq"`
	Strikes    map[string]int   `json:"strikes,omitempty"`
	Eliminated []string         `json:"eliminated,omitempty"`
	Winner     string           `json:"winner,omitempty"`
	Reason     domain.EndReason `json:"reason,omitempty"`
	Moves      []domain.Move    `json:"moves"`
}

// bootstrap brings the engine to a playable state before the actor loop
// starts: restore a saved session, rebuild from the move log when the blob
// is unusable, or deal fresh.
func (e *Engine) bootstrap() error {
	if e.cfg.Sessions != nil {
		rec, ok, err := e.cfg.Sessions.Load(e.ctx, e.match.ID)
		if err != nil {
			e.log.Warn().Err(err).Msg("session load failed, rebuilding")
		} else if ok {
			if err := e.restoreRecord(rec); err == nil {
				e.emit(Event{Kind: EventSessionRestored, Payload: SessionRestoredPayload{TurnOwner: e.turnOwner}})
				return nil
			}
			e.log.Warn().Str("match", rec.MatchID).Msg("session blob unusable, rebuilding from log")
		}
	}

	rebuilt, err := e.rebuildFromLog()
	if err != nil {
		return err
	}
	if rebuilt {
		e.emit(Event{Kind: EventSessionRestored, Payload: SessionRestoredPayload{TurnOwner: e.turnOwner, Recovered: true}})
		e.scheduleSave()
		return nil
	}

	return e.freshDeal()
}

// restoreRecord loads a saved blob. Any decode failure or inconsistency
// returns ErrBadSession; the caller falls back to a log rebuild. The hand
// a player was dealt never changes on reload.
func (e *Engine) restoreRecord(rec ports.SessionRecord) error {
	var blob sessionBlob
	if err := json.Unmarshal(rec.Blob, &blob); err != nil {
		return ErrBadSession
	}
	if blob.Phase == "" || uint64(len(blob.Moves)) != blob.AppliedSeq {
		return ErrBadSession
	}
	state, err := e.rules.DecodeState(blob.State)
	if err != nil {
		return ErrBadSession
	}
	if blob.Phase == domain.PhaseInProgress && !e.match.HasPlayer(blob.TurnOwner) {
		return ErrBadSession
	}

	e.state = state
	e.phase = blob.Phase
	e.turnOwner = blob.TurnOwner
	e.appliedSeq = blob.AppliedSeq
	e.history = blob.Moves
	e.winner = blob.Winner
	e.endReason = blob.Reason
	e.clock.Restore(blob.Strikes)
	for _, p := range blob.Eliminated {
		e.eliminated[p] = true
	}
	for _, mv := range blob.Moves {
		e.applied[mv.Key()] = struct{}{}
	}
	return nil
}

// rebuildFromLog reconstructs the session deterministically: the seeded
// deal gives the initial state and the recorded moves replay on top of it.
// Returns false when the log is empty or absent, meaning nothing was ever
// played and a fresh deal is correct.
func (e *Engine) rebuildFromLog() (bool, error) {
	if e.cfg.Log == nil {
		return false, nil
	}
	moves, err := e.cfg.Log.Moves(e.ctx, e.match.ID, 0)
	if err != nil {
		return false, err
	}
	if len(moves) == 0 {
		return false, nil
	}

	state, err := e.rules.InitialState(e.deal)
	if err != nil {
		return false, err
	}
	e.state = state
	e.phase = domain.PhaseInProgress
	e.turnOwner = e.rules.TurnOwner(e.state)

	e.muted = true
	for _, mv := range moves {
		e.handleMove(mv, true)
	}
	e.muted = false
	return true, nil
}

// freshDeal starts the match from scratch, walking the setup phases so the
// UI sees the same progression on every client.
func (e *Engine) freshDeal() error {
	e.setPhase(domain.PhaseRulesPending)
	e.setPhase(domain.PhaseDealPending)
	state, err := e.rules.InitialState(e.deal)
	if err != nil {
		return err
	}
	e.state = state
	e.turnOwner = e.rules.TurnOwner(e.state)
	e.setPhase(domain.PhaseInProgress)
	e.scheduleSave()
	return nil
}

func (e *Engine) setPhase(p domain.Phase) {
	e.phase = p
	e.emit(Event{Kind: EventPhaseChanged, Payload: PhaseChangedPayload{Phase: p, TurnOwner: e.turnOwner}})
}

// scheduleSave marks the session dirty and arms the debounce timer. Rapid
// move bursts collapse into one write.
func (e *Engine) scheduleSave() {
	if e.cfg.Sessions == nil {
		return
	}
	e.saveDirty = true
	if e.saveTimer != nil {
		return
	}
	e.saveTimer = time.AfterFunc(e.cfg.SaveDebounce, func() {
		e.post(cmdFlushSave{})
	})
}

// flushSave writes the session now. The blob is assembled on the actor
// goroutine with deep copies, so the marshal and store write can run off
// the loop without racing later moves.
func (e *Engine) flushSave() {
	if e.saveTimer != nil {
		e.saveTimer.Stop()
		e.saveTimer = nil
	}
	if e.cfg.Sessions == nil || !e.saveDirty {
		return
	}
	e.saveDirty = false

	raw, err := domain.EncodeState(e.state)
	if err != nil {
		e.log.Error().Err(err).Msg("session encode failed")
		return
	}
	var moves []domain.Move
	if err := copier.CopyWithOption(&moves, e.history, copier.Option{DeepCopy: true}); err != nil {
		e.log.Error().Err(err).Msg("session copy failed")
		return
	}
	var elim []string
	for p := range e.eliminated {
		elim = append(elim, p)
	}
	blob := sessionBlob{
		State:      raw,
		Phase:      e.phase,
		TurnOwner:  e.turnOwner,
		AppliedSeq: e.appliedSeq,
		Strikes:    e.clock.Snapshot(),
		Eliminated: elim,
		Winner:     e.winner,
		Reason:     e.endReason,
		Moves:      moves,
	}
	rec := ports.SessionRecord{
		MatchID:   e.match.ID,
		TurnOwner: blob.TurnOwner,
		Status:    blob.Phase,
		SavedAt:   time.Now().UTC(),
	}
	// Shutdown flushes race engine teardown; the write must outlive the
	// actor context.
	ctx := context.WithoutCancel(e.ctx)
	go func() {
		data, err := json.Marshal(blob)
		if err != nil {
			e.log.Error().Err(err).Msg("session marshal failed")
			return
		}
		rec.Blob = data
		if err := e.cfg.Sessions.Save(ctx, rec); err != nil {
			e.log.Error().Err(err).Msg("session save failed")
		}
	}()
}

// clearSession removes the persisted session once the match is settled.
func (e *Engine) clearSession() {
	if e.cfg.Sessions == nil {
		return
	}
	ctx := context.WithoutCancel(e.ctx)
	go func() {
		if err := e.cfg.Sessions.Delete(ctx, e.match.ID); err != nil {
			e.log.Debug().Err(err).Msg("session delete failed")
		}
	}()
}
