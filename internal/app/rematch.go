package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

var (
	ErrUnknownProposal  = errors.New("unknown rematch proposal")
	ErrProposalResolved = errors.New("rematch proposal already resolved")
	ErrNotBound         = errors.New("rematch coordinator not bound to an engine")
)

// Rematch coordinates the end-of-match handshake: one player proposes a new
// match carrying a fresh seed, every invitee accepts or declines, and once
// all have accepted a ready notice moves everyone to the new match together.
// Proposals are persisted through the invite store so a player who was
// offline when invited still sees the proposal on reconnect.
type Rematch struct {
	invites ports.InviteStore // nil skips persistence

	mu        sync.Mutex
	engine    *Engine
	proposals map[string]*proposal
}

type proposal struct {
	invite   ports.RematchInvite
	accepted map[string]bool
	resolved bool
}

// NewRematch builds a coordinator. invites may be nil for casual play.
func NewRematch(invites ports.InviteStore) *Rematch {
	return &Rematch{
		invites:   invites,
		proposals: make(map[string]*proposal),
	}
}

// bind attaches the coordinator to its engine and delivers proposals that
// arrived while this player was offline.
func (r *Rematch) bind(e *Engine) {
	r.mu.Lock()
	r.engine = e
	r.mu.Unlock()

	if r.invites == nil {
		return
	}
	go func() {
		pending, err := r.invites.PendingInvites(e.ctx, e.selfID)
		if err != nil {
			e.log.Warn().Err(err).Msg("pending invite fetch failed")
			return
		}
		for _, inv := range pending {
			if inv.OldMatchID != e.match.ID {
				continue
			}
			p := r.track(inv)
			r.mu.Lock()
			p.accepted[inv.Proposer] = true
			r.mu.Unlock()
			r.emit(Event{Kind: EventRematchProposed, Payload: RematchProposedPayload{
				ProposalID: inv.ProposalID,
				Proposer:   inv.Proposer,
				NewMatch:   inv.NewMatch,
			}})
		}
	}()
}

// Propose starts a rematch of the bound engine's match. The returned match
// reuses the players and settings but carries a new ID, so its deal shuffles
// differently from the finished game.
func (r *Rematch) Propose() (string, domain.Match, error) {
	e := r.boundEngine()
	if e == nil {
		return "", domain.Match{}, ErrNotBound
	}

	next := e.match
	next.ID = e.match.ID + "-r" + newProposalID()[:8]
	inv := ports.RematchInvite{
		ProposalID: newProposalID(),
		OldMatchID: e.match.ID,
		NewMatch:   next,
		Proposer:   e.selfID,
		CreatedAt:  time.Now().UTC(),
	}

	p := r.track(inv)
	r.mu.Lock()
	p.accepted[e.selfID] = true
	r.mu.Unlock()

	if r.invites != nil {
		if err := r.invites.PutInvite(e.ctx, inv); err != nil {
			return "", domain.Match{}, err
		}
	}
	env, err := protocol.New(e.match.ID, protocol.KindRematchPropose, e.selfID, protocol.RematchProposePayload{
		ProposalID: inv.ProposalID,
		NewMatch:   next,
	})
	if err != nil {
		return "", domain.Match{}, err
	}
	if e.cfg.Transport != nil {
		if err := e.cfg.Transport.Send(env); err != nil && !errors.Is(err, ports.ErrNotConnected) {
			return "", domain.Match{}, err
		}
	}
	return inv.ProposalID, next, nil
}

// Accept agrees to a proposal. When the last invitee accepts, the accepting
// client broadcasts the ready notice for everyone.
func (r *Rematch) Accept(proposalID string) error {
	e := r.boundEngine()
	if e == nil {
		return ErrNotBound
	}

	r.mu.Lock()
	p, ok := r.proposals[proposalID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownProposal
	}
	if p.resolved {
		r.mu.Unlock()
		return ErrProposalResolved
	}
	p.accepted[e.selfID] = true
	allIn := r.allAcceptedLocked(p)
	r.mu.Unlock()

	if r.invites != nil {
		if err := r.invites.ResolveInvite(e.ctx, proposalID, true); err != nil {
			return err
		}
	}
	env, err := protocol.New(e.match.ID, protocol.KindRematchAccept, e.selfID,
		protocol.RematchReplyPayload{ProposalID: proposalID})
	if err != nil {
		return err
	}
	if e.cfg.Transport != nil {
		_ = e.cfg.Transport.Send(env)
	}
	if allIn {
		r.ready(p)
	}
	return nil
}

// Decline rejects a proposal and tells the table.
func (r *Rematch) Decline(proposalID string) error {
	e := r.boundEngine()
	if e == nil {
		return ErrNotBound
	}

	r.mu.Lock()
	p, ok := r.proposals[proposalID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownProposal
	}
	p.resolved = true
	r.mu.Unlock()

	if r.invites != nil {
		if err := r.invites.ResolveInvite(e.ctx, proposalID, false); err != nil {
			return err
		}
	}
	env, err := protocol.New(e.match.ID, protocol.KindRematchDecline, e.selfID,
		protocol.RematchReplyPayload{ProposalID: proposalID})
	if err != nil {
		return err
	}
	if e.cfg.Transport != nil {
		_ = e.cfg.Transport.Send(env)
	}
	r.emit(Event{Kind: EventRematchDeclined, Payload: RematchDeclinedPayload{
		ProposalID: proposalID,
		Decliner:   e.selfID,
	}})
	return nil
}

// handleEnvelope processes rematch traffic routed from the engine actor.
func (r *Rematch) handleEnvelope(env protocol.Envelope) {
	e := r.boundEngine()
	if e == nil {
		return
	}
	switch env.Kind {
	case protocol.KindRematchPropose:
		var pl protocol.RematchProposePayload
		if err := env.Decode(&pl); err != nil {
			return
		}
		inv := ports.RematchInvite{
			ProposalID: pl.ProposalID,
			OldMatchID: e.match.ID,
			NewMatch:   pl.NewMatch,
			Proposer:   env.From,
			CreatedAt:  time.Now().UTC(),
		}
		p := r.track(inv)
		r.mu.Lock()
		p.accepted[env.From] = true
		r.mu.Unlock()
		if r.invites != nil {
			_ = r.invites.PutInvite(e.ctx, inv)
		}
		r.emit(Event{Kind: EventRematchProposed, Payload: RematchProposedPayload{
			ProposalID: pl.ProposalID,
			Proposer:   env.From,
			NewMatch:   pl.NewMatch,
		}})
	case protocol.KindRematchAccept:
		var pl protocol.RematchReplyPayload
		if err := env.Decode(&pl); err != nil {
			return
		}
		r.mu.Lock()
		p, ok := r.proposals[pl.ProposalID]
		if !ok || p.resolved {
			r.mu.Unlock()
			return
		}
		p.accepted[env.From] = true
		allIn := r.allAcceptedLocked(p)
		r.mu.Unlock()
		if allIn {
			r.ready(p)
		}
	case protocol.KindRematchDecline:
		var pl protocol.RematchReplyPayload
		if err := env.Decode(&pl); err != nil {
			return
		}
		r.mu.Lock()
		p, ok := r.proposals[pl.ProposalID]
		if !ok || p.resolved {
			r.mu.Unlock()
			return
		}
		p.resolved = true
		r.mu.Unlock()
		if r.invites != nil {
			_ = r.invites.ResolveInvite(e.ctx, pl.ProposalID, false)
		}
		r.emit(Event{Kind: EventRematchDeclined, Payload: RematchDeclinedPayload{
			ProposalID: pl.ProposalID,
			Decliner:   env.From,
		}})
	case protocol.KindRematchReady:
		var pl protocol.RematchReadyPayload
		if err := env.Decode(&pl); err != nil {
			return
		}
		r.mu.Lock()
		p, ok := r.proposals[pl.ProposalID]
		if ok && p.resolved {
			r.mu.Unlock()
			return
		}
		if ok {
			p.resolved = true
		}
		r.mu.Unlock()
		r.emit(Event{Kind: EventRematchReady, Payload: RematchReadyPayload{
			ProposalID: pl.ProposalID,
			NewMatch:   pl.NewMatch,
		}})
	}
}

// ready resolves a fully-accepted proposal and broadcasts the notice.
func (r *Rematch) ready(p *proposal) {
	e := r.boundEngine()
	if e == nil {
		return
	}
	r.mu.Lock()
	if p.resolved {
		r.mu.Unlock()
		return
	}
	p.resolved = true
	r.mu.Unlock()

	env, err := protocol.New(e.match.ID, protocol.KindRematchReady, e.selfID, protocol.RematchReadyPayload{
		ProposalID: p.invite.ProposalID,
		NewMatch:   p.invite.NewMatch,
	})
	if err == nil && e.cfg.Transport != nil {
		_ = e.cfg.Transport.Send(env)
	}
	r.emit(Event{Kind: EventRematchReady, Payload: RematchReadyPayload{
		ProposalID: p.invite.ProposalID,
		NewMatch:   p.invite.NewMatch,
	}})
}

func (r *Rematch) track(inv ports.RematchInvite) *proposal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.proposals[inv.ProposalID]; ok {
		return p
	}
	p := &proposal{invite: inv, accepted: make(map[string]bool)}
	r.proposals[inv.ProposalID] = p
	return p
}

func (r *Rematch) allAcceptedLocked(p *proposal) bool {
	for _, pl := range p.invite.NewMatch.Players {
		if !p.accepted[pl] {
			return false
		}
	}
	return true
}

func (r *Rematch) boundEngine() *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

func (r *Rematch) emit(ev Event) {
	e := r.boundEngine()
	if e == nil {
		return
	}
	e.post(cmdEmit{ev: ev})
}

func newProposalID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
