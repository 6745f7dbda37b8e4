package app

import (
	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// EventKind identifies events emitted by the engine for the UI layer.
type EventKind string

const (
	EventPhaseChanged    EventKind = "phase_changed"
	EventMoveApplied     EventKind = "move_applied"
	EventMoveRejected    EventKind = "move_rejected"
	EventStrike          EventKind = "strike"
	EventTurnSkipped     EventKind = "turn_skipped"
	EventEliminated      EventKind = "eliminated"
	EventGameOver        EventKind = "game_over"
	EventSessionRestored EventKind = "session_restored"
	EventResynced        EventKind = "resynced"
	EventConnState       EventKind = "conn_state"
	EventSettlement      EventKind = "settlement"
	EventChat            EventKind = "chat"
	EventRematchProposed EventKind = "rematch_proposed"
	EventRematchDeclined EventKind = "rematch_declined"
	EventRematchReady    EventKind = "rematch_ready"
)

// Event is a notification from the engine actor. Consumers read them from
// Engine.Events; the engine never blocks on a slow consumer.
type Event struct {
	Kind    EventKind
	Payload any
}

type PhaseChangedPayload struct {
	Phase     domain.Phase
	TurnOwner string
}

type MoveAppliedPayload struct {
	Move      domain.Move
	TurnOwner string
}

type MoveRejectedPayload struct {
	Move   domain.Move
	Reason string
}

// StrikePayload is the visible missed-turn warning.
type StrikePayload struct {
	Player  string
	Strikes int
}

type TurnSkippedPayload struct {
	Player    string
	TurnOwner string
}

type EliminatedPayload struct {
	Player string
	Reason domain.EndReason
}

type GameOverPayload struct {
	Winner string // empty on a draw
	Reason domain.EndReason
}

// SessionRestoredPayload is emitted at most once per mount, when the engine
// resumed from a persisted session instead of a fresh deal. Recovered marks
// a session blob that was unusable and had to be rebuilt from the deal plus
// the recorded moves.
type SessionRestoredPayload struct {
	TurnOwner string
	Recovered bool
}

// ResyncedPayload is emitted after the engine discarded a locally-applied
// move that lost the submission race and rebuilt itself from the log.
type ResyncedPayload struct {
	TurnOwner  string
	AppliedSeq uint64
}

type ConnStatePayload struct {
	State ports.ConnState
	// Degraded is set while gameplay continues via the durable log only.
	Degraded bool
}

// SettlementStatus is tracked separately from the game result.
type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementDone    SettlementStatus = "done"
	SettlementVoid    SettlementStatus = "void"
)

type SettlementPayload struct {
	Status SettlementStatus
	Err    string
}

type ChatPayload struct {
	From string
	Text string
}

type RematchProposedPayload struct {
	ProposalID string
	Proposer   string
	NewMatch   domain.Match
}

type RematchDeclinedPayload struct {
	ProposalID string
	Decliner   string
}

type RematchReadyPayload struct {
	ProposalID string
	NewMatch   domain.Match
}
