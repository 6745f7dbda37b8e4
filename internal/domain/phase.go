package domain

// Phase represents the lifecycle stage of a match.
type Phase string

const (
	// PhaseWaitingForPlayers indicates the room has not filled yet.
	PhaseWaitingForPlayers Phase = "waiting_for_players"
	// PhaseRulesPending indicates players are confirming the rule set.
	PhaseRulesPending Phase = "rules_pending"
	// PhaseDealPending indicates the deterministic deal and fairness roll
	// are being computed.
	PhaseDealPending Phase = "deal_pending"
	// PhaseInProgress indicates the game is live and a turn owner exists.
	PhaseInProgress Phase = "in_progress"
	// PhaseGameOver indicates the match reached a terminal result.
	PhaseGameOver Phase = "game_over"
)

// EndReason explains why a match reached GameOver. The value is forwarded
// verbatim to the settlement service.
type EndReason string

const (
	ReasonCheckmate      EndReason = "checkmate"
	ReasonResign         EndReason = "resign"
	ReasonTimeoutForfeit EndReason = "timeout-forfeit"
	ReasonBearOff        EndReason = "bear-off"
	ReasonBlockedDraw    EndReason = "blocked-draw"
	ReasonVoid           EndReason = "void"
)

// Terminal reports whether the phase admits no further moves.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver
}
