package nakama

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"turnsync/internal/config"
	"turnsync/internal/domain"
	"turnsync/internal/games/dominoes"
	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

// MatchState holds the authoritative runtime state for the Nakama match
// handler. In the hosted deployment the server is the single authority:
// it owns the sequence counter, the turn clock, and the settlement call,
// so the peer reconciliation paths of the client engine are not needed
// here.
type MatchState struct {
	Seats       [4]string                   `json:"seats"`      // User IDs, empty string means seat is empty
	OwnerSeat   int                         `json:"owner_seat"` // Seat index of the lobby owner
	Tick        int64                       `json:"tick"`       // Current match tick
	GamesPlayed int                         `json:"games_played"`
	Presences   map[string]runtime.Presence `json:"-"`

	Kind  domain.GameKind `json:"kind"`
	Mode  domain.Mode     `json:"mode"`
	Tier  string          `json:"tier"`
	Stake int64           `json:"stake"`

	NakamaMatchID string `json:"nakama_match_id"`
	TurnTicks     int64  `json:"turn_ticks"` // per-turn allowance in ticks (tick rate is 1/s)

	Match      domain.Match     `json:"match"`
	Deal       domain.Deal      `json:"deal"`
	Phase      domain.Phase     `json:"phase"`
	AppliedSeq uint64           `json:"applied_seq"`
	History    []domain.Move    `json:"history"`
	Eliminated map[string]bool  `json:"eliminated"`
	Winner     string           `json:"winner"`
	Reason     domain.EndReason `json:"reason"`

	TurnDeadlineTick int64 `json:"turn_deadline_tick"` // 0 while no clock is running

	Rules      domain.RuleEngine    `json:"-"`
	Game       domain.GameState     `json:"-"`
	Clock      *domain.TurnClock    `json:"-"`
	Settlement ports.SettlementPort `json:"-"`
}

func (ms *MatchState) GetOpenSeatsCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat == "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetOccupiedSeatCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" {
			count++
		}
	}
	return count
}

// occupiedSeats returns the seated user ids in seat order.
func (ms *MatchState) occupiedSeats() []string {
	out := make([]string, 0, len(ms.Seats))
	for _, seat := range ms.Seats {
		if seat != "" {
			out = append(out, seat)
		}
	}
	return out
}

// seatOf returns the seat index for a user id, or -1.
func (ms *MatchState) seatOf(userID string) int {
	for i, seat := range ms.Seats {
		if seat == userID {
			return i
		}
	}
	return -1
}

// activePlayers returns the current game's players minus the eliminated.
func (ms *MatchState) activePlayers() []string {
	out := make([]string, 0, len(ms.Match.Players))
	for _, p := range ms.Match.Players {
		if !ms.Eliminated[p] {
			out = append(out, p)
		}
	}
	return out
}

// rulesFor builds the rule engine for a game kind.
func rulesFor(kind domain.GameKind) (domain.RuleEngine, error) {
	switch kind {
	case domain.KindDominoes:
		return dominoes.New(), nil
	default:
		return nil, fmt.Errorf("unsupported game kind %q", kind)
	}
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return newMatchHandler(), nil
}

type matchHandler struct {
	rules func(domain.GameKind) (domain.RuleEngine, error)
	now   func() time.Time
}

func newMatchHandler() *matchHandler {
	return &matchHandler{rules: rulesFor, now: time.Now}
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	logger.Debug("MatchInit: Initializing match handler.")

	kind := domain.KindDominoes
	if v, ok := params["kind"].(string); ok && v != "" {
		kind = domain.GameKind(v)
	}
	mode := domain.ModeRanked
	if v, ok := params["mode"].(string); ok && v != "" {
		mode = domain.Mode(v)
	}
	tier, _ := params["tier"].(string)

	rules, err := mh.rules(kind)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		return nil, 0, ""
	}

	cfg := config.GetGameConfig()
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	if matchID == "" {
		matchID = "local"
	}

	state := &MatchState{
		OwnerSeat:     -1,
		Presences:     make(map[string]runtime.Presence),
		Kind:          kind,
		Mode:          mode,
		Tier:          tier,
		Stake:         cfg.StakeFor(tier),
		NakamaMatchID: matchID,
		TurnTicks:     int64(cfg.TurnTime() / time.Second),
		Phase:         domain.PhaseWaitingForPlayers,
		Eliminated:    make(map[string]bool),
		Rules:         rules,
		Settlement:    NewWalletSettlement(nk, cfg.Rate()),
	}

	label, err := mh.labelFor(state).encode()
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Mid-game joins are reconnections: only the seated players may return.
	if matchState.Phase == domain.PhaseInProgress {
		if matchState.Match.HasPlayer(presence.GetUserId()) {
			return state, true, ""
		}
		return state, false, "match in progress"
	}

	if matchState.GetOpenSeatsCount() <= 0 && matchState.seatOf(presence.GetUserId()) < 0 {
		return state, false, "match full"
	}
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p

		if matchState.seatOf(p.GetUserId()) >= 0 {
			// Returning player, seat retained across the disconnect.
			mh.sendCatchUp(matchState, dispatcher, logger, p)
			continue
		}

		assigned := false
		for i, seatUserId := range matchState.Seats {
			if seatUserId == "" {
				matchState.Seats[i] = p.GetUserId()
				assigned = true
				break
			}
		}
		if !assigned {
			logger.Warn("MatchJoin: User %s joined but no seat was available.", p.GetUserId())
		}
	}

	if matchState.OwnerSeat < 0 || matchState.Seats[matchState.OwnerSeat] == "" {
		for i, seat := range matchState.Seats {
			if seat != "" {
				matchState.OwnerSeat = i
				break
			}
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastMatchState(matchState, dispatcher, logger)

	return matchState
}

// sendCatchUp replays the running game to a reconnecting player: the deal
// so they can re-derive their hidden state, then the full accepted history.
func (mh *matchHandler) sendCatchUp(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, p runtime.Presence) {
	if state.Phase != domain.PhaseInProgress && state.Phase != domain.PhaseGameOver {
		return
	}
	target := []runtime.Presence{p}

	started := gameStartedEvent{Match: state.Match, Deal: state.Deal, TurnOwner: mh.turnOwner(state)}
	dispatcher.BroadcastMessage(OpGameStarted, mustMarshal(started), target, nil, true)

	sync := protocol.SyncResponsePayload{
		Moves:     append([]domain.Move(nil), state.History...),
		Phase:     state.Phase,
		TurnOwner: mh.turnOwner(state),
	}
	if state.Clock != nil {
		sync.Strikes = state.Clock.Snapshot()
	}
	dispatcher.BroadcastMessage(OpSyncResponse, mustMarshal(sync), target, nil, true)
	logger.Debug("sendCatchUp: Replayed %d moves to %s", len(sync.Moves), p.GetUserId())
}

// MatchLeave is called when one or more players leave the match.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		// Seats are only freed in the lobby. A mid-game leave keeps the
		// seat so the player can reconnect; their clock keeps running.
		if matchState.Phase != domain.PhaseInProgress {
			if i := matchState.seatOf(p.GetUserId()); i >= 0 {
				matchState.Seats[i] = ""
				logger.Debug("MatchLeave: User %s left, seat %d freed.", p.GetUserId(), i)
			}
		}
	}

	if matchState.OwnerSeat < 0 || matchState.Seats[matchState.OwnerSeat] == "" {
		matchState.OwnerSeat = -1
		for i, seat := range matchState.Seats {
			if seat != "" {
				matchState.OwnerSeat = i
				break
			}
		}
	}

	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Terminating empty match.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastMatchState(matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpStartGame:
			mh.handleStartGame(ctx, matchState, dispatcher, logger, nk, msg)
		case OpMove:
			mh.handleMove(ctx, matchState, dispatcher, logger, msg)
		case OpResign:
			mh.handleResign(ctx, matchState, dispatcher, logger, msg)
		case OpChat:
			mh.handleChat(matchState, dispatcher, logger, msg)
		case OpSyncRequest:
			mh.handleSyncRequest(matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	mh.tickClock(ctx, matchState, dispatcher, logger)

	return matchState
}

func (mh *matchHandler) handleStartGame(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, nk runtime.NakamaModule, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	senderSeat := state.seatOf(senderID)

	if state.Phase == domain.PhaseInProgress {
		mh.sendError(state, dispatcher, logger, senderID, 409, "game already running")
		return
	}
	if senderSeat != state.OwnerSeat {
		logger.Warn("StartGame: User %s tried to start game but is not owner (owner_seat=%d)", senderID, state.OwnerSeat)
		mh.sendError(state, dispatcher, logger, senderID, 403, "only the owner can start the game")
		return
	}

	players := state.occupiedSeats()
	if len(players) < 2 {
		mh.sendError(state, dispatcher, logger, senderID, 400, "need at least two players")
		return
	}

	if state.Stake > 0 && nk != nil {
		if short := mh.underfunded(ctx, nk, players, state.Stake); short != "" {
			mh.sendError(state, dispatcher, logger, senderID, 402, fmt.Sprintf("player %s cannot cover the stake", short))
			return
		}
	}

	// The seed changes per game so a rematch in the same room gets a fresh
	// deal, still deterministic for everyone.
	match := domain.Match{
		ID:              fmt.Sprintf("%s-g%d", state.NakamaMatchID, state.GamesPlayed),
		Players:         players,
		Kind:            state.Kind,
		Mode:            state.Mode,
		Stake:           state.Stake,
		TurnTimeSeconds: int(state.TurnTicks),
	}
	if err := match.Validate(); err != nil {
		logger.Error("StartGame: invalid match: %v", err)
		return
	}

	deal := domain.NewDeal(match)
	game, err := state.Rules.InitialState(deal)
	if err != nil {
		logger.Error("StartGame: Failed to derive initial state: %v", err)
		return
	}

	state.Match = match
	state.Deal = deal
	state.Game = game
	state.Phase = domain.PhaseInProgress
	state.AppliedSeq = 0
	state.History = nil
	state.Eliminated = make(map[string]bool)
	state.Winner = ""
	state.Reason = ""
	state.Clock = domain.NewTurnClock(match.TurnTime(), players)
	state.TurnDeadlineTick = state.Tick + state.TurnTicks

	mh.updateLabel(state, dispatcher, logger)

	started := gameStartedEvent{Match: match, Deal: deal, TurnOwner: mh.turnOwner(state)}
	dispatcher.BroadcastMessage(OpGameStarted, mustMarshal(started), nil, nil, true)

	logger.Info("StartGame: Game %s started with %d players, first turn %s.", match.ID, len(players), started.TurnOwner)
}

// underfunded returns the first player whose wallet cannot cover the stake,
// or "".
func (mh *matchHandler) underfunded(ctx context.Context, nk runtime.NakamaModule, players []string, stake int64) string {
	for _, p := range players {
		account, err := nk.AccountGetId(ctx, p)
		if err != nil {
			return p
		}
		balance, err := balanceOf(account.Wallet)
		if err != nil || balance < stake {
			return p
		}
	}
	return ""
}

func (mh *matchHandler) handleMove(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	if state.Phase != domain.PhaseInProgress {
		mh.sendError(state, dispatcher, logger, senderID, 409, "no game running")
		return
	}
	if !state.Match.HasPlayer(senderID) || state.Eliminated[senderID] {
		mh.sendError(state, dispatcher, logger, senderID, 403, "not part of this game")
		return
	}

	var req movePayload
	if err := jsonUnmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleMove: Invalid payload from %s: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, "malformed move payload")
		return
	}

	if owner := mh.turnOwner(state); owner != senderID {
		mh.sendError(state, dispatcher, logger, senderID, 403, "not your turn")
		return
	}

	mv := domain.Move{
		MatchID:   state.Match.ID,
		Seq:       state.AppliedSeq + 1,
		Player:    senderID,
		Payload:   req.Payload,
		CreatedAt: mh.now().UTC(),
	}

	next, err := state.Rules.ApplyMove(state.Game, mv)
	if err != nil {
		logger.Warn("handleMove: User %s rejected: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, 400, err.Error())
		return
	}

	state.Game = next
	mh.commitMove(state, dispatcher, mv)
	state.Clock.MoveAccepted(senderID)

	if winner, reason, over := state.Rules.CheckWinner(state.Game); over {
		mh.gameOver(ctx, state, dispatcher, logger, winner, reason)
		return
	}
	mh.armClock(state)
}

// commitMove appends an accepted move to the history and announces it. The
// history is the durable log of the hosted deployment; the sequence the
// server assigns is the one every client converges on.
func (mh *matchHandler) commitMove(state *MatchState, dispatcher runtime.MatchDispatcher, mv domain.Move) {
	state.AppliedSeq = mv.Seq
	state.History = append(state.History, mv)
	ev := moveAppliedEvent{Move: mv, TurnOwner: mh.turnOwner(state)}
	dispatcher.BroadcastMessage(OpMoveApplied, mustMarshal(ev), nil, nil, true)
}

func (mh *matchHandler) handleResign(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	if state.Phase != domain.PhaseInProgress {
		mh.sendError(state, dispatcher, logger, senderID, 409, "no game running")
		return
	}
	if !state.Match.HasPlayer(senderID) || state.Eliminated[senderID] {
		mh.sendError(state, dispatcher, logger, senderID, 403, "not part of this game")
		return
	}

	mv := domain.NewResignMove(state.Match.ID, state.AppliedSeq+1, senderID, mh.now().UTC())
	mh.commitMove(state, dispatcher, mv)
	logger.Info("handleResign: User %s resigned game %s.", senderID, state.Match.ID)

	mh.forfeit(ctx, state, dispatcher, logger, senderID, domain.ReasonResign)
}

// handleChat relays table chat verbatim. The server never interprets it.
func (mh *matchHandler) handleChat(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	if state.seatOf(senderID) < 0 {
		return
	}

	var chat protocol.ChatPayload
	if err := jsonUnmarshal(msg.GetData(), &chat); err != nil {
		logger.Warn("handleChat: Invalid payload from %s: %v", senderID, err)
		return
	}

	ev := chatRelayEvent{From: senderID, Text: chat.Text}
	dispatcher.BroadcastMessage(OpChatRelay, mustMarshal(ev), nil, nil, true)
}

func (mh *matchHandler) handleSyncRequest(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	p, ok := state.Presences[senderID]
	if !ok {
		return
	}

	var req protocol.SyncRequestPayload
	if err := jsonUnmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleSyncRequest: Invalid payload from %s: %v", senderID, err)
		return
	}

	moves := make([]domain.Move, 0, len(state.History))
	for _, mv := range state.History {
		if mv.Seq > req.FromSeq {
			moves = append(moves, mv)
		}
	}
	sync := protocol.SyncResponsePayload{
		Moves:     moves,
		Phase:     state.Phase,
		TurnOwner: mh.turnOwner(state),
	}
	if state.Clock != nil {
		sync.Strikes = state.Clock.Snapshot()
	}
	dispatcher.BroadcastMessage(OpSyncResponse, mustMarshal(sync), []runtime.Presence{p}, nil, true)
}

// tickClock runs the turn clock off the match tick. The expiring player's
// absence does not matter: the server records the timeout on its own.
func (mh *matchHandler) tickClock(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.Phase != domain.PhaseInProgress || state.TurnDeadlineTick == 0 || state.Tick < state.TurnDeadlineTick {
		return
	}

	owner := mh.turnOwner(state)
	mv := domain.NewTimeoutMove(state.Match.ID, state.AppliedSeq+1, owner, mh.now().UTC())
	mh.commitMove(state, dispatcher, mv)

	strikes := state.Clock.Strike(owner)
	logger.Info("tickClock: %s missed their turn (strike %d).", owner, strikes)

	if strikes >= domain.MaxStrikes {
		mh.forfeit(ctx, state, dispatcher, logger, owner, domain.ReasonTimeoutForfeit)
		return
	}

	state.Game = state.Rules.SkipTurn(state.Game, owner)
	mh.skipEliminated(state)
	mh.armClock(state)

	ev := turnSkippedEvent{Player: owner, Strikes: strikes, TurnOwner: mh.turnOwner(state)}
	dispatcher.BroadcastMessage(OpTurnSkipped, mustMarshal(ev), nil, nil, true)
}

// forfeit removes a player from the running game. With two players left the
// game ends; with more, the player is eliminated and play continues.
func (mh *matchHandler) forfeit(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, player string, reason domain.EndReason) {
	active := state.activePlayers()
	if len(active) <= 2 {
		winner := ""
		for _, p := range active {
			if p != player {
				winner = p
				break
			}
		}
		mh.gameOver(ctx, state, dispatcher, logger, winner, reason)
		return
	}

	state.Eliminated[player] = true
	ev := protocol.EliminationPayload{Player: player, Reason: reason}
	dispatcher.BroadcastMessage(OpElimination, mustMarshal(ev), nil, nil, true)
	logger.Info("forfeit: %s eliminated (%s), %d players remain.", player, reason, len(active)-1)

	if mh.turnOwner(state) == player {
		state.Game = state.Rules.SkipTurn(state.Game, player)
	}
	mh.skipEliminated(state)

	if remaining := state.activePlayers(); len(remaining) == 1 {
		mh.gameOver(ctx, state, dispatcher, logger, remaining[0], reason)
		return
	}
	mh.armClock(state)
}

// skipEliminated advances the rules' turn pointer past eliminated players.
func (mh *matchHandler) skipEliminated(state *MatchState) {
	for i := 0; i < len(state.Match.Players); i++ {
		owner := mh.turnOwner(state)
		if !state.Eliminated[owner] {
			return
		}
		state.Game = state.Rules.SkipTurn(state.Game, owner)
	}
}

// armClock resets the deadline for whoever owns the turn now.
func (mh *matchHandler) armClock(state *MatchState) {
	if state.Phase != domain.PhaseInProgress {
		return
	}
	state.Clock.ResetTurn(mh.turnOwner(state))
	state.TurnDeadlineTick = state.Tick + state.TurnTicks
}

func (mh *matchHandler) gameOver(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, winner string, reason domain.EndReason) {
	state.Phase = domain.PhaseGameOver
	state.Winner = winner
	state.Reason = reason
	state.TurnDeadlineTick = 0
	state.GamesPlayed++

	ev := gameOverEvent{Winner: winner, Reason: reason}
	dispatcher.BroadcastMessage(OpGameOver, mustMarshal(ev), nil, nil, true)
	logger.Info("gameOver: Game %s over, winner=%q reason=%s.", state.Match.ID, winner, reason)

	// Back to lobby so the room can host a rematch.
	mh.updateLabel(state, dispatcher, logger)

	if state.Settlement == nil || state.Stake <= 0 || winner == "" {
		return
	}
	losers := make([]string, 0, len(state.Match.Players))
	for _, p := range state.Match.Players {
		if p != winner {
			losers = append(losers, p)
		}
	}
	result := ports.SettlementResult{
		MatchID: state.Match.ID,
		Winner:  winner,
		Reason:  reason,
		Stake:   state.Stake,
		Losers:  losers,
	}
	if err := state.Settlement.Settle(ctx, result); err != nil {
		// The game result stands; clients hear about the void pot
		// separately from the result they already received.
		logger.Error("gameOver: Settlement failed for %s: %v", state.Match.ID, err)
		dispatcher.BroadcastMessage(OpSettlementVoid, mustMarshal(settlementVoidEvent{
			Match:  state.Match.ID,
			Winner: winner,
			Error:  err.Error(),
		}), nil, nil, true)
	}
}

func (mh *matchHandler) turnOwner(state *MatchState) string {
	if state.Game == nil {
		return ""
	}
	return state.Rules.TurnOwner(state.Game)
}

func (mh *matchHandler) broadcastMatchState(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	seats := make([]seatInfo, 0, len(state.Seats))
	for i, userId := range state.Seats {
		if userId == "" {
			continue
		}
		displayName := userId
		p, connected := state.Presences[userId]
		if connected {
			displayName = p.GetUsername()
		}
		seats = append(seats, seatInfo{
			UserID:      userId,
			Seat:        i,
			IsOwner:     i == state.OwnerSeat,
			DisplayName: displayName,
			Connected:   connected,
			Eliminated:  state.Eliminated[userId],
		})
	}

	ev := matchStateEvent{
		Seats:      seats,
		OwnerSeat:  state.OwnerSeat,
		Phase:      state.Phase,
		TurnOwner:  mh.turnOwner(state),
		AppliedSeq: state.AppliedSeq,
	}
	dispatcher.BroadcastMessage(OpMatchState, mustMarshal(ev), nil, nil, true)
}

// sendError sends a gameErrorEvent to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}
	ev := gameErrorEvent{Code: code, Message: message}
	dispatcher.BroadcastMessage(OpGameError, mustMarshal(ev), []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) labelFor(state *MatchState) matchLabel {
	phase := "lobby"
	if state.Phase == domain.PhaseInProgress {
		phase = "playing"
	}
	return matchLabel{
		Open:  state.GetOpenSeatsCount(),
		Phase: phase,
		Game:  string(state.Kind),
		Mode:  string(state.Mode),
		Tier:  state.Tier,
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := mh.labelFor(state).encode()
	if err != nil {
		logger.Error("updateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("updateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
