package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"

	"turnsync/internal/domain"
)

// QuickMatchResponse is the payload returned to clients when requesting a
// match.
type QuickMatchResponse struct {
	MatchID string `json:"match_id"`
	IsNew   bool   `json:"is_new"`
}

// CreateMatchRequest selects the game and stake bracket for a new match.
type CreateMatchRequest struct {
	Kind string `json:"kind"`
	Tier string `json:"tier"`
	Mode string `json:"mode"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcQuickMatch, rpcQuickMatch); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcCreateMatch, rpcCreateMatch)
}

// rpcQuickMatch finds an open lobby for the requested game, or creates one.
func rpcQuickMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	req := CreateMatchRequest{Kind: string(domain.KindDominoes)}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", fmt.Errorf("invalid quick_match payload: %w", err)
		}
	}

	// Filter on the label keys: at least one open seat, still in lobby,
	// same game.
	query := fmt.Sprintf("+label.open:>=1 +label.phase:lobby +label.mode:%s +label.game:%s", domain.ModeRanked, req.Kind)
	limit := 1
	authoritative := true
	minSize := 0
	maxSize := 4

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, query)
	if err != nil {
		logger.Error("rpcQuickMatch [User:%s]: Failed to list matches: %v", userId, err)
		return "", err
	}

	if len(matches) > 0 {
		matchId := matches[0].MatchId
		logger.Info("rpcQuickMatch [User:%s]: Found existing match %s", userId, matchId)
		return marshalResponse(QuickMatchResponse{MatchID: matchId, IsNew: false})
	}

	params := map[string]interface{}{
		"kind": req.Kind,
		"tier": req.Tier,
		"mode": string(domain.ModeRanked),
	}
	matchId, err := nk.MatchCreate(ctx, MatchNameTurnSync, params)
	if err != nil {
		logger.Error("rpcQuickMatch [User:%s]: Failed to create match: %v", userId, err)
		return "", err
	}

	logger.Info("rpcQuickMatch [User:%s]: Created new match %s", userId, matchId)
	return marshalResponse(QuickMatchResponse{MatchID: matchId, IsNew: true})
}

// rpcCreateMatch creates a private, invite-only match that never appears in
// quick-match listings.
func rpcCreateMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userId, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	req := CreateMatchRequest{Kind: string(domain.KindDominoes)}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", fmt.Errorf("invalid create_match payload: %w", err)
		}
	}

	params := map[string]interface{}{
		"kind": req.Kind,
		"tier": req.Tier,
		"mode": string(domain.ModePrivate),
	}
	matchId, err := nk.MatchCreate(ctx, MatchNameTurnSync, params)
	if err != nil {
		logger.Error("rpcCreateMatch [User:%s]: Failed to create match: %v", userId, err)
		return "", err
	}

	logger.Info("rpcCreateMatch [User:%s]: Created private match %s", userId, matchId)
	return marshalResponse(QuickMatchResponse{MatchID: matchId, IsNew: true})
}

func marshalResponse(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
