package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// InviteStore implements ports.InviteStore on SQLite. The new match is
// stored as a JSON blob since the store never queries inside it.
type InviteStore struct {
	db *sql.DB
}

// NewInviteStore wraps an opened database.
func NewInviteStore(db *sql.DB) *InviteStore {
	return &InviteStore{db: db}
}

// PutInvite implements ports.InviteStore.
func (s *InviteStore) PutInvite(ctx context.Context, inv ports.RematchInvite) error {
	blob, err := json.Marshal(inv.NewMatch)
	if err != nil {
		return fmt.Errorf("sqlite: encode invite: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO invites (proposal_id, old_match_id, proposer, new_match, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		inv.ProposalID, inv.OldMatchID, inv.Proposer, blob, inv.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put invite: %w", err)
	}
	return nil
}

// PendingInvites implements ports.InviteStore.
func (s *InviteStore) PendingInvites(ctx context.Context, player string) ([]ports.RematchInvite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT proposal_id, old_match_id, proposer, new_match, created_at
		FROM invites
		WHERE resolved=0 AND proposer<>?
		ORDER BY created_at`,
		player,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: pending invites: %w", err)
	}
	defer rows.Close()

	var out []ports.RematchInvite
	for rows.Next() {
		var (
			inv  ports.RematchInvite
			blob []byte
		)
		if err := rows.Scan(&inv.ProposalID, &inv.OldMatchID, &inv.Proposer, &blob, &inv.CreatedAt); err != nil {
			return nil, err
		}
		var m domain.Match
		if err := json.Unmarshal(blob, &m); err != nil {
			continue
		}
		inv.NewMatch = m
		if inv.NewMatch.HasPlayer(player) {
			out = append(out, inv)
		}
	}
	return out, rows.Err()
}

// ResolveInvite implements ports.InviteStore.
func (s *InviteStore) ResolveInvite(ctx context.Context, proposalID string, _ bool) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE invites SET resolved=1 WHERE proposal_id=?`, proposalID); err != nil {
		return fmt.Errorf("sqlite: resolve invite: %w", err)
	}
	return nil
}
