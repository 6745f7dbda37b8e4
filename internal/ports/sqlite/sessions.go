package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// SessionStore implements ports.SessionStore on SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps an opened database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save implements ports.SessionStore.
func (s *SessionStore) Save(ctx context.Context, rec ports.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (match_id, blob, turn_owner, status, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(match_id) DO UPDATE SET
			blob=excluded.blob,
			turn_owner=excluded.turn_owner,
			status=excluded.status,
			saved_at=excluded.saved_at`,
		rec.MatchID, rec.Blob, rec.TurnOwner, string(rec.Status), rec.SavedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save session: %w", err)
	}
	return nil
}

// Load implements ports.SessionStore.
func (s *SessionStore) Load(ctx context.Context, matchID string) (ports.SessionRecord, bool, error) {
	rec := ports.SessionRecord{MatchID: matchID}
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT blob, turn_owner, status, saved_at FROM sessions WHERE match_id=?`,
		matchID,
	).Scan(&rec.Blob, &rec.TurnOwner, &status, &rec.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.SessionRecord{}, false, nil
	}
	if err != nil {
		return ports.SessionRecord{}, false, fmt.Errorf("sqlite: load session: %w", err)
	}
	rec.Status = domain.Phase(status)
	return rec, true, nil
}

// Delete implements ports.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, matchID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE match_id=?`, matchID); err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	return nil
}
