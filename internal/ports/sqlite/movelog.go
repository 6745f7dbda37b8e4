package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// DefaultPollInterval paces the Subscribe change feed. SQLite has no push
// notification, so subscribers poll on rowid.
const DefaultPollInterval = 500 * time.Millisecond

// MoveLog implements ports.MoveLog on SQLite. Idempotence rides on the
// (match_id, seq, player) primary key; equal sequences order by rowid, so
// every reader sees the same winner of a submission race.
type MoveLog struct {
	db   *sql.DB
	poll time.Duration
}

// NewMoveLog wraps an opened database. pollInterval <= 0 uses the default.
func NewMoveLog(db *sql.DB, pollInterval time.Duration) *MoveLog {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MoveLog{db: db, poll: pollInterval}
}

// SubmitMove implements ports.MoveLog. Replaying a recorded move is a
// no-op; reusing its key with a different payload is a conflict.
func (l *MoveLog) SubmitMove(ctx context.Context, mv domain.Move) error {
	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO moves (match_id, seq, player, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		mv.MatchID, int64(mv.Seq), mv.Player, []byte(mv.Payload), mv.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: submit move: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var existing []byte
	err = l.db.QueryRowContext(ctx,
		`SELECT payload FROM moves WHERE match_id=? AND seq=? AND player=?`,
		mv.MatchID, int64(mv.Seq), mv.Player,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("sqlite: verify move: %w", err)
	}
	if !bytes.Equal(existing, mv.Payload) {
		return ports.ErrMoveConflict
	}
	return nil
}

// Moves implements ports.MoveLog.
func (l *MoveLog) Moves(ctx context.Context, matchID string, afterSeq uint64) ([]domain.Move, error) {
	moves, _, err := l.movesAfter(ctx, matchID, afterSeq, 0)
	return moves, err
}

// movesAfter returns moves past both cursors along with the highest rowid
// seen, for the subscription feed.
func (l *MoveLog) movesAfter(ctx context.Context, matchID string, afterSeq uint64, afterRow int64) ([]domain.Move, int64, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT rowid, seq, player, payload, created_at
		FROM moves
		WHERE match_id=? AND seq>? AND rowid>?
		ORDER BY seq, rowid`,
		matchID, int64(afterSeq), afterRow,
	)
	if err != nil {
		return nil, afterRow, fmt.Errorf("sqlite: list moves: %w", err)
	}
	defer rows.Close()

	var out []domain.Move
	maxRow := afterRow
	for rows.Next() {
		var (
			rowid int64
			seq   int64
			mv    domain.Move
		)
		if err := rows.Scan(&rowid, &seq, &mv.Player, (*[]byte)(&mv.Payload), &mv.CreatedAt); err != nil {
			return nil, afterRow, err
		}
		mv.MatchID = matchID
		mv.Seq = uint64(seq)
		out = append(out, mv)
		if rowid > maxRow {
			maxRow = rowid
		}
	}
	return out, maxRow, rows.Err()
}

// Subscribe implements ports.MoveLog: catch-up replay followed by a polled
// live stream.
func (l *MoveLog) Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error) {
	ch := make(chan domain.Move, 64)
	go func() {
		defer close(ch)
		var (
			cursorSeq = afterSeq
			cursorRow int64
		)
		ticker := time.NewTicker(l.poll)
		defer ticker.Stop()
		for {
			batch, maxRow, err := l.movesAfter(ctx, matchID, cursorSeq, cursorRow)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
			} else {
				cursorRow = maxRow
				for _, mv := range batch {
					select {
					case ch <- mv:
						if mv.Seq > cursorSeq {
							cursorSeq = mv.Seq
						}
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
