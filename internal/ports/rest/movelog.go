// Package rest implements ports.MoveLog against the relay HTTP API, for
// clients that do not embed a database of their own.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// DefaultPollInterval paces the Subscribe change feed.
const DefaultPollInterval = time.Second

// MoveLog is a relay-backed ports.MoveLog.
type MoveLog struct {
	baseURL string // e.g. http://relay.example.com
	token   string
	client  *http.Client
	poll    time.Duration
}

// NewMoveLog builds a client for the relay at baseURL. A nil httpClient
// uses a default with a sane timeout; pollInterval <= 0 uses the default.
func NewMoveLog(baseURL, token string, httpClient *http.Client, pollInterval time.Duration) *MoveLog {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MoveLog{baseURL: baseURL, token: token, client: httpClient, poll: pollInterval}
}

// SubmitMove implements ports.MoveLog. A 409 from the relay maps back to
// ErrMoveConflict.
func (l *MoveLog) SubmitMove(ctx context.Context, mv domain.Move) error {
	body, err := json.Marshal(mv)
	if err != nil {
		return fmt.Errorf("rest: encode move: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/matches/%s/moves", l.baseURL, mv.MatchID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("rest: submit move: %w", err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusConflict:
		return ports.ErrMoveConflict
	default:
		return fmt.Errorf("rest: submit move: relay returned %s", resp.Status)
	}
}

// Moves implements ports.MoveLog.
func (l *MoveLog) Moves(ctx context.Context, matchID string, afterSeq uint64) ([]domain.Move, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/matches/%s/moves?after=%d", l.baseURL, matchID, afterSeq), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+l.token)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest: list moves: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rest: list moves: relay returned %s", resp.Status)
	}

	var moves []domain.Move
	if err := json.NewDecoder(resp.Body).Decode(&moves); err != nil {
		return nil, fmt.Errorf("rest: decode moves: %w", err)
	}
	return moves, nil
}

// Subscribe implements ports.MoveLog by polling the list endpoint.
func (l *MoveLog) Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error) {
	ch := make(chan domain.Move, 64)
	go func() {
		defer close(ch)
		cursor := afterSeq
		ticker := time.NewTicker(l.poll)
		defer ticker.Stop()
		for {
			batch, err := l.Moves(ctx, matchID, cursor)
			if err == nil {
				for _, mv := range batch {
					select {
					case ch <- mv:
						if mv.Seq > cursor {
							cursor = mv.Seq
						}
					case <-ctx.Done():
						return
					}
				}
			} else if ctx.Err() != nil {
				return
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

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
