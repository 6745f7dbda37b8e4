// Package memory provides in-process implementations of the engine ports.
// They back casual same-host play and the test suite; durable deployments
// use the sqlite or dynamo packages instead.
package memory

import (
	"context"
	"sync"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// MoveLog is an in-memory, idempotent, replayable move ledger.
type MoveLog struct {
	mu    sync.Mutex
	cond  *sync.Cond
	moves map[string][]domain.Move
	byKey map[string]map[domain.MoveKey]domain.Move
}

// NewMoveLog builds an empty log.
func NewMoveLog() *MoveLog {
	l := &MoveLog{
		moves: make(map[string][]domain.Move),
		byKey: make(map[string]map[domain.MoveKey]domain.Move),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// SubmitMove implements ports.MoveLog. Resubmitting a recorded move is a
// no-op; reusing its key with a different payload is a conflict.
func (l *MoveLog) SubmitMove(_ context.Context, mv domain.Move) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := l.byKey[mv.MatchID]
	if keys == nil {
		keys = make(map[domain.MoveKey]domain.Move)
		l.byKey[mv.MatchID] = keys
	}
	if existing, ok := keys[mv.Key()]; ok {
		if existing.SamePayload(mv) {
			return nil
		}
		return ports.ErrMoveConflict
	}
	keys[mv.Key()] = mv

	// Insert keeping sequence order; equal sequences keep arrival order so
	// every subscriber observes the same winner of a submission race.
	ms := l.moves[mv.MatchID]
	pos := len(ms)
	for pos > 0 && ms[pos-1].Seq > mv.Seq {
		pos--
	}
	ms = append(ms, domain.Move{})
	copy(ms[pos+1:], ms[pos:])
	ms[pos] = mv
	l.moves[mv.MatchID] = ms

	l.cond.Broadcast()
	return nil
}

// Moves implements ports.MoveLog.
func (l *MoveLog) Moves(_ context.Context, matchID string, afterSeq uint64) ([]domain.Move, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.movesAfterLocked(matchID, afterSeq), nil
}

func (l *MoveLog) movesAfterLocked(matchID string, afterSeq uint64) []domain.Move {
	var out []domain.Move
	for _, mv := range l.moves[matchID] {
		if mv.Seq > afterSeq {
			out = append(out, mv)
		}
	}
	return out
}

// Subscribe implements ports.MoveLog: catch-up replay followed by a live
// stream, all in sequence order.
func (l *MoveLog) Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error) {
	ch := make(chan domain.Move, 64)

	// Wake the waiter when the subscriber goes away.
	go func() {
		<-ctx.Done()
		l.cond.Broadcast()
	}()

	go func() {
		defer close(ch)
		cursor := afterSeq
		for {
			l.mu.Lock()
			var batch []domain.Move
			for {
				if ctx.Err() != nil {
					l.mu.Unlock()
					return
				}
				batch = l.movesAfterLocked(matchID, cursor)
				if len(batch) > 0 {
					break
				}
				l.cond.Wait()
			}
			l.mu.Unlock()

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
		}
	}()
	return ch, nil
}
