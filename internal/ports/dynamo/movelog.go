// Package dynamo backs the durable ports with DynamoDB for serverless
// relay deployments. Everything lives in one table: move items under
// MATCH#<id> partitions keyed by zero-padded sequence, and one session item
// per match.
package dynamo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// DefaultPollInterval paces the Subscribe change feed.
const DefaultPollInterval = time.Second

func matchPK(matchID string) string { return fmt.Sprintf("MATCH#%s", matchID) }

// moveSK zero-pads the sequence so lexicographic sort key order equals
// numeric sequence order.
func moveSK(seq uint64, player string) string {
	return fmt.Sprintf("MOVE#%012d#%s", seq, player)
}

type moveItem struct {
	PK        string
	SK        string
	Type      string
	MatchID   string
	Seq       uint64
	Player    string
	Payload   []byte
	CreatedAt time.Time
}

// MoveLog implements ports.MoveLog on DynamoDB. Idempotence uses a
// conditional put on the (PK, SK) key.
type MoveLog struct {
	d     dynamodbiface.DynamoDBAPI
	table string
	poll  time.Duration
}

// NewMoveLog builds a log on the given table. pollInterval <= 0 uses the
// default.
func NewMoveLog(d dynamodbiface.DynamoDBAPI, table string, pollInterval time.Duration) *MoveLog {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MoveLog{d: d, table: table, poll: pollInterval}
}

// SubmitMove implements ports.MoveLog.
func (l *MoveLog) SubmitMove(ctx context.Context, mv domain.Move) error {
	item := moveItem{
		PK:        matchPK(mv.MatchID),
		SK:        moveSK(mv.Seq, mv.Player),
		Type:      "MoveItem",
		MatchID:   mv.MatchID,
		Seq:       mv.Seq,
		Player:    mv.Player,
		Payload:   mv.Payload,
		CreatedAt: mv.CreatedAt.UTC(),
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamo: marshal move: %w", err)
	}

	_, err = l.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return nil
	}
	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != dynamodb.ErrCodeConditionalCheckFailedException {
		return fmt.Errorf("dynamo: submit move: %w", err)
	}

	// The key exists. Distinguish a replay from a conflicting write.
	existing, err := l.getMove(ctx, mv.MatchID, mv.Seq, mv.Player)
	if err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, mv.Payload) {
		return ports.ErrMoveConflict
	}
	return nil
}

func (l *MoveLog) getMove(ctx context.Context, matchID string, seq uint64, player string) (moveItem, error) {
	out, err := l.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(matchPK(matchID))},
			"SK": {S: aws.String(moveSK(seq, player))},
		},
	})
	if err != nil {
		return moveItem{}, fmt.Errorf("dynamo: get move: %w", err)
	}
	var item moveItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return moveItem{}, fmt.Errorf("dynamo: decode move: %w", err)
	}
	return item, nil
}

// Moves implements ports.MoveLog.
func (l *MoveLog) Moves(ctx context.Context, matchID string, afterSeq uint64) ([]domain.Move, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(matchPK(matchID))},
			":lo": {S: aws.String(moveSK(afterSeq+1, ""))},
			":hi": {S: aws.String("MOVE#~")},
		},
	}

	var out []domain.Move
	for {
		page, err := l.d.QueryWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("dynamo: query moves: %w", err)
		}
		for _, av := range page.Items {
			var item moveItem
			if err := dynamodbattribute.UnmarshalMap(av, &item); err != nil {
				return nil, fmt.Errorf("dynamo: decode move: %w", err)
			}
			out = append(out, domain.Move{
				MatchID:   item.MatchID,
				Seq:       item.Seq,
				Player:    item.Player,
				Payload:   item.Payload,
				CreatedAt: item.CreatedAt,
			})
		}
		if page.LastEvaluatedKey == nil {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

// Subscribe implements ports.MoveLog: catch-up replay followed by a polled
// live stream. Conflicting writes to an already-delivered sequence are
// never re-delivered; the engine has applied that sequence anyway.
func (l *MoveLog) Subscribe(ctx context.Context, matchID string, afterSeq uint64) (<-chan domain.Move, error) {
	ch := make(chan domain.Move, 64)
	go func() {
		defer close(ch)
		cursor := afterSeq
		ticker := time.NewTicker(l.poll)
		defer ticker.Stop()
		for {
			batch, err := l.Moves(ctx, matchID, cursor)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
			} else {
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
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
