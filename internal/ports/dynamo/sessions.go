package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

const sessionSK = "SESSION"

type sessionItem struct {
	PK        string
	SK        string
	Type      string
	MatchID   string
	Blob      []byte
	TurnOwner string
	Status    string
	SavedAt   time.Time
}

// SessionStore implements ports.SessionStore on DynamoDB.
type SessionStore struct {
	d     dynamodbiface.DynamoDBAPI
	table string
}

// NewSessionStore builds a store on the given table.
func NewSessionStore(d dynamodbiface.DynamoDBAPI, table string) *SessionStore {
	return &SessionStore{d: d, table: table}
}

// Save implements ports.SessionStore. Puts are unconditional upserts.
func (s *SessionStore) Save(ctx context.Context, rec ports.SessionRecord) error {
	item := sessionItem{
		PK:        matchPK(rec.MatchID),
		SK:        sessionSK,
		Type:      "SessionItem",
		MatchID:   rec.MatchID,
		Blob:      rec.Blob,
		TurnOwner: rec.TurnOwner,
		Status:    string(rec.Status),
		SavedAt:   rec.SavedAt.UTC(),
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("dynamo: marshal session: %w", err)
	}
	if _, err := s.d.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamo: save session: %w", err)
	}
	return nil
}

// Load implements ports.SessionStore.
func (s *SessionStore) Load(ctx context.Context, matchID string) (ports.SessionRecord, bool, error) {
	out, err := s.d.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
		Key: map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(matchPK(matchID))},
			"SK": {S: aws.String(sessionSK)},
		},
	})
	if err != nil {
		return ports.SessionRecord{}, false, fmt.Errorf("dynamo: load session: %w", err)
	}
	if len(out.Item) == 0 {
		return ports.SessionRecord{}, false, nil
	}
	var item sessionItem
	if err := dynamodbattribute.UnmarshalMap(out.Item, &item); err != nil {
		return ports.SessionRecord{}, false, fmt.Errorf("dynamo: decode session: %w", err)
	}
	return ports.SessionRecord{
		MatchID:   item.MatchID,
		Blob:      item.Blob,
		TurnOwner: item.TurnOwner,
		Status:    domain.Phase(item.Status),
		SavedAt:   item.SavedAt,
	}, true, nil
}

// Delete implements ports.SessionStore.
func (s *SessionStore) Delete(ctx context.Context, matchID string) error {
	if _, err := s.d.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"PK": {S: aws.String(matchPK(matchID))},
			"SK": {S: aws.String(sessionSK)},
		},
	}); err != nil {
		return fmt.Errorf("dynamo: delete session: %w", err)
	}
	return nil
}
