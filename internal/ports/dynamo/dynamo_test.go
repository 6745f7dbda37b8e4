package dynamo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/stretchr/testify/require"

	"turnsync/internal/domain"
	"turnsync/internal/ports"
)

// fakeDynamo implements the subset of the DynamoDB API the adapters use:
// conditional puts, consistent gets and key-range queries over one table.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	mu    sync.Mutex
	items map[string]map[string]*dynamodb.AttributeValue // PK|SK -> item
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]*dynamodb.AttributeValue)}
}

func itemKey(item map[string]*dynamodb.AttributeValue) string {
	return aws.StringValue(item["PK"].S) + "|" + aws.StringValue(item["SK"].S)
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := itemKey(in.Item)
	if aws.StringValue(in.ConditionExpression) == "attribute_not_exists(PK)" {
		if _, exists := f.items[key]; exists {
			return nil, awserr.New(dynamodb.ErrCodeConditionalCheckFailedException, "exists", nil)
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.StringValue(in.Key["PK"].S) + "|" + aws.StringValue(in.Key["SK"].S)
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeDynamo) DeleteItemWithContext(_ aws.Context, in *dynamodb.DeleteItemInput, _ ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.StringValue(in.Key["PK"].S) + "|" + aws.StringValue(in.Key["SK"].S)
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) QueryWithContext(_ aws.Context, in *dynamodb.QueryInput, _ ...request.Option) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := aws.StringValue(in.ExpressionAttributeValues[":pk"].S)
	lo := aws.StringValue(in.ExpressionAttributeValues[":lo"].S)
	hi := aws.StringValue(in.ExpressionAttributeValues[":hi"].S)

	var keys []string
	for key := range f.items {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] == pk && parts[1] >= lo && parts[1] <= hi {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &dynamodb.QueryOutput{}
	for _, key := range keys {
		out.Items = append(out.Items, f.items[key])
	}
	return out, nil
}

func mkMove(matchID string, seq uint64, player, payload string) domain.Move {
	return domain.Move{
		MatchID:   matchID,
		Seq:       seq,
		Player:    player,
		Payload:   []byte(payload),
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestMoveLogIdempotenceAndConflict(t *testing.T) {
	log := NewMoveLog(newFakeDynamo(), "turnsync", 10*time.Millisecond)
	ctx := context.Background()

	mv := mkMove("m1", 1, "alice", `{"n":1}`)
	require.NoError(t, log.SubmitMove(ctx, mv))
	require.NoError(t, log.SubmitMove(ctx, mv), "identical resubmission is a no-op")

	conflicting := mv
	conflicting.Payload = []byte(`{"n":9}`)
	require.ErrorIs(t, log.SubmitMove(ctx, conflicting), ports.ErrMoveConflict)
}

func TestMoveLogQueryOrdering(t *testing.T) {
	log := NewMoveLog(newFakeDynamo(), "turnsync", 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, log.SubmitMove(ctx, mkMove("m1", 12, "bob", `{"n":12}`)))
	require.NoError(t, log.SubmitMove(ctx, mkMove("m1", 2, "alice", `{"n":2}`)))
	require.NoError(t, log.SubmitMove(ctx, mkMove("m1", 1, "bob", `{"n":1}`)))
	require.NoError(t, log.SubmitMove(ctx, mkMove("m2", 1, "carol", `{"n":1}`)))

	moves, err := log.Moves(ctx, "m1", 0)
	require.NoError(t, err)
	require.Len(t, moves, 3)
	require.Equal(t, uint64(1), moves[0].Seq)
	require.Equal(t, uint64(2), moves[1].Seq)
	require.Equal(t, uint64(12), moves[2].Seq, "sequence 12 must sort after 2, not between 1 and 2")

	tail, err := log.Moves(ctx, "m1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, uint64(12), tail[0].Seq)
}

func TestMoveLogSubscribe(t *testing.T) {
	log := NewMoveLog(newFakeDynamo(), "turnsync", 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, log.SubmitMove(ctx, mkMove("m1", 1, "alice", `{"n":1}`)))

	ch, err := log.Subscribe(ctx, "m1", 0)
	require.NoError(t, err)

	recv := func() domain.Move {
		select {
		case mv := <-ch:
			return mv
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscribed move")
			return domain.Move{}
		}
	}
	require.Equal(t, uint64(1), recv().Seq)

	require.NoError(t, log.SubmitMove(ctx, mkMove("m1", 2, "bob", `{"n":2}`)))
	require.Equal(t, uint64(2), recv().Seq)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(newFakeDynamo(), "turnsync")
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	require.False(t, ok)

	rec := ports.SessionRecord{
		MatchID:   "m1",
		Blob:      []byte(`{"state":1}`),
		TurnOwner: "alice",
		Status:    domain.PhaseInProgress,
		SavedAt:   time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, ok, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.Blob, got.Blob)
	require.Equal(t, rec.Status, got.Status)

	require.NoError(t, store.Delete(ctx, "m1"))
	_, ok, err = store.Load(ctx, "m1")
	require.NoError(t, err)
	require.False(t, ok)
}
