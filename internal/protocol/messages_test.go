package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"turnsync/internal/domain"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	mv := domain.Move{
		MatchID:   "m1",
		Seq:       3,
		Player:    "alice",
		Payload:   []byte(`{"action":"pass"}`),
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	env, err := New("m1", KindMove, "alice", MovePayload{Move: mv})
	require.NoError(t, err)
	require.Equal(t, Version, env.Ver)
	require.Equal(t, KindMove, env.Kind)

	var got MovePayload
	require.NoError(t, env.Decode(&got))
	require.Equal(t, mv, got.Move)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	env := Envelope{Kind: KindSyncRequest, Data: []byte(`{"fromSeq":"not-a-number"}`)}
	var p SyncRequestPayload
	require.Error(t, env.Decode(&p))
}

func TestSchemasCoverEveryKind(t *testing.T) {
	schemas := Schemas()
	for _, kind := range []Kind{
		KindMove, KindResign, KindChat,
		KindRematchPropose, KindRematchAccept, KindRematchDecline, KindRematchReady,
		KindElimination, KindSyncRequest, KindSyncResponse,
	} {
		require.Contains(t, schemas, string(kind), "missing schema for %s", kind)
	}
	require.Contains(t, schemas, "envelope")

	doc, err := MarshalSchemas()
	require.NoError(t, err)
	again, err := MarshalSchemas()
	require.NoError(t, err)
	require.Equal(t, string(doc), string(again), "schema export must be deterministic")
}
