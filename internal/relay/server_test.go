package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"turnsync/internal/domain"
	"turnsync/internal/identity"
	"turnsync/internal/ports"
	"turnsync/internal/ports/memory"
	"turnsync/internal/ports/rest"
	"turnsync/internal/ports/ws"
	"turnsync/internal/protocol"
)

type relayRig struct {
	ts     *httptest.Server
	idp    *identity.Provider
	tokens map[string]string
}

func newRelayRig(t *testing.T) *relayRig {
	t.Helper()
	idp, err := identity.New("test-secret", "relay-test", time.Hour)
	require.NoError(t, err)

	srv := NewServer(memory.NewMoveLog(), idp, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	rig := &relayRig{ts: ts, idp: idp, tokens: make(map[string]string)}
	for _, p := range []string{"alice", "bob"} {
		tok, err := idp.IssueToken(p)
		require.NoError(t, err)
		rig.tokens[p] = tok
	}
	return rig
}

func (r *relayRig) wsURL() string {
	return "ws" + strings.TrimPrefix(r.ts.URL, "http")
}

func mkMove(matchID string, seq uint64, player, payload string) domain.Move {
	return domain.Move{
		MatchID:   matchID,
		Seq:       seq,
		Player:    player,
		Payload:   []byte(payload),
		CreatedAt: time.Now().UTC(),
	}
}

func TestMoveAPISubmitListAndConflict(t *testing.T) {
	rig := newRelayRig(t)
	ctx := context.Background()
	log := rest.NewMoveLog(rig.ts.URL, rig.tokens["alice"], nil, 50*time.Millisecond)

	mv := mkMove("m1", 1, "alice", `{"n":1}`)
	require.NoError(t, log.SubmitMove(ctx, mv))
	require.NoError(t, log.SubmitMove(ctx, mv), "replay is a no-op")

	conflicting := mv
	conflicting.Payload = []byte(`{"n":9}`)
	require.ErrorIs(t, log.SubmitMove(ctx, conflicting), ports.ErrMoveConflict)

	moves, err := log.Moves(ctx, "m1", 0)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	require.JSONEq(t, `{"n":1}`, string(moves[0].Payload))

	empty, err := log.Moves(ctx, "m1", 1)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMoveAPIRejectsForeignAndUnauthenticated(t *testing.T) {
	rig := newRelayRig(t)
	ctx := context.Background()

	// Alice cannot record Bob's game move.
	aliceLog := rest.NewMoveLog(rig.ts.URL, rig.tokens["alice"], nil, 0)
	err := aliceLog.SubmitMove(ctx, mkMove("m1", 1, "bob", `{"n":1}`))
	require.Error(t, err)

	// She can record his synthetic timeout, the watchdog path.
	timeout := domain.NewTimeoutMove("m1", 1, "bob", time.Now().UTC())
	require.NoError(t, aliceLog.SubmitMove(ctx, timeout))

	// A resignation is never accepted second-hand, synthetic or not.
	err = aliceLog.SubmitMove(ctx, domain.NewResignMove("m1", 2, "bob", time.Now().UTC()))
	require.Error(t, err)
	moves, err := aliceLog.Moves(ctx, "m1", 1)
	require.NoError(t, err)
	require.Empty(t, moves, "the forged resignation must not reach the log")

	// No token, no service.
	anonLog := rest.NewMoveLog(rig.ts.URL, "", nil, 0)
	require.Error(t, anonLog.SubmitMove(ctx, mkMove("m1", 2, "alice", `{"n":2}`)))
	_, err = anonLog.Moves(ctx, "m1", 0)
	require.Error(t, err)
}

func TestMoveAPISubscribeStreams(t *testing.T) {
	rig := newRelayRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := rest.NewMoveLog(rig.ts.URL, rig.tokens["alice"], nil, 20*time.Millisecond)

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

	bobLog := rest.NewMoveLog(rig.ts.URL, rig.tokens["bob"], nil, 20*time.Millisecond)
	require.NoError(t, bobLog.SubmitMove(ctx, mkMove("m1", 2, "bob", `{"n":2}`)))
	require.Equal(t, uint64(2), recv().Seq)
}

// Two websocket transports attached to the same room must exchange
// envelopes, with the sender identity enforced by the relay.
func TestWebsocketRoomRelaysEnvelopes(t *testing.T) {
	rig := newRelayRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := ws.New(rig.wsURL(), rig.tokens["alice"], zerolog.Nop())
	bob := ws.New(rig.wsURL(), rig.tokens["bob"], zerolog.Nop())
	require.NoError(t, alice.Connect(ctx, "m1", "alice", []string{"bob"}))
	require.NoError(t, bob.Connect(ctx, "m1", "bob", []string{"alice"}))
	defer alice.Close()
	defer bob.Close()

	env, err := protocol.New("m1", protocol.KindChat, "mallory", protocol.ChatPayload{Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, alice.Send(env))

	select {
	case got := <-bob.Receive():
		require.Equal(t, protocol.KindChat, got.Kind)
		require.Equal(t, "alice", got.From, "relay must stamp the authenticated sender")
		var chat protocol.ChatPayload
		require.NoError(t, got.Decode(&chat))
		require.Equal(t, "hello", chat.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the envelope")
	}

	// Nothing echoes back to the sender.
	select {
	case got := <-alice.Receive():
		t.Fatalf("unexpected echo to sender: %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

// Closing the transport while the peer is mid-burst must shut the receive
// stream down cleanly, not crash the reader.
func TestWebsocketCloseDuringInboundBurst(t *testing.T) {
	rig := newRelayRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := ws.New(rig.wsURL(), rig.tokens["alice"], zerolog.Nop())
	bob := ws.New(rig.wsURL(), rig.tokens["bob"], zerolog.Nop())
	require.NoError(t, alice.Connect(ctx, "m1", "alice", []string{"bob"}))
	require.NoError(t, bob.Connect(ctx, "m1", "bob", []string{"alice"}))
	defer alice.Close()

	go func() {
		for i := 0; i < 500; i++ {
			env, err := protocol.New("m1", protocol.KindChat, "alice", protocol.ChatPayload{Text: "spam"})
			if err != nil {
				return
			}
			if err := alice.Send(env); err != nil {
				return
			}
		}
	}()

	// Wait until at least one envelope is in flight, then slam the door.
	select {
	case <-bob.Receive():
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the first envelope")
	}
	require.NoError(t, bob.Close())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-bob.Receive():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("receive stream never closed after Close")
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	rig := newRelayRig(t)
	resp, err := http.Get(rig.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
