// Package ws implements ports.Transport over a websocket connection to a
// relay room. The transport reconnects forever with capped backoff; while
// down, gameplay continues through the durable log and sends report
// ErrNotConnected.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 15 * time.Second
)

// Transport is a relay-backed ports.Transport.
type Transport struct {
	baseURL string // e.g. ws://relay.example.com
	token   string
	logger  zerolog.Logger

	mu      sync.Mutex
	wmu     sync.Mutex // serializes writes to the active conn
	conn    *websocket.Conn
	state   ports.ConnState
	matchID string
	closed  bool

	recv   chan protocol.Envelope
	states chan ports.ConnState
}

// New builds a transport against the relay at baseURL, authenticating with
// the given bearer token.
func New(baseURL, token string, logger zerolog.Logger) *Transport {
	return &Transport{
		baseURL: baseURL,
		token:   token,
		logger:  logger,
		state:   ports.StateDisconnected,
		recv:    make(chan protocol.Envelope, 256),
		states:  make(chan ports.ConnState, 8),
	}
}

// Connect implements ports.Transport. It returns once the first dial
// attempt resolves; the maintain loop keeps redialing in the background
// either way.
func (t *Transport) Connect(ctx context.Context, matchID, _ string, _ []string) error {
	t.mu.Lock()
	t.matchID = matchID
	t.mu.Unlock()

	err := t.dial(ctx)
	go t.maintain(ctx)
	return err
}

func (t *Transport) roomURL() (string, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return "", fmt.Errorf("ws: parse relay url: %w", err)
	}
	t.mu.Lock()
	matchID := t.matchID
	t.mu.Unlock()
	u.Path = "/ws/" + matchID
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (t *Transport) dial(ctx context.Context) error {
	t.setState(ports.StateConnecting)

	target, err := t.roomURL()
	if err != nil {
		t.setState(ports.StateDisconnected)
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		t.setState(ports.StateDisconnected)
		return fmt.Errorf("ws: dial relay: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return ports.ErrNotConnected
	}
	t.conn = conn
	t.mu.Unlock()
	t.setState(ports.StateConnected)

	go t.readPump(conn)
	return nil
}

// maintain redials whenever the connection drops, forever, with capped
// exponential backoff.
func (t *Transport) maintain(ctx context.Context) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t.mu.Lock()
		closed, connected := t.closed, t.conn != nil
		t.mu.Unlock()
		if closed {
			return
		}
		if connected {
			time.Sleep(initialBackoff)
			continue
		}

		if err := t.dial(ctx); err != nil {
			t.logger.Debug().Err(err).Dur("backoff", backoff).Msg("relay redial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff
	}
}

func (t *Transport) readPump(conn *websocket.Conn) {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
			}
			closed := t.closed
			t.mu.Unlock()
			conn.Close()
			if !closed {
				t.setState(ports.StateDisconnected)
			}
			return
		}
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		select {
		case t.recv <- env:
		default:
			// Receiver is stalled; the durable log covers the loss.
		}
		t.mu.Unlock()
	}
}

// Send implements ports.Transport.
func (t *Transport) Send(env protocol.Envelope) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ports.ErrNotConnected
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("ws: send: %w", err)
	}
	return nil
}

// Receive implements ports.Transport.
func (t *Transport) Receive() <-chan protocol.Envelope { return t.recv }

// StateChanges implements ports.Transport.
func (t *Transport) StateChanges() <-chan ports.ConnState { return t.states }

// State implements ports.Transport.
func (t *Transport) State() ports.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close implements ports.Transport.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	// Every channel send checks closed under this same lock, so closing
	// here cannot race an in-flight send.
	close(t.recv)
	close(t.states)
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}

func (t *Transport) setState(s ports.ConnState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state == s {
		return
	}
	t.state = s
	select {
	case t.states <- s:
	default:
	}
}
