package memory

import (
	"context"
	"sync"

	"turnsync/internal/ports"
	"turnsync/internal/protocol"
)

// Network is an in-process message fabric connecting Transport endpoints of
// the same match. Tests use SetOffline to simulate a dropped peer link.
type Network struct {
	mu      sync.Mutex
	rooms   map[string]map[string]*Transport
	offline map[string]bool
}

// NewNetwork builds an empty fabric.
func NewNetwork() *Network {
	return &Network{
		rooms:   make(map[string]map[string]*Transport),
		offline: make(map[string]bool),
	}
}

// NewTransport returns an endpoint bound to this network.
func (n *Network) NewTransport() *Transport {
	return &Transport{
		net:    n,
		recv:   make(chan protocol.Envelope, 256),
		states: make(chan ports.ConnState, 8),
		state:  ports.StateDisconnected,
	}
}

// SetOffline detaches or reattaches a player's endpoints, simulating a
// silent disconnect. Messages to and from an offline player are dropped.
func (n *Network) SetOffline(playerID string, offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline[playerID] = offline
}

// Transport implements ports.Transport over the in-process fabric.
type Transport struct {
	net     *Network
	mu      sync.Mutex
	matchID string
	selfID  string
	recv    chan protocol.Envelope
	states  chan ports.ConnState
	state   ports.ConnState
	closed  bool
}

// Connect implements ports.Transport.
func (t *Transport) Connect(_ context.Context, matchID, selfID string, _ []string) error {
	t.net.mu.Lock()
	room := t.net.rooms[matchID]
	if room == nil {
		room = make(map[string]*Transport)
		t.net.rooms[matchID] = room
	}
	room[selfID] = t
	t.net.mu.Unlock()

	t.mu.Lock()
	t.matchID = matchID
	t.selfID = selfID
	t.mu.Unlock()

	t.setState(ports.StateConnecting)
	t.setState(ports.StateConnected)
	return nil
}

// Send implements ports.Transport. Delivery honors env.To when set and
// otherwise broadcasts to every other room member. Full peer buffers drop
// the message: best-effort by contract.
func (t *Transport) Send(env protocol.Envelope) error {
	t.mu.Lock()
	matchID, selfID, state := t.matchID, t.selfID, t.state
	t.mu.Unlock()
	if state != ports.StateConnected {
		return ports.ErrNotConnected
	}

	t.net.mu.Lock()
	defer t.net.mu.Unlock()
	if t.net.offline[selfID] {
		return ports.ErrNotConnected
	}
	for id, peer := range t.net.rooms[matchID] {
		if id == selfID || t.net.offline[id] {
			continue
		}
		if env.To != "" && env.To != id {
			continue
		}
		select {
		case peer.recv <- env:
		default:
		}
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
	matchID, selfID := t.matchID, t.selfID
	t.state = ports.StateDisconnected
	t.mu.Unlock()

	t.net.mu.Lock()
	if room := t.net.rooms[matchID]; room != nil && room[selfID] == t {
		delete(room, selfID)
	}
	t.net.mu.Unlock()

	close(t.recv)
	close(t.states)
	return nil
}

func (t *Transport) setState(s ports.ConnState) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.state = s
	t.mu.Unlock()
	select {
	case t.states <- s:
	default:
	}
}
