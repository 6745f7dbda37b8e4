// Package relay hosts the self-hosted fallback server: a websocket room per
// match for live traffic plus a small HTTP API over the durable move log.
// It carries opaque envelopes only and never interprets game payloads.
package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"turnsync/internal/protocol"
)

const writeWait = 10 * time.Second

// client is one websocket attachment. Writes are serialized per connection.
type client struct {
	conn   *websocket.Conn
	player string
	mu     sync.Mutex
}

func (c *client) send(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(env)
}

// Hub tracks the websocket room of every live match. A player reconnecting
// replaces their previous attachment.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]*client
	log   zerolog.Logger
}

// NewHub builds an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*client),
		log:   log,
	}
}

// Join attaches a player connection to a match room and returns the client
// handle used by Leave.
func (h *Hub) Join(matchID, player string, conn *websocket.Conn) *client {
	c := &client{conn: conn, player: player}

	h.mu.Lock()
	room := h.rooms[matchID]
	if room == nil {
		room = make(map[string]*client)
		h.rooms[matchID] = room
	}
	prev := room[player]
	room[player] = c
	h.mu.Unlock()

	if prev != nil {
		prev.conn.Close()
	}
	h.log.Info().Str("match", matchID).Str("player", player).Msg("joined room")
	return c
}

// Leave detaches a client. A newer attachment for the same player stays.
func (h *Hub) Leave(matchID string, c *client) {
	h.mu.Lock()
	if room := h.rooms[matchID]; room != nil && room[c.player] == c {
		delete(room, c.player)
		if len(room) == 0 {
			delete(h.rooms, matchID)
		}
	}
	h.mu.Unlock()
	h.log.Info().Str("match", matchID).Str("player", c.player).Msg("left room")
}

// Forward delivers an envelope to its room, honoring targeted delivery and
// never echoing to the sender. Delivery is best effort; a dead peer is
// dropped on write failure.
func (h *Hub) Forward(matchID string, env protocol.Envelope) {
	h.mu.Lock()
	peers := make([]*client, 0, len(h.rooms[matchID]))
	for player, c := range h.rooms[matchID] {
		if player == env.From {
			continue
		}
		if env.To != "" && env.To != player {
			continue
		}
		peers = append(peers, c)
	}
	h.mu.Unlock()

	for _, c := range peers {
		if err := c.send(env); err != nil {
			h.log.Debug().Err(err).Str("match", matchID).Str("player", c.player).Msg("forward failed")
			c.conn.Close()
		}
	}
}
