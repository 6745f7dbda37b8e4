// Package protocol defines the JSON wire envelope shared by every transport:
// the direct peer channel, the relay hub, and the Nakama adapter. The
// envelope is deliberately self-describing so that side-channel traffic
// (chat, rematch handshakes, sync snapshots) rides the same pipe as moves.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"turnsync/internal/domain"
)

// Version of the wire format. Bumped on incompatible envelope changes.
const Version = 1

// Kind discriminates envelope payloads.
type Kind string

const (
	KindMove           Kind = "move"
	KindResign         Kind = "resign"
	KindChat           Kind = "chat"
	KindRematchPropose Kind = "rematch_propose"
	KindRematchAccept  Kind = "rematch_accept"
	KindRematchDecline Kind = "rematch_decline"
	KindRematchReady   Kind = "rematch_ready"
	KindElimination    Kind = "elimination"
	KindSyncRequest    Kind = "sync_request"
	KindSyncResponse   Kind = "sync_response"
)

// Envelope is the unit of transport delivery. Delivery is best-effort and
// at-least-once; receivers must dedupe moves on (seq, player).
type Envelope struct {
	Ver     int             `json:"ver"`
	MatchID string          `json:"matchId"`
	Kind    Kind            `json:"kind"`
	From    string          `json:"from"`
	To      string          `json:"to,omitempty"` // targeted delivery; empty broadcasts to the room
	Data    json.RawMessage `json:"data,omitempty"`
	SentAt  int64           `json:"sentAt"` // unix milliseconds, sender clock
}

// MovePayload carries one move.
type MovePayload struct {
	Move domain.Move `json:"move"`
}

// ResignPayload announces a resignation. The synthetic resign move in the
// durable log is authoritative; this message is the low-latency path.
type ResignPayload struct {
	Player string `json:"player"`
	Seq    uint64 `json:"seq"`
}

// ChatPayload is a free-form table message, relayed but never interpreted.
type ChatPayload struct {
	Text string `json:"text"`
}

// RematchProposePayload starts the rematch handshake.
type RematchProposePayload struct {
	ProposalID string       `json:"proposalId"`
	NewMatch   domain.Match `json:"newMatch"`
}

// RematchReplyPayload answers a proposal.
type RematchReplyPayload struct {
	ProposalID string `json:"proposalId"`
}

// RematchReadyPayload is broadcast once every player accepted; all clients
// navigate to the new match together.
type RematchReadyPayload struct {
	ProposalID string       `json:"proposalId"`
	NewMatch   domain.Match `json:"newMatch"`
}

// EliminationPayload notifies that a player struck out of a multiplayer
// match that continues without them.
type EliminationPayload struct {
	Player string           `json:"player"`
	Reason domain.EndReason `json:"reason"`
}

// SyncRequestPayload asks a peer for everything after FromSeq. Sent by late
// joiners and reconnecting clients.
type SyncRequestPayload struct {
	FromSeq uint64 `json:"fromSeq"`
}

// SyncResponsePayload is a full catch-up snapshot from a peer that is ahead.
type SyncResponsePayload struct {
	Moves     []domain.Move  `json:"moves"`
	Phase     domain.Phase   `json:"phase"`
	TurnOwner string         `json:"turnOwner"`
	Strikes   map[string]int `json:"strikes,omitempty"`
}

// New builds an envelope with the payload marshalled in.
func New(matchID string, kind Kind, from string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", kind, err)
	}
	return Envelope{
		Ver:     Version,
		MatchID: matchID,
		Kind:    kind,
		From:    from,
		Data:    raw,
		SentAt:  time.Now().UnixMilli(),
	}, nil
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", e.Kind, err)
	}
	return nil
}
