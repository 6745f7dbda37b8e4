package nakama

import (
	"encoding/json"

	"turnsync/internal/domain"
)

// The hosted deployment speaks the same JSON payloads as the peer wire
// (protocol package) wherever one exists; the structs below cover the
// server-only events that have no peer equivalent.

// matchLabel is the indexed match listing document. Matchmaking queries
// filter on its keys.
type matchLabel struct {
	Open  int    `json:"open"`
	Phase string `json:"phase"` // "lobby" or "playing"
	Game  string `json:"game"`
	Mode  string `json:"mode"`
	Tier  string `json:"tier,omitempty"`
}

func (l matchLabel) encode() (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// seatInfo describes one occupied seat in a match state snapshot.
type seatInfo struct {
	UserID      string `json:"userId"`
	Seat        int    `json:"seat"`
	IsOwner     bool   `json:"isOwner"`
	DisplayName string `json:"displayName"`
	Connected   bool   `json:"connected"`
	Eliminated  bool   `json:"eliminated"`
}

// matchStateEvent is broadcast after every join and leave.
type matchStateEvent struct {
	Seats      []seatInfo   `json:"seats"`
	OwnerSeat  int          `json:"ownerSeat"`
	Phase      domain.Phase `json:"phase"`
	TurnOwner  string       `json:"turnOwner,omitempty"`
	AppliedSeq uint64       `json:"appliedSeq"`
}

// gameStartedEvent carries everything a client needs to derive its hidden
// state locally: the match record and the deterministic deal.
type gameStartedEvent struct {
	Match     domain.Match `json:"match"`
	Deal      domain.Deal  `json:"deal"`
	TurnOwner string       `json:"turnOwner"`
}

// moveAppliedEvent is broadcast for every accepted move, synthetic ones
// included.
type moveAppliedEvent struct {
	Move      domain.Move `json:"move"`
	TurnOwner string      `json:"turnOwner"`
}

// turnSkippedEvent announces a clock expiry that cost a turn but not the
// match.
type turnSkippedEvent struct {
	Player    string `json:"player"`
	Strikes   int    `json:"strikes"`
	TurnOwner string `json:"turnOwner"`
}

// gameOverEvent announces the terminal result. Winner is empty on a draw.
type gameOverEvent struct {
	Winner string           `json:"winner,omitempty"`
	Reason domain.EndReason `json:"reason"`
}

// settlementVoidEvent reports that the stake transfer failed after the game
// ended. The game result stands as broadcast; the pot is void until an
// operator reconciles the ledger.
type settlementVoidEvent struct {
	Match  string `json:"match"`
	Winner string `json:"winner,omitempty"`
	Error  string `json:"error"`
}

// chatRelayEvent carries a relayed table message, stamped with the
// authenticated sender.
type chatRelayEvent struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// gameErrorEvent is sent to the offending client only.
type gameErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// movePayload is the client move submission: just the rule payload. The
// server assigns the sequence number.
type movePayload struct {
	Payload json.RawMessage `json:"payload"`
}

func jsonUnmarshal(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All event types marshal cleanly; a failure is a programming error.
		panic(err)
	}
	return b
}
