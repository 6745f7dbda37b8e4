package nakama

const (
	// RpcQuickMatch is the Nakama RPC id clients call to find or create an
	// open match.
	RpcQuickMatch = "quick_match"

	// RpcCreateMatch is the Nakama RPC id for creating a private,
	// invite-only match.
	RpcCreateMatch = "create_match"

	// MatchNameTurnSync is the authoritative match handler name registered
	// with Nakama.
	MatchNameTurnSync = "turnsync_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartGame   int64 = 1
	OpMove        int64 = 2
	OpResign      int64 = 3
	OpChat        int64 = 4
	OpSyncRequest int64 = 5

	// Server -> Client events
	OpMatchState     int64 = 101
	OpGameStarted    int64 = 102
	OpMoveApplied    int64 = 103
	OpTurnSkipped    int64 = 104
	OpElimination    int64 = 105
	OpGameOver       int64 = 106
	OpChatRelay      int64 = 107
	OpSyncResponse   int64 = 108
	OpGameError      int64 = 109
	OpSettlementVoid int64 = 110
)

// StartingBalance is granted to freshly created accounts so they can enter
// staked matches immediately.
const StartingBalance int64 = 1000

// WalletCurrency is the single soft-currency key used in Nakama wallets.
const WalletCurrency = "coins"
