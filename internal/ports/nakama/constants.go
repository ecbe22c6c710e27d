package nakama

const (
	// RPC ids clients call through the Nakama API.
	RpcCreateGame = "create_game"
	RpcLockCard   = "lock_card"
	RpcUseSpecial = "use_special"
	RpcSurrender  = "surrender"
	RpcListGames  = "list_games"

	// MatchNameBataille is the authoritative match handler name registered with Nakama.
	MatchNameBataille = "bataille_match"
)

// MatchCreate params passed from the create_game RPC to MatchInit.
const (
	paramMode     = "mode"
	paramCreator  = "creator"
	paramOpponent = "opponent"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpLockCard   int64 = 1
	OpUseSpecial int64 = 2
	OpSurrender  int64 = 3

	// Server -> Client events
	OpMatchState      int64 = 100
	OpGameCreated     int64 = 101
	OpSpecialSelected int64 = 102 // sent privately
	OpCardLocked      int64 = 103
	OpRoundResolved   int64 = 104
	OpChargesUnlocked int64 = 105
	OpKraken          int64 = 106
	OpPlayerTimedOut  int64 = 107
	OpGameEnded       int64 = 108
	OpGameError       int64 = 109
)

const (
	tickRate = 1
	// terminateGraceTicks keeps a finished match alive long enough for clients to read the result.
	terminateGraceTicks = 10
)

// Storage collections. Objects are system-owned.
const (
	matchCollection   = "bataille_matches"
	archiveCollection = "bataille_archive"
)
