package nakama

const (
	// MatchNameOneWord is the authoritative match handler name registered with Nakama.
	MatchNameOneWord = "oneword_match"

	// RPC ids clients call outside a match.
	RpcListGames   = "list_games"
	RpcCreateGame  = "create_game"
	RpcOpenGame    = "open_game"
	RpcDeleteGame  = "delete_game"
	RpcRandomWord  = "random_word"
	RpcVoiceToken  = "voice_token"
	RpcStarBalance = "star_balance"
)

// Op codes for client commands and server events.
const (
	// Client -> Server
	OpUpdatePlayer        int64 = 1
	OpStartPreparation    int64 = 2
	OpBackToLobby         int64 = 3
	OpSubmitHint          int64 = 4
	OpResetHint           int64 = 5
	OpEndHintPhase        int64 = 6
	OpToggleDuplicateHint int64 = 7
	OpShowHints           int64 = 8
	OpGuess               int64 = 9
	OpResolveRound        int64 = 10
	OpRequestJoining      int64 = 11
	OpHandleJoining       int64 = 12
	OpRemovePlayer        int64 = 13
	OpAddBot              int64 = 14

	// Server -> Client events
	OpGameState    int64 = 101
	OpNotification int64 = 102
	OpConfetti     int64 = 103
	OpGamesChanged int64 = 104
	OpGameDeleted  int64 = 105
	OpGameEnded    int64 = 106
	OpGameError    int64 = 110
)
