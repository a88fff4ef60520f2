package nakama

import (
	"context"
	"database/sql"

	"oneword/internal/bot"
	"oneword/internal/config"
	"oneword/internal/words"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs, hooks and the match handler for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("InitModule: Could not load game config: %v", err)
	}
	if err := words.LoadWordList(config.GetGameConfig().WordListPath); err != nil {
		logger.Warn("InitModule: Could not load word list: %v", err)
	}

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameOneWord, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(), nil
	}); err != nil {
		return err
	}

	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("InitModule: Could not load bot identities: %v", err)
	} else if err := bot.ProvisionBots(ctx, nk, logger); err != nil {
		logger.Warn("InitModule: Could not provision bots: %v", err)
	}

	logger.Info("One Word Go module loaded.")
	return nil
}

// RegisterRPCs registers the lobby and utility RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcListGames:   rpcListGames,
		RpcCreateGame:  rpcCreateGame,
		RpcOpenGame:    rpcOpenGame,
		RpcDeleteGame:  rpcDeleteGame,
		RpcRandomWord:  rpcRandomWord,
		RpcVoiceToken:  rpcVoiceToken,
		RpcStarBalance: rpcStarBalance,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}
