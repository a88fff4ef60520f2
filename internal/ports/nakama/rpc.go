package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oneword/internal/app"
	"oneword/internal/app/voice"
	"oneword/internal/config"
	"oneword/internal/domain"
	"oneword/internal/ports"
	"oneword/internal/words"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes used with runtime.NewError.
const (
	codeInvalidArgument  = 3
	codeNotFound         = 5
	codePermissionDenied = 7
	codeInternal         = 13
)

// newAppService builds the command layer on top of Nakama storage and the
// configured word source. Cheap to construct per call; all state lives in
// storage.
func newAppService(ctx context.Context, nk runtime.NakamaModule) *app.Service {
	svc := app.NewService(NewStorageGameRepository(nk), newWordSource(ctx), nil)
	cfg := config.GetGameConfig()
	svc.FinishedClearance = time.Duration(cfg.FinishedClearanceMinutes) * time.Minute
	svc.UnstartedClearance = time.Duration(cfg.UnstartedClearanceHours) * time.Hour
	return svc
}

func newWordSource(ctx context.Context) *words.Source {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	gen := words.NewGenerator(words.GeneratorConfig{
		URL:    env["oneword_llm_url"],
		APIKey: env["oneword_llm_api_key"],
		Model:  env["oneword_llm_model"],
	})
	return words.NewSource(gen, nil)
}

// toRuntimeError maps command layer errors onto gRPC status codes.
func toRuntimeError(err error) error {
	switch {
	case errors.Is(err, app.ErrGameNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, app.ErrJoiningRequestNotFound):
		return runtime.NewError(err.Error(), codeNotFound)
	case errors.Is(err, app.ErrParamMissing):
		return runtime.NewError(err.Error(), codeInvalidArgument)
	case errors.Is(err, app.ErrForbidden):
		return runtime.NewError(err.Error(), codePermissionDenied)
	default:
		return runtime.NewError(err.Error(), codeInternal)
	}
}

// GameSummary is one lobby list entry.
type GameSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phase       string `json:"phase"`
	PlayerCount int    `json:"playerCount"`
	HostName    string `json:"hostName"`
}

// rpcListGames returns summaries of all stored games for the lobby screen.
func rpcListGames(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	svc := newAppService(ctx, nk)
	games, err := svc.LoadGames(ctx)
	if err != nil {
		logger.Error("RpcListGames: %v", err)
		return "", toRuntimeError(err)
	}

	summaries := make([]GameSummary, 0, len(games))
	for _, g := range games {
		hostName := ""
		if host := g.PlayerByID(g.HostID); host != nil {
			hostName = host.Name
		}
		summaries = append(summaries, GameSummary{
			ID:          g.ID,
			Name:        g.Name,
			Phase:       string(g.Phase),
			PlayerCount: len(g.Players),
			HostName:    hostName,
		})
	}

	b, _ := json.Marshal(summaries)
	return string(b), nil
}

// CreateGameRequest is the payload for RpcCreateGame.
type CreateGameRequest struct {
	Name           string `json:"name"`
	PlayerName     string `json:"playerName"`
	PlayerColor    string `json:"playerColor"`
	PreviousGameID string `json:"previousGameId"`
}

// CreateGameResponse returns the new game and its live match.
type CreateGameResponse struct {
	GameID  string `json:"gameId"`
	MatchID string `json:"matchId"`
}

// rpcCreateGame creates a game document plus the authoritative match hosting
// it, and seats the caller as host.
func rpcCreateGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("no user in context", codePermissionDenied)
	}

	var req CreateGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}

	svc := newAppService(ctx, nk)
	game := &domain.Game{
		Name: req.Name,
		Players: []*domain.Player{
			{ID: userID, Name: req.PlayerName, Color: req.PlayerColor},
		},
	}
	game, _, err := svc.AddGame(ctx, userID, game, req.PreviousGameID)
	if err != nil {
		logger.Error("RpcCreateGame: %v", err)
		return "", toRuntimeError(err)
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameOneWord, map[string]interface{}{"game_id": game.ID})
	if err != nil {
		logger.Error("RpcCreateGame: failed to create match: %v", err)
		return "", runtime.NewError("failed to create match", codeInternal)
	}

	b, _ := json.Marshal(CreateGameResponse{GameID: game.ID, MatchID: matchID})
	return string(b), nil
}

// OpenGameRequest asks for the live match hosting a stored game.
type OpenGameRequest struct {
	GameID string `json:"gameId"`
}

// OpenGameResponse carries the match id to join.
type OpenGameResponse struct {
	MatchID string `json:"matchId"`
	IsNew   bool   `json:"isNew"`
}

// rpcOpenGame finds the running match for a game, or revives one from the
// stored document when none is live.
func rpcOpenGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req OpenGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.GameID == "" {
		return "", runtime.NewError("gameId required", codeInvalidArgument)
	}

	svc := newAppService(ctx, nk)
	if _, err := svc.LoadGame(ctx, req.GameID); err != nil {
		return "", toRuntimeError(err)
	}

	limit := 1
	authoritative := true
	query := fmt.Sprintf("+label.game_id:%s", req.GameID)
	matches, err := nk.MatchList(ctx, limit, authoritative, "", nil, nil, query)
	if err != nil {
		logger.Error("RpcOpenGame: failed to list matches: %v", err)
		return "", runtime.NewError("failed to list matches", codeInternal)
	}
	if len(matches) > 0 {
		b, _ := json.Marshal(OpenGameResponse{MatchID: matches[0].MatchId})
		return string(b), nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchNameOneWord, map[string]interface{}{"game_id": req.GameID})
	if err != nil {
		logger.Error("RpcOpenGame: failed to create match: %v", err)
		return "", runtime.NewError("failed to create match", codeInternal)
	}
	b, _ := json.Marshal(OpenGameResponse{MatchID: matchID, IsNew: true})
	return string(b), nil
}

// DeleteGameRequest identifies the game to remove.
type DeleteGameRequest struct {
	GameID string `json:"gameId"`
}

// rpcDeleteGame removes a game, subject to the host/clearance rules.
func rpcDeleteGame(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req DeleteGameRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.GameID == "" {
		return "", runtime.NewError("gameId required", codeInvalidArgument)
	}

	svc := newAppService(ctx, nk)
	if _, err := svc.DeleteGame(ctx, userID, req.GameID); err != nil {
		logger.Warn("RpcDeleteGame: user %s game %s: %v", userID, req.GameID, err)
		return "", toRuntimeError(err)
	}
	return "{}", nil
}

// RandomWordRequest selects the vocabulary to draw from.
type RandomWordRequest struct {
	Language string `json:"language"`
}

// rpcRandomWord returns a word suggestion for the preparation dialog.
func rpcRandomWord(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	var req RandomWordRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			return "", runtime.NewError("invalid payload", codeInvalidArgument)
		}
	}
	language := domain.Language(req.Language)
	if language == "" {
		language = domain.Language(config.GetGameConfig().DefaultLanguage)
	}

	word := newWordSource(ctx).RandomWord(language)
	b, _ := json.Marshal(map[string]string{"word": word})
	return string(b), nil
}

// StarBalanceResponse carries the caller's current star wallet.
type StarBalanceResponse struct {
	Stars int64 `json:"stars"`
}

// rpcStarBalance returns the caller's star balance.
func rpcStarBalance(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("no user in context", codePermissionDenied)
	}
	return starBalanceResponse(ctx, NewNakamaEconomyAdapter(nk), userID)
}

func starBalanceResponse(ctx context.Context, economy ports.EconomyPort, userID string) (string, error) {
	stars, err := economy.GetBalance(ctx, userID)
	if err != nil {
		return "", runtime.NewError("failed to read wallet", codeInternal)
	}
	b, _ := json.Marshal(StarBalanceResponse{Stars: stars})
	return string(b), nil
}

// VoiceTokenRequest asks for a signed voice token.
// Action is "login" or "join"; gameId is required for join.
type VoiceTokenRequest struct {
	Action string `json:"action"`
	GameID string `json:"gameId"`
}

// rpcVoiceToken signs an access token for the per-game voice channel.
func rpcVoiceToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("no user in context", codePermissionDenied)
	}

	var req VoiceTokenRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", codeInvalidArgument)
	}
	if req.Action != voice.TokenActionLogin && req.Action != voice.TokenActionJoin {
		return "", runtime.NewError("unknown action", codeInvalidArgument)
	}
	if req.Action == voice.TokenActionJoin && req.GameID == "" {
		return "", runtime.NewError("gameId required for join", codeInvalidArgument)
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	secret := env["voice_secret"]
	issuer := env["voice_issuer"]
	domainName := env["voice_domain"]
	if secret == "" || issuer == "" || domainName == "" {
		secret = "test-secret"
		issuer = "test-issuer"
		domainName = "voice.example.com"
		logger.Warn("Voice credentials missing from env, using test defaults.")
	}

	token, err := voice.NewService(secret, issuer, domainName).GenerateToken(userID, req.Action, req.GameID)
	if err != nil {
		logger.Error("RpcVoiceToken: %v", err)
		return "", runtime.NewError("failed to sign token", codeInternal)
	}

	b, _ := json.Marshal(map[string]string{"token": token})
	return string(b), nil
}
