package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"oneword/internal/app"
	"oneword/internal/bot"
	"oneword/internal/config"
	"oneword/internal/domain"
	"oneword/internal/ports"
	"oneword/internal/words"

	"github.com/heroiclabs/nakama-common/runtime"
)

// matchLabel is indexed by Nakama and queried by the lobby RPCs.
type matchLabel struct {
	Module  string `json:"module"`
	GameID  string `json:"game_id"`
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
}

// playerColors are cycled over seats as humans join.
var playerColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
}

// MatchState holds the authoritative runtime state for one game room.
// The game document itself lives in storage; the room re-reads it per
// command so RPC-side mutations stay visible.
type MatchState struct {
	GameID    string                      `json:"game_id"`
	Tick      int64                       `json:"tick"`
	Presences map[string]runtime.Presence `json:"-"`
	App       *app.Service                `json:"-"`
	Economy   ports.EconomyPort           `json:"-"`

	BotsEnabled  bool                  `json:"bots_enabled"`
	BotMinDelay  int                   `json:"bot_min_delay"`
	BotMaxDelay  int                   `json:"bot_max_delay"`
	BotWaitUntil int64                 `json:"bot_wait_until"`
	Bots         map[string]*bot.Agent `json:"-"`
}

// commandPayload is the union of all client command fields; each opcode reads
// the subset it needs.
type commandPayload struct {
	Player             *domain.Player `json:"player,omitempty"`
	PlayerID           string         `json:"playerId,omitempty"`
	HintID             string         `json:"hintId,omitempty"`
	Text               string         `json:"text,omitempty"`
	WordsPerPlayer     int            `json:"wordsPerPlayer,omitempty"`
	IsTwoPlayerVariant bool           `json:"isTwoPlayerVariant,omitempty"`
	Language           string         `json:"language,omitempty"`
	OldPlayerID        string         `json:"oldPlayerId,omitempty"`
	JoinAsNewPlayer    bool           `json:"joinAsNewPlayer,omitempty"`
	JoiningID          string         `json:"joiningId,omitempty"`
	Deny               bool           `json:"deny,omitempty"`
	CountAnyway        *bool          `json:"countAnyway,omitempty"`
}

// errorPayload is sent privately on OpGameError.
type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type matchHandler struct{}

func newMatchHandler() *matchHandler {
	return &matchHandler{}
}

// MatchInit is called when the room is created. params must carry the id of
// the game document this room serves.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	gameID, _ := params["game_id"].(string)
	if gameID == "" {
		logger.Error("MatchInit: missing game_id param")
		return nil, 0, ""
	}

	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config: %v", err)
	}
	cfg := config.GetGameConfig()
	if err := words.LoadWordList(cfg.WordListPath); err != nil {
		logger.Warn("MatchInit: Could not load word list: %v", err)
	}
	if err := bot.LoadIdentities("data/bot_identities.json"); err != nil {
		logger.Warn("MatchInit: Could not load bot identities: %v", err)
	}

	state := &MatchState{
		GameID:      gameID,
		Tick:        time.Now().Unix(),
		Presences:   make(map[string]runtime.Presence),
		App:         newAppService(ctx, nk),
		Economy:     NewNakamaEconomyAdapter(nk),
		BotsEnabled: true,
		BotMinDelay: cfg.BotMinDelaySeconds,
		BotMaxDelay: cfg.BotMaxDelaySeconds,
		Bots:        make(map[string]*bot.Agent),
	}

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if val, ok := env["oneword_bots_enabled"]; ok {
		state.BotsEnabled = val == "true"
	}
	if val, ok := env["oneword_bot_min_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMinDelay = i
		}
	}
	if val, ok := env["oneword_bot_max_delay_sec"]; ok {
		if i, err := strconv.Atoi(val); err == nil {
			state.BotMaxDelay = i
		}
	}

	game, err := state.App.LoadGame(ctx, gameID)
	if err != nil {
		logger.Error("MatchInit: game %s not loadable: %v", gameID, err)
		return nil, 0, ""
	}
	state.registerBotAgents(game)

	labelBytes, err := json.Marshal(labelFor(game))
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1
	return state, tickRate, string(labelBytes)
}

func labelFor(g *domain.Game) matchLabel {
	return matchLabel{
		Module:  "oneword",
		GameID:  g.ID,
		Name:    g.Name,
		Phase:   string(g.Phase),
		Players: len(g.Players),
	}
}

// registerBotAgents rebuilds the agent map from the persisted player list,
// so AI seats survive a room restart.
func (ms *MatchState) registerBotAgents(g *domain.Game) {
	for _, p := range g.Players {
		if !p.IsAI || ms.Bots[p.ID] != nil {
			continue
		}
		// The pool display name wins over whatever the document carries.
		name := p.Name
		if n := bot.GetBotDisplayName(p.ID); n != "" {
			name = n
		}
		ms.Bots[p.ID] = &bot.Agent{ID: p.ID, Name: name, Words: ms.App.WordSource()}
	}
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	game, err := matchState.App.LoadGame(ctx, matchState.GameID)
	if err != nil || game == nil {
		return state, false, "game not found"
	}

	// Running games stay joinable: seated players reconnect, everyone else
	// may watch and file a joining request.
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		matchState.Presences[p.GetUserId()] = p

		game, err := matchState.App.LoadGame(ctx, matchState.GameID)
		if err != nil {
			logger.Error("MatchJoin: failed to load game: %v", err)
			continue
		}

		if game.Phase == domain.PhaseInit && game.PlayerByID(p.GetUserId()) == nil {
			player := domain.Player{
				ID:    p.GetUserId(),
				Name:  p.GetUsername(),
				Color: playerColors[len(game.Players)%len(playerColors)],
			}
			game, events, err := matchState.App.AddPlayer(ctx, p.GetUserId(), matchState.GameID, player)
			if err != nil {
				logger.Warn("MatchJoin: could not seat %s: %v", p.GetUserId(), err)
			} else {
				mh.broadcastEvents(ctx, matchState, dispatcher, logger, events)
				mh.updateLabel(game, dispatcher, logger)
				continue
			}
		}

		// Reconnecting players and spectators get the current snapshot
		// privately.
		mh.sendSnapshot(matchState, dispatcher, logger, game, p)
	}

	return matchState
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(matchState.Presences, p.GetUserId())

		// In the lobby a disconnect frees the seat. Mid-game the seat stays,
		// so the player can reconnect or be taken over.
		game, err := matchState.App.LoadGame(ctx, matchState.GameID)
		if err != nil || game == nil {
			continue
		}
		if game.Phase == domain.PhaseInit && game.PlayerByID(p.GetUserId()) != nil {
			game, events, err := matchState.App.RemovePlayerFromGame(ctx, p.GetUserId(), matchState.GameID, p.GetUserId())
			if err != nil {
				logger.Warn("MatchLeave: could not unseat %s: %v", p.GetUserId(), err)
				continue
			}
			mh.broadcastEvents(ctx, matchState, dispatcher, logger, events)
			mh.updateLabel(game, dispatcher, logger)
		}
	}

	if len(matchState.Presences) == 0 {
		// The document survives in storage; the room can be revived later.
		logger.Info("MatchLeave: Terminating empty room for game %s.", matchState.GameID)
		return nil
	}

	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleCommand(ctx, matchState, dispatcher, logger, msg)
	}

	if matchState.BotsEnabled {
		mh.processBots(ctx, matchState, dispatcher, logger)
	}

	return matchState
}

// handleCommand routes one client message through the command layer.
func (mh *matchHandler) handleCommand(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var cmd commandPayload
	if len(msg.GetData()) > 0 {
		if err := json.Unmarshal(msg.GetData(), &cmd); err != nil {
			logger.Warn("handleCommand: invalid payload from %s: %v", senderID, err)
			mh.sendError(state, dispatcher, logger, senderID, codeInvalidArgument, "invalid payload")
			return
		}
	}

	var (
		game   *domain.Game
		events []app.Event
		err    error
	)

	switch msg.GetOpCode() {
	case OpUpdatePlayer:
		if cmd.Player == nil {
			err = app.ErrParamMissing
			break
		}
		game, events, err = state.App.UpdatePlayer(ctx, senderID, state.GameID, *cmd.Player)
	case OpStartPreparation:
		game, events, err = state.App.StartPreparation(ctx, senderID, state.GameID, cmd.WordsPerPlayer, cmd.IsTwoPlayerVariant, domain.Language(cmd.Language))
	case OpBackToLobby:
		game, events, err = state.App.BackToLobby(ctx, senderID, state.GameID)
	case OpSubmitHint:
		game, events, err = state.App.SubmitHint(ctx, senderID, state.GameID, cmd.HintID, cmd.Text)
	case OpResetHint:
		game, events, err = state.App.ResetHint(ctx, senderID, state.GameID, cmd.HintID)
	case OpEndHintPhase:
		game, events, err = state.App.EndHintPhase(ctx, senderID, state.GameID)
	case OpToggleDuplicateHint:
		game, events, err = state.App.ToggleDuplicateHint(ctx, senderID, state.GameID, cmd.HintID)
	case OpShowHints:
		game, events, err = state.App.ShowHints(ctx, senderID, state.GameID)
	case OpGuess:
		game, events, err = state.App.Guess(ctx, senderID, state.GameID, cmd.Text)
	case OpResolveRound:
		game, events, err = state.App.ResolveRound(ctx, senderID, state.GameID, cmd.CountAnyway)
	case OpRequestJoining:
		if cmd.Player == nil {
			err = app.ErrParamMissing
			break
		}
		game, events, err = state.App.RequestJoining(ctx, senderID, state.GameID, cmd.OldPlayerID, *cmd.Player, cmd.JoinAsNewPlayer)
	case OpHandleJoining:
		game, events, err = state.App.HandleJoining(ctx, senderID, state.GameID, cmd.JoiningID, cmd.Deny)
	case OpRemovePlayer:
		game, events, err = state.App.RemovePlayerFromGame(ctx, senderID, state.GameID, cmd.PlayerID)
	case OpAddBot:
		game, events, err = mh.handleAddBot(ctx, state, senderID)
	default:
		logger.Warn("handleCommand: Unknown opcode received: %d", msg.GetOpCode())
		return
	}

	if err != nil {
		logger.Warn("handleCommand: op %d from %s failed: %v", msg.GetOpCode(), senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, errorCode(err), err.Error())
		return
	}

	mh.broadcastEvents(ctx, state, dispatcher, logger, events)
	if game != nil {
		mh.updateLabel(game, dispatcher, logger)
	}
}

func errorCode(err error) int {
	switch err {
	case app.ErrGameNotFound, app.ErrJoiningRequestNotFound:
		return codeNotFound
	case app.ErrParamMissing:
		return codeInvalidArgument
	case app.ErrForbidden:
		return codePermissionDenied
	default:
		return codeInternal
	}
}

// handleAddBot seats an AI player. Host only, lobby only.
func (mh *matchHandler) handleAddBot(ctx context.Context, state *MatchState, senderID string) (*domain.Game, []app.Event, error) {
	game, err := state.App.LoadGame(ctx, state.GameID)
	if err != nil {
		return nil, nil, err
	}
	if !game.IsGameHost(senderID) {
		return nil, nil, app.ErrForbidden
	}

	// Prefer the first provisioned identity without a seat; the index
	// fallback covers rooms running without a loaded pool.
	identity := bot.GetBotIdentity(len(game.Players))
	for _, id := range bot.GetAllBotIDs() {
		if game.PlayerByID(id) != nil {
			continue
		}
		if cfg, ok := bot.GetBotConfig(id); ok {
			identity = cfg
		}
		break
	}
	color := identity.Color
	if color == "" {
		color = playerColors[len(game.Players)%len(playerColors)]
	}
	player := domain.Player{
		ID:    identity.UserID,
		Name:  identity.DisplayName,
		Color: color,
		IsAI:  true,
	}
	game, events, err := state.App.AddPlayer(ctx, senderID, state.GameID, player)
	if err != nil {
		return nil, nil, err
	}
	state.Bots[player.ID] = &bot.Agent{ID: player.ID, Name: player.Name, Words: state.App.WordSource()}
	return game, events, nil
}

// processBots lets at most one waiting AI player act per pacing window.
func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if len(state.Bots) == 0 {
		return
	}

	game, err := state.App.LoadGame(ctx, state.GameID)
	if err != nil || game == nil {
		return
	}

	var waiting *domain.Player
	for _, p := range domain.ActionRequiredFrom(game) {
		if p.IsAI {
			waiting = p
			break
		}
	}
	if waiting == nil {
		state.BotWaitUntil = 0
		return
	}

	if state.BotWaitUntil == 0 {
		delay := state.BotMinDelay
		if state.BotMaxDelay > state.BotMinDelay {
			delay += rand.Intn(state.BotMaxDelay - state.BotMinDelay + 1)
		}
		state.BotWaitUntil = state.Tick + int64(delay)
		return
	}
	if state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = 0

	agent := state.Bots[waiting.ID]
	if agent == nil {
		agent = &bot.Agent{ID: waiting.ID, Name: waiting.Name, Words: state.App.WordSource()}
		state.Bots[waiting.ID] = agent
	}

	action, ok := agent.NextAction(ctx, game)
	if !ok {
		return
	}

	var events []app.Event
	switch action.Kind {
	case bot.ActionEnterWords:
		player := *waiting
		player.EnteredWords = action.Words
		game, events, err = state.App.UpdatePlayer(ctx, agent.ID, state.GameID, player)
	case bot.ActionSubmitHint:
		game, events, err = state.App.SubmitHint(ctx, agent.ID, state.GameID, action.HintID, action.Text)
	case bot.ActionShowHints:
		game, events, err = state.App.ShowHints(ctx, agent.ID, state.GameID)
	case bot.ActionGuess:
		game, events, err = state.App.Guess(ctx, agent.ID, state.GameID, action.Text)
	case bot.ActionResolve:
		game, events, err = state.App.ResolveRound(ctx, agent.ID, state.GameID, nil)
	default:
		return
	}
	if err != nil {
		logger.Error("processBots: Bot %s action %s failed: %v", agent.ID, action.Kind, err)
		return
	}

	mh.broadcastEvents(ctx, state, dispatcher, logger, events)
	mh.updateLabel(game, dispatcher, logger)
}

// broadcastEvents converts app events into opcode messages. Events with
// recipients go only to connected presences; if none of the intended
// recipients are connected the message is dropped, never widened.
func (mh *matchHandler) broadcastEvents(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	for _, ev := range events {
		mh.broadcastEvent(ctx, state, dispatcher, logger, ev)
	}
}

func (mh *matchHandler) broadcastEvent(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	var opCode int64
	switch ev.Kind {
	case app.EventGameUpdated:
		opCode = OpGameState
	case app.EventNotification:
		opCode = OpNotification
	case app.EventConfetti:
		opCode = OpConfetti
	case app.EventGamesChanged:
		opCode = OpGamesChanged
	case app.EventGameDeleted:
		opCode = OpGameDeleted
	case app.EventGameEnded:
		opCode = OpGameEnded
		mh.settleStars(ctx, state, logger, ev)
	default:
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}

	bytes, err := json.Marshal(ev.Payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true)
}

// settleStars credits each human player's wallet with the final tally.
func (mh *matchHandler) settleStars(ctx context.Context, state *MatchState, logger runtime.Logger, ev app.Event) {
	payload, ok := ev.Payload.(app.GameEndedPayload)
	if !ok || state.Economy == nil {
		return
	}

	updates := make([]ports.WalletUpdate, 0, len(payload.Stars))
	for userID, amount := range payload.Stars {
		if bot.IsBot(userID) || state.Bots[userID] != nil {
			continue
		}
		updates = append(updates, ports.WalletUpdate{
			UserID: userID,
			Amount: amount,
			Metadata: map[string]interface{}{
				"game_id": payload.GameID,
				"reason":  "game_settlement",
			},
		})
	}
	if err := state.Economy.UpdateBalances(ctx, updates); err != nil {
		logger.Error("Failed to update balances: %v", err)
	}
}

func (mh *matchHandler) sendSnapshot(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, game *domain.Game, p runtime.Presence) {
	bytes, err := json.Marshal(game)
	if err != nil {
		logger.Error("Failed to marshal snapshot: %v", err)
		return
	}
	dispatcher.BroadcastMessage(OpGameState, bytes, []runtime.Presence{p}, nil, true)
}

// sendError sends an error event to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	bytes, err := json.Marshal(errorPayload{Code: code, Message: message})
	if err != nil {
		logger.Error("Failed to marshal error payload: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	dispatcher.BroadcastMessage(OpGameError, bytes, []runtime.Presence{presence}, nil, true)
}

func (mh *matchHandler) updateLabel(game *domain.Game, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelBytes, err := json.Marshal(labelFor(game))
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
