package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"oneword/internal/app"
	"oneword/internal/bot"
	"oneword/internal/domain"
	"oneword/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// memRepo is an in-memory GameRepository with document semantics.
type memRepo struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[string][]byte)}
}

func (r *memRepo) GetOne(ctx context.Context, id string) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *memRepo) GetAll(ctx context.Context) ([]*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Game
	for _, raw := range r.docs {
		var g domain.Game
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, nil
}

func (r *memRepo) Add(ctx context.Context, game *domain.Game) error {
	return r.Update(ctx, game)
}

func (r *memRepo) Update(ctx context.Context, game *domain.Game) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[game.ID] = raw
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type stubWords struct{}

func (stubWords) RandomWord(language domain.Language) string { return "apple" }

func (stubWords) GenerateHint(ctx context.Context, word string, language domain.Language) (string, error) {
	return "orchard", nil
}

func (stubWords) GenerateGuess(ctx context.Context, hints []string, language domain.Language) (string, error) {
	return "harbor", nil
}

// noopLogger satisfies runtime.Logger for tests.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{})                 {}
func (noopLogger) Info(string, ...interface{})                  {}
func (noopLogger) Warn(string, ...interface{})                  {}
func (noopLogger) Error(string, ...interface{})                 {}
func (noopLogger) WithField(string, interface{}) runtime.Logger { return noopLogger{} }
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} { return nil }

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcasts []broadcastCall
	labels     []string
}

type broadcastCall struct {
	opCode     int64
	data       []byte
	recipients int
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcasts = append(md.broadcasts, broadcastCall{
		opCode:     opCode,
		data:       append([]byte(nil), data...),
		recipients: len(presences),
	})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error { return nil }

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

func (md *mockDispatcher) lastOp(opCode int64) *broadcastCall {
	for i := len(md.broadcasts) - 1; i >= 0; i-- {
		if md.broadcasts[i].opCode == opCode {
			return &md.broadcasts[i]
		}
	}
	return nil
}

// mockPresence satisfies runtime.Presence.
type mockPresence struct {
	userID   string
	username string
}

func (p mockPresence) GetUserId() string                 { return p.userID }
func (p mockPresence) GetSessionId() string              { return "session-" + p.userID }
func (p mockPresence) GetNodeId() string                 { return "node" }
func (p mockPresence) GetHidden() bool                   { return false }
func (p mockPresence) GetPersistence() bool              { return true }
func (p mockPresence) GetUsername() string               { return p.username }
func (p mockPresence) GetStatus() string                 { return "" }
func (p mockPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }

// mockMatchData wraps a presence plus one opcode message.
type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (m mockMatchData) GetOpCode() int64      { return m.opCode }
func (m mockMatchData) GetData() []byte       { return m.data }
func (m mockMatchData) GetReliable() bool     { return true }
func (m mockMatchData) GetReceiveTime() int64 { return 0 }

type mockEconomy struct {
	balances map[string]int64
	updates  []ports.WalletUpdate
}

func (me *mockEconomy) GetBalance(ctx context.Context, userID string) (int64, error) {
	return me.balances[userID], nil
}

func (me *mockEconomy) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	me.updates = append(me.updates, updates...)
	return nil
}

func command(userID string, opCode int64, cmd commandPayload) mockMatchData {
	data, _ := json.Marshal(cmd)
	return mockMatchData{
		mockPresence: mockPresence{userID: userID, username: userID},
		opCode:       opCode,
		data:         data,
	}
}

// newTestState seeds a three-player game and wraps it in a room.
func newTestState(t *testing.T) (*MatchState, *memRepo, *domain.Game) {
	t.Helper()
	repo := newMemRepo()
	svc := app.NewService(repo, stubWords{}, func() time.Time { return time.Unix(50000, 0) })

	g := &domain.Game{ID: "game-1", Name: "Friday Party", Phase: domain.PhaseInit}
	for i := 0; i < 3; i++ {
		domain.AddPlayer(g, domain.Player{
			ID:    fmt.Sprintf("p%d", i),
			Name:  fmt.Sprintf("Player %d", i),
			Color: playerColors[i],
		})
	}
	if err := repo.Add(context.Background(), g); err != nil {
		t.Fatalf("seed: %v", err)
	}

	state := &MatchState{
		GameID:      g.ID,
		Presences:   make(map[string]runtime.Presence),
		App:         svc,
		Economy:     &mockEconomy{},
		BotsEnabled: true,
		BotMinDelay: 1,
		BotMaxDelay: 1,
		Bots:        make(map[string]*bot.Agent),
	}
	for _, p := range g.Players {
		state.Presences[p.ID] = mockPresence{userID: p.ID, username: p.Name}
	}
	return state, repo, g
}

// advance plays the seeded lobby into the first hint writing phase.
func advanceToHintWriting(t *testing.T, state *MatchState) *domain.Game {
	t.Helper()
	ctx := context.Background()
	g, _ := state.App.LoadGame(ctx, state.GameID)
	if _, _, err := state.App.StartPreparation(ctx, g.HostID, state.GameID, 1, false, domain.LanguageEnglish); err != nil {
		t.Fatalf("start preparation: %v", err)
	}
	g, _ = state.App.LoadGame(ctx, state.GameID)
	for i, p := range g.Players {
		player := *p
		player.EnteredWords = []string{fmt.Sprintf("word%d", i)}
		if _, _, err := state.App.UpdatePlayer(ctx, p.ID, state.GameID, player); err != nil {
			t.Fatalf("enter words: %v", err)
		}
	}
	g, _ = state.App.LoadGame(ctx, state.GameID)
	if g.Phase != domain.PhaseHintWriting {
		t.Fatalf("phase = %s, want hintWriting", g.Phase)
	}
	return g
}

func TestHandleCommandRoutesGuess(t *testing.T) {
	state, _, _ := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	g := advanceToHintWriting(t, state)
	r := g.CurrentRound()
	for _, h := range r.Hints {
		if _, _, err := state.App.SubmitHint(ctx, h.AuthorID, state.GameID, h.ID, "clue"+h.ID); err != nil {
			t.Fatalf("submit hint: %v", err)
		}
	}
	if _, _, err := state.App.ShowHints(ctx, r.HostID, state.GameID); err != nil {
		t.Fatalf("show hints: %v", err)
	}

	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command(r.GuesserID, OpGuess, commandPayload{Text: r.Word}))

	call := dispatcher.lastOp(OpGameState)
	if call == nil {
		t.Fatalf("no game state broadcast")
	}
	var updated domain.Game
	if err := json.Unmarshal(call.data, &updated); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if updated.Phase != domain.PhaseSolution {
		t.Fatalf("phase = %s, want solution", updated.Phase)
	}
	if dispatcher.lastOp(OpConfetti) == nil {
		t.Fatalf("correct guess should fire confetti")
	}
	if len(dispatcher.labels) == 0 {
		t.Fatalf("label not updated")
	}
}

func TestHandleCommandForbiddenIsPrivate(t *testing.T) {
	state, repo, _ := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	g := advanceToHintWriting(t, state)
	r := g.CurrentRound()
	for _, h := range r.Hints {
		if _, _, err := state.App.SubmitHint(ctx, h.AuthorID, state.GameID, h.ID, "clue"+h.ID); err != nil {
			t.Fatalf("submit hint: %v", err)
		}
	}
	if _, _, err := state.App.ShowHints(ctx, r.HostID, state.GameID); err != nil {
		t.Fatalf("show hints: %v", err)
	}
	before, _ := repo.GetOne(ctx, state.GameID)

	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command(r.HostID, OpGuess, commandPayload{Text: "sneaky"}))

	call := dispatcher.lastOp(OpGameError)
	if call == nil {
		t.Fatalf("expected a private error event")
	}
	if call.recipients != 1 {
		t.Fatalf("error sent to %d presences, want 1", call.recipients)
	}
	if dispatcher.lastOp(OpGameState) != nil {
		t.Fatalf("rejected command must not broadcast state")
	}
	after, _ := repo.GetOne(ctx, state.GameID)
	if after.Phase != before.Phase || after.CurrentRound().Guess != before.CurrentRound().Guess {
		t.Fatalf("rejected command mutated the stored game")
	}
}

func TestAddBotIsHostOnly(t *testing.T) {
	state, repo, g := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command("p1", OpAddBot, commandPayload{}))
	if dispatcher.lastOp(OpGameError) == nil {
		t.Fatalf("non-host add bot should fail")
	}

	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command(g.HostID, OpAddBot, commandPayload{}))
	updated, _ := repo.GetOne(ctx, state.GameID)
	if len(updated.Players) != 4 {
		t.Fatalf("players = %d, want 4", len(updated.Players))
	}
	added := updated.Players[3]
	if !added.IsAI {
		t.Fatalf("added player is not AI")
	}
	if state.Bots[added.ID] == nil {
		t.Fatalf("no agent registered for %s", added.ID)
	}
}

// loadBotPool seeds the process-wide identity pool once; every test in this
// package tolerates it being loaded.
func loadBotPool(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot_identities.json")
	pool := `[
		{"device_id": "dev-1", "user_id": "pool-bot-1", "username": "poolone", "display_name": "Robo Rita", "color": "#ff0000"},
		{"device_id": "dev-2", "user_id": "pool-bot-2", "username": "pooltwo", "display_name": "Auto Otto", "color": "#00ff00"}
	]`
	if err := os.WriteFile(path, []byte(pool), 0o600); err != nil {
		t.Fatalf("write pool: %v", err)
	}
	if err := bot.LoadIdentities(path); err != nil {
		t.Fatalf("load pool: %v", err)
	}
}

func TestAddBotSeatsUnseatedPoolIdentities(t *testing.T) {
	loadBotPool(t)
	state, repo, g := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command(g.HostID, OpAddBot, commandPayload{}))
	handler.handleCommand(ctx, state, dispatcher, noopLogger{}, command(g.HostID, OpAddBot, commandPayload{}))

	updated, _ := repo.GetOne(ctx, state.GameID)
	if len(updated.Players) != 5 {
		t.Fatalf("players = %d, want 5", len(updated.Players))
	}
	first, second := updated.Players[3], updated.Players[4]
	if first.ID != "pool-bot-1" || first.Name != "Robo Rita" || first.Color != "#ff0000" {
		t.Fatalf("first bot seat = %+v, want pool-bot-1", first)
	}
	if second.ID != "pool-bot-2" || second.Name != "Auto Otto" {
		t.Fatalf("second bot seat = %+v, want pool-bot-2", second)
	}
}

func TestRegisterBotAgentsRestoresPoolName(t *testing.T) {
	loadBotPool(t)
	state, _, g := newTestState(t)

	domain.AddPlayer(g, domain.Player{ID: "pool-bot-2", Name: "stale name", IsAI: true})
	state.registerBotAgents(g)

	agent := state.Bots["pool-bot-2"]
	if agent == nil {
		t.Fatalf("no agent registered")
	}
	if agent.Name != "Auto Otto" {
		t.Fatalf("agent name = %q, want pool display name", agent.Name)
	}
}

func TestProcessBotsPacedHint(t *testing.T) {
	state, repo, _ := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	// Make one player an AI before the rounds are built.
	g, _ := state.App.LoadGame(ctx, state.GameID)
	aiID := g.Players[2].ID
	g.Players[2].IsAI = true
	if err := repo.Update(ctx, g); err != nil {
		t.Fatalf("update: %v", err)
	}
	state.Bots[aiID] = &bot.Agent{ID: aiID, Words: stubWords{}}

	g = advanceToHintWriting(t, state)
	r := g.CurrentRound()
	hasSlot := false
	for _, h := range r.Hints {
		if h.AuthorID == aiID {
			hasSlot = true
		}
	}
	if !hasSlot {
		t.Skipf("AI player %s is the guesser this round", aiID)
	}

	// First tick only arms the delay timer.
	state.Tick = 10
	handler.processBots(ctx, state, dispatcher, noopLogger{})
	if state.BotWaitUntil == 0 {
		t.Fatalf("bot timer not armed")
	}
	g, _ = repo.GetOne(ctx, state.GameID)
	for _, h := range g.CurrentRound().Hints {
		if h.AuthorID == aiID && h.Hint != "" {
			t.Fatalf("bot acted before its delay")
		}
	}

	// Past the deadline the bot writes its hint.
	state.Tick = state.BotWaitUntil
	handler.processBots(ctx, state, dispatcher, noopLogger{})
	g, _ = repo.GetOne(ctx, state.GameID)
	filled := false
	for _, h := range g.CurrentRound().Hints {
		if h.AuthorID == aiID && h.Hint == "orchard" {
			filled = true
		}
	}
	if !filled {
		t.Fatalf("bot hint not submitted")
	}
	if dispatcher.lastOp(OpGameState) == nil {
		t.Fatalf("bot action should broadcast state")
	}
}

func TestSettleStarsSkipsBots(t *testing.T) {
	state, _, _ := newTestState(t)
	handler := newMatchHandler()
	economy := &mockEconomy{}
	state.Economy = economy
	state.Bots["bot-1"] = &bot.Agent{ID: "bot-1"}

	handler.settleStars(context.Background(), state, noopLogger{}, app.Event{
		Kind: app.EventGameEnded,
		Payload: app.GameEndedPayload{
			GameID: state.GameID,
			Stars:  map[string]int64{"p0": 2, "p1": 2, "bot-1": 2},
		},
	})

	if len(economy.updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(economy.updates))
	}
	for _, u := range economy.updates {
		if u.UserID == "bot-1" {
			t.Fatalf("bot wallet must not be settled")
		}
		if u.Amount != 2 {
			t.Fatalf("amount = %d, want 2", u.Amount)
		}
	}
}

func TestMatchLabelMarshal(t *testing.T) {
	g := &domain.Game{
		ID:    "game-1",
		Name:  "Friday Party",
		Phase: domain.PhaseInit,
		Players: []*domain.Player{
			{ID: "p0"}, {ID: "p1"},
		},
	}
	payload, err := json.Marshal(labelFor(g))
	if err != nil {
		t.Fatalf("marshal label: %v", err)
	}
	want := `{"module":"oneword","game_id":"game-1","name":"Friday Party","phase":"init","players":2}`
	if string(payload) != want {
		t.Fatalf("label = %s, want %s", payload, want)
	}
}

func TestMatchJoinSeatsNewPlayerInLobby(t *testing.T) {
	state, repo, _ := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	joiner := mockPresence{userID: "p3", username: "Dana"}
	result := handler.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, state, []runtime.Presence{joiner})
	if result == nil {
		t.Fatalf("join must keep the match alive")
	}

	g, _ := repo.GetOne(ctx, state.GameID)
	p := g.PlayerByID("p3")
	if p == nil {
		t.Fatalf("joiner was not seated")
	}
	if p.Name != "Dana" {
		t.Fatalf("name = %q, want Dana", p.Name)
	}
	if dispatcher.lastOp(OpGameState) == nil {
		t.Fatalf("join should broadcast the snapshot")
	}
}

func TestMatchJoinMidGameGetsPrivateSnapshot(t *testing.T) {
	state, _, _ := newTestState(t)
	handler := newMatchHandler()
	dispatcher := &mockDispatcher{}
	ctx := context.Background()

	advanceToHintWriting(t, state)

	spectator := mockPresence{userID: "ghost", username: "Ghost"}
	handler.MatchJoin(ctx, noopLogger{}, nil, nil, dispatcher, 1, state, []runtime.Presence{spectator})

	g, _ := state.App.LoadGame(ctx, state.GameID)
	if g.PlayerByID("ghost") != nil {
		t.Fatalf("mid-game join must not add a seat")
	}
	call := dispatcher.lastOp(OpGameState)
	if call == nil || call.recipients != 1 {
		t.Fatalf("expected a private snapshot, got %+v", call)
	}
}
