package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"oneword/internal/domain"
	"oneword/internal/ports"
)

// Clearance windows after which any former participant may delete a game.
const (
	DefaultFinishedClearance  = 10 * time.Minute
	DefaultUnstartedClearance = 24 * time.Hour
)

// Service wraps every engine transition with authorization, persistence and
// event emission. It holds no game state of its own; the repository is the
// source of truth and every mutation is a read-modify-write of the whole
// document.
type Service struct {
	repo  ports.GameRepository
	words ports.WordSource

	// FinishedClearance and UnstartedClearance gate garbage collection of
	// games by non-hosts.
	FinishedClearance  time.Duration
	UnstartedClearance time.Duration

	now   func() time.Time
	newID func() string
}

// NewService constructs a Service. clock may be nil to use time.Now.
func NewService(repo ports.GameRepository, words ports.WordSource, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:               repo,
		words:              words,
		FinishedClearance:  DefaultFinishedClearance,
		UnstartedClearance: DefaultUnstartedClearance,
		now:                clock,
		newID:              mintID,
	}
}

func mintID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(buf)
}

// WordSource exposes the configured vocabulary provider, for AI players and
// clients requesting a random word suggestion.
func (s *Service) WordSource() ports.WordSource {
	return s.words
}

func (s *Service) load(ctx context.Context, gameID string) (*domain.Game, error) {
	if gameID == "" {
		return nil, ErrParamMissing
	}
	g, err := s.repo.GetOne(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (s *Service) save(ctx context.Context, g *domain.Game) error {
	return s.repo.Update(ctx, g)
}

// LoadGames returns every stored game for the lobby list.
func (s *Service) LoadGames(ctx context.Context) ([]*domain.Game, error) {
	return s.repo.GetAll(ctx)
}

// LoadGame returns a single game snapshot.
func (s *Service) LoadGame(ctx context.Context, gameID string) (*domain.Game, error) {
	return s.load(ctx, gameID)
}

// AddGame creates a new game. The creator becomes the host when none is set,
// and previousGameID links the finished game to its rematch.
func (s *Service) AddGame(ctx context.Context, actorID string, game *domain.Game, previousGameID string) (*domain.Game, []Event, error) {
	if game == nil || game.Name == "" {
		return nil, nil, ErrParamMissing
	}
	if game.ID == "" {
		game.ID = s.newID()
	}
	game.Phase = domain.PhaseInit
	game.CreationTime = s.now()
	if game.Language == "" {
		game.Language = domain.LanguageEnglish
	}
	if game.HostID == "" {
		if len(game.Players) > 0 {
			game.HostID = game.Players[0].ID
		} else {
			game.HostID = actorID
		}
	}
	if err := s.repo.Add(ctx, game); err != nil {
		return nil, nil, err
	}

	events := []Event{{Kind: EventGamesChanged}}
	if previousGameID != "" {
		prev, err := s.load(ctx, previousGameID)
		if err == nil {
			prev.RematchID = game.ID
			if err := s.save(ctx, prev); err == nil {
				events = append(events, Event{Kind: EventGameUpdated, Payload: prev})
				events = append(events, notify("news.rematchStarted", map[string]string{"name": game.Name}, SeverityInfo))
			}
		}
	}
	return game, events, nil
}

// AddPlayer seats a player in the lobby.
func (s *Service) AddPlayer(ctx context.Context, actorID, gameID string, player domain.Player) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if player.ID == "" {
		player.ID = actorID
	}
	if player.Name == "" {
		return nil, nil, ErrParamMissing
	}
	if g.Phase != domain.PhaseInit {
		return nil, nil, ErrForbidden
	}
	domain.AddPlayer(g, player)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	events := []Event{
		snapshotEvent(g),
		{Kind: EventGamesChanged},
		notify("news.playerJoined", map[string]string{"name": player.Name}, SeverityInfo),
	}
	return g, events, nil
}

// UpdatePlayer changes a player's profile or, during preparation, their
// entered words. Allowed for the player themself or the game host.
func (s *Service) UpdatePlayer(ctx context.Context, actorID, gameID string, player domain.Player) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if player.ID == "" {
		return nil, nil, ErrParamMissing
	}
	if actorID != player.ID && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.Phase != domain.PhaseInit && g.Phase != domain.PhasePreparation {
		return nil, nil, ErrForbidden
	}
	domain.UpdatePlayer(g, player)

	var events []Event
	// Word submission may complete preparation and start the first round.
	if domain.AllWordsEntered(g) && domain.StartGame(g, s.now()) {
		events = append(events, s.phaseEvents(g)...)
	}
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	events = append([]Event{snapshotEvent(g)}, events...)
	return g, events, nil
}

// RemovePlayerFromGame unseats a player before the rounds are built.
// Allowed for the player themself or the game host.
func (s *Service) RemovePlayerFromGame(ctx context.Context, actorID, gameID, playerID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if playerID == "" {
		return nil, nil, ErrParamMissing
	}
	if actorID != playerID && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.Phase != domain.PhaseInit && g.Phase != domain.PhasePreparation {
		return nil, nil, ErrForbidden
	}
	removed := g.PlayerByID(playerID)
	domain.RemovePlayer(g, playerID)

	var events []Event
	// The departing player may have been the last one holding up preparation.
	if domain.AllWordsEntered(g) && domain.StartGame(g, s.now()) {
		events = append(events, s.phaseEvents(g)...)
	}
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	events = append([]Event{snapshotEvent(g), {Kind: EventGamesChanged}}, events...)
	if removed != nil {
		events = append(events, notify("news.playerLeft", map[string]string{"name": removed.Name}, SeverityInfo))
	}
	return g, events, nil
}

// StartPreparation moves the lobby into word collection. Host only.
func (s *Service) StartPreparation(ctx context.Context, actorID, gameID string, wordsPerPlayer int, isTwoPlayerVariant bool, language domain.Language) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if wordsPerPlayer < 1 {
		return nil, nil, ErrParamMissing
	}
	if !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.Phase != domain.PhaseInit {
		return nil, nil, ErrForbidden
	}
	domain.StartPreparation(g, wordsPerPlayer, isTwoPlayerVariant, language)
	if g.Phase != domain.PhasePreparation {
		// Too few players for the chosen variant.
		return nil, nil, ErrForbidden
	}
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	events := []Event{
		snapshotEvent(g),
		{Kind: EventGamesChanged},
		notify("news.enterWords", map[string]string{"count": strconv.Itoa(wordsPerPlayer)}, SeverityInfo),
	}
	return g, events, nil
}

// BackToLobby aborts preparation. Host only.
func (s *Service) BackToLobby(ctx context.Context, actorID, gameID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.Phase != domain.PhasePreparation {
		return nil, nil, ErrForbidden
	}
	domain.BackToLobby(g)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, []Event{snapshotEvent(g), {Kind: EventGamesChanged}, notify("news.backToLobby", nil, SeverityInfo)}, nil
}

// RequestJoining files a take-over proposal for an existing seat.
func (s *Service) RequestJoining(ctx context.Context, actorID, gameID, oldPlayerID string, newPlayer domain.Player, joinAsNewPlayer bool) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if newPlayer.ID == "" {
		newPlayer.ID = actorID
	}
	old := g.PlayerByID(oldPlayerID)
	if oldPlayerID == "" || old == nil || newPlayer.Name == "" {
		return nil, nil, ErrParamMissing
	}
	req := &domain.JoiningRequest{
		ID:              s.newID(),
		OldPlayerID:     old.ID,
		OldPlayerName:   old.Name,
		NewPlayer:       newPlayer,
		JoinAsNewPlayer: joinAsNewPlayer,
	}
	g.JoiningRequests = append(g.JoiningRequests, req)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	events := []Event{
		snapshotEvent(g),
		notify("news.joiningRequested", map[string]string{"name": newPlayer.Name, "oldName": old.Name}, SeverityInfo, g.HostID),
	}
	return g, events, nil
}

// HandleJoining accepts or denies a pending take-over. Host only.
func (s *Service) HandleJoining(ctx context.Context, actorID, gameID, joiningID string, deny bool) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if joiningID == "" {
		return nil, nil, ErrParamMissing
	}
	if !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	var req *domain.JoiningRequest
	for _, jr := range g.JoiningRequests {
		if jr.ID == joiningID {
			req = jr
			break
		}
	}
	if req == nil {
		return nil, nil, ErrJoiningRequestNotFound
	}
	domain.HandleJoining(g, joiningID, deny)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	key := "news.joiningAccepted"
	if req.Denied {
		key = "news.joiningDenied"
	}
	events := []Event{
		snapshotEvent(g),
		notify(key, map[string]string{"name": req.NewPlayer.Name}, SeverityInfo),
	}
	return g, events, nil
}

// SubmitHint fills the caller's hint slot. Hint authors only.
func (s *Service) SubmitHint(ctx context.Context, actorID, gameID, hintID, hint string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if domain.NormalizeWord(hint) == "" {
		return nil, nil, ErrParamMissing
	}
	if g.Phase != domain.PhaseHintWriting {
		return nil, nil, ErrForbidden
	}
	slot := g.HintByID(hintID)
	if slot == nil {
		return nil, nil, ErrParamMissing
	}
	if slot.AuthorID != actorID {
		return nil, nil, ErrForbidden
	}
	domain.SubmitHint(g, actorID, hint)
	events := []Event{snapshotEvent(g)}
	if g.Phase == domain.PhaseHintComparing {
		events = append(events, s.phaseEvents(g)...)
	}
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, events, nil
}

// ResetHint clears the caller's own hint slot during hint writing.
func (s *Service) ResetHint(ctx context.Context, actorID, gameID, hintID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != domain.PhaseHintWriting {
		return nil, nil, ErrForbidden
	}
	slot := g.HintByID(hintID)
	if slot == nil {
		return nil, nil, ErrParamMissing
	}
	if slot.AuthorID != actorID {
		return nil, nil, ErrForbidden
	}
	domain.ResetHint(g, hintID)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, []Event{snapshotEvent(g)}, nil
}

// EndHintPhase forces hint comparison with whatever hints exist. Game host
// only; used to unblock a stalled round.
func (s *Service) EndHintPhase(ctx context.Context, actorID, gameID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.Phase != domain.PhaseHintWriting {
		return nil, nil, ErrForbidden
	}
	domain.EndHintPhase(g)
	events := append([]Event{snapshotEvent(g)}, s.phaseEvents(g)...)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, events, nil
}

// ToggleDuplicateHint flips a hint's duplicate flag. Round host only.
func (s *Service) ToggleDuplicateHint(ctx context.Context, actorID, gameID, hintID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != domain.PhaseHintComparing {
		return nil, nil, ErrForbidden
	}
	if !g.IsRoundHost(actorID) && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if g.HintByID(hintID) == nil {
		return nil, nil, ErrParamMissing
	}
	domain.ToggleDuplicateHint(g, hintID)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, []Event{snapshotEvent(g)}, nil
}

// ShowHints reveals the surviving hints to the guesser. Round host or game
// host.
func (s *Service) ShowHints(ctx context.Context, actorID, gameID string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != domain.PhaseHintComparing {
		return nil, nil, ErrForbidden
	}
	if !g.IsRoundHost(actorID) && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	domain.ShowHints(g)
	events := append([]Event{snapshotEvent(g)}, s.phaseEvents(g)...)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, events, nil
}

// Guess submits the current guesser's attempt. An empty guess is only valid
// from the game host, as a forced advance past a stalled guesser.
func (s *Service) Guess(ctx context.Context, actorID, gameID, guess string) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != domain.PhaseGuessing {
		return nil, nil, ErrForbidden
	}
	if domain.NormalizeWord(guess) == "" {
		if !g.IsGameHost(actorID) {
			return nil, nil, ErrParamMissing
		}
		domain.ForceEmptyGuess(g)
	} else {
		if !g.IsGuesser(actorID) {
			return nil, nil, ErrForbidden
		}
		domain.Guess(g, guess)
	}
	events := append([]Event{snapshotEvent(g)}, s.phaseEvents(g)...)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, events, nil
}

// ResolveRound finishes the current round. A correct guess auto-accepts, so
// any player may advance it; a wrong or unresolved guess needs the round
// host (the game host may also step in), optionally counting it anyway.
func (s *Service) ResolveRound(ctx context.Context, actorID, gameID string, countAnyway *bool) (*domain.Game, []Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if g.Phase != domain.PhaseSolution {
		return nil, nil, ErrForbidden
	}
	r := g.CurrentRound()
	if !domain.CountedCorrect(r) && !g.IsRoundHost(actorID) && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	if countAnyway != nil && !g.IsRoundHost(actorID) && !g.IsGameHost(actorID) {
		return nil, nil, ErrForbidden
	}
	domain.ResolveRound(g, countAnyway, s.now())
	events := append([]Event{snapshotEvent(g)}, s.phaseEvents(g)...)
	if err := s.save(ctx, g); err != nil {
		return nil, nil, err
	}
	return g, events, nil
}

// DeleteGame removes a game. The host may always delete; anyone else must
// wait for the clearance window on finished or never-started games.
func (s *Service) DeleteGame(ctx context.Context, actorID, gameID string) ([]Event, error) {
	g, err := s.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	cleared := domain.ClearedForDeletion(g, s.now(), s.FinishedClearance, s.UnstartedClearance)
	if !g.IsGameHost(actorID) && !(cleared && g.PlayerByID(actorID) != nil) {
		return nil, ErrForbidden
	}
	if err := s.repo.Delete(ctx, gameID); err != nil {
		return nil, err
	}
	events := []Event{
		{Kind: EventGameDeleted, Payload: GameDeletedPayload{GameID: gameID}},
		{Kind: EventGamesChanged},
	}
	return events, nil
}

// phaseEvents derives the phase-specific notifications after a transition,
// so the transport can target toasts without re-deriving whose turn is next.
func (s *Service) phaseEvents(g *domain.Game) []Event {
	switch g.Phase {
	case domain.PhaseHintWriting:
		r := g.CurrentRound()
		guesser := g.PlayerByID(r.GuesserID)
		pending := make([]string, 0, len(g.Players))
		for _, p := range domain.ActionRequiredFrom(g) {
			pending = append(pending, p.ID)
		}
		name := ""
		if guesser != nil {
			name = guesser.Name
		}
		return []Event{notify("news.writeHints", map[string]string{"guesser": name}, SeverityInfo, pending...)}
	case domain.PhaseHintComparing:
		r := g.CurrentRound()
		return []Event{notify("news.compareHints", nil, SeverityInfo, r.HostID)}
	case domain.PhaseGuessing:
		r := g.CurrentRound()
		return []Event{notify("news.guessWord", nil, SeverityInfo, r.GuesserID)}
	case domain.PhaseSolution:
		r := g.CurrentRound()
		if domain.CountedCorrect(r) {
			guesser := g.PlayerByID(r.GuesserID)
			params := map[string]string{"word": r.Word}
			var colors []string
			if guesser != nil {
				params["name"] = guesser.Name
				colors = append(colors, guesser.Color)
			}
			return []Event{
				notify("news.wordGuessed", params, SeveritySuccess),
				{Kind: EventConfetti, Payload: ConfettiPayload{Colors: colors}},
			}
		}
		return []Event{notify("news.judgeGuess", map[string]string{"word": r.Word, "guess": r.Guess}, SeverityWarning, r.HostID)}
	case domain.PhaseEnd:
		correct := len(domain.CorrectRounds(g))
		wrong := len(domain.WrongRounds(g))
		stars := make(map[string]int64, len(g.Players))
		for _, p := range g.Players {
			stars[p.ID] = int64(correct)
		}
		return []Event{
			notify("news.gameEnded", map[string]string{"correct": strconv.Itoa(correct), "wrong": strconv.Itoa(wrong)}, SeveritySuccess),
			{Kind: EventConfetti, Payload: ConfettiPayload{}},
			{Kind: EventGameEnded, Payload: GameEndedPayload{GameID: g.ID, CorrectWords: correct, WrongWords: wrong, Stars: stars}},
			{Kind: EventGamesChanged},
		}
	}
	return nil
}
