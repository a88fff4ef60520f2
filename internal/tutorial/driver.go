package tutorial

import (
	"context"
	"fmt"

	"oneword/internal/app"
	"oneword/internal/bot"
	"oneword/internal/domain"
	"oneword/internal/ports"
)

// companions are the fixed AI co-players of the tutorial.
var companions = []struct {
	id    string
	name  string
	color string
}{
	{"tutorial-ai-1", "Robo Rita", "#3cb44b"},
	{"tutorial-ai-2", "Auto Otto", "#4363d8"},
}

// advanceLimit bounds the bot loop; a three player game with one word each
// needs far fewer steps.
const advanceLimit = 64

// Driver owns one offline tutorial game. All user verbs act as the human
// player; Advance makes the AI companions play until the game waits on the
// user again.
type Driver struct {
	svc    *app.Service
	gameID string
	userID string
	agents []*bot.Agent
}

// NewDriver creates the tutorial game: the user plus two AI companions,
// one secret word per player, already collecting words.
func NewDriver(ctx context.Context, userID, userName string, words ports.WordSource) (*Driver, error) {
	if userID == "" || userName == "" {
		return nil, app.ErrParamMissing
	}

	svc := app.NewService(NewMemoryRepository(), words, nil)
	game := &domain.Game{
		Name: "Tutorial",
		Players: []*domain.Player{
			{ID: userID, Name: userName, Color: "#e6194b"},
		},
	}
	game, _, err := svc.AddGame(ctx, userID, game, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create tutorial game: %w", err)
	}

	d := &Driver{svc: svc, gameID: game.ID, userID: userID}
	for _, c := range companions {
		player := domain.Player{ID: c.id, Name: c.name, Color: c.color, IsAI: true}
		if _, _, err := svc.AddPlayer(ctx, c.id, game.ID, player); err != nil {
			return nil, fmt.Errorf("failed to seat companion %s: %w", c.name, err)
		}
		d.agents = append(d.agents, &bot.Agent{ID: c.id, Name: c.name, Words: words})
	}

	if _, _, err := svc.StartPreparation(ctx, userID, game.ID, 1, false, domain.LanguageEnglish); err != nil {
		return nil, fmt.Errorf("failed to start preparation: %w", err)
	}
	return d, nil
}

// Game returns the current snapshot.
func (d *Driver) Game(ctx context.Context) (*domain.Game, error) {
	return d.svc.LoadGame(ctx, d.gameID)
}

// EnterWord submits the user's secret word during preparation.
func (d *Driver) EnterWord(ctx context.Context, word string) error {
	g, err := d.Game(ctx)
	if err != nil {
		return err
	}
	player := g.PlayerByID(d.userID)
	if player == nil {
		return app.ErrParamMissing
	}
	p := *player
	p.EnteredWords = []string{word}
	_, _, err = d.svc.UpdatePlayer(ctx, d.userID, d.gameID, p)
	return err
}

// SubmitHint fills one of the user's hint slots.
func (d *Driver) SubmitHint(ctx context.Context, hintID, text string) error {
	_, _, err := d.svc.SubmitHint(ctx, d.userID, d.gameID, hintID, text)
	return err
}

// ShowHints reveals the hints when the user hosts the round.
func (d *Driver) ShowHints(ctx context.Context) error {
	_, _, err := d.svc.ShowHints(ctx, d.userID, d.gameID)
	return err
}

// ToggleDuplicateHint flips a duplicate flag during hint comparison.
func (d *Driver) ToggleDuplicateHint(ctx context.Context, hintID string) error {
	_, _, err := d.svc.ToggleDuplicateHint(ctx, d.userID, d.gameID, hintID)
	return err
}

// Guess submits the user's guess.
func (d *Driver) Guess(ctx context.Context, text string) error {
	_, _, err := d.svc.Guess(ctx, d.userID, d.gameID, text)
	return err
}

// ResolveRound adjudicates the current round as the user.
func (d *Driver) ResolveRound(ctx context.Context, countAnyway *bool) error {
	_, _, err := d.svc.ResolveRound(ctx, d.userID, d.gameID, countAnyway)
	return err
}

// WaitingOnUser reports whether the game needs the user's input.
func (d *Driver) WaitingOnUser(ctx context.Context) (bool, error) {
	g, err := d.Game(ctx)
	if err != nil {
		return false, err
	}
	if g.Phase == domain.PhaseEnd {
		return false, nil
	}
	for _, p := range domain.ActionRequiredFrom(g) {
		if p.ID == d.userID {
			return true, nil
		}
	}
	return false, nil
}

// Advance lets the AI companions act until the game waits on the user or
// ends. Correctly guessed rounds advance on their own, like the server does
// when any player confirms.
func (d *Driver) Advance(ctx context.Context) (*domain.Game, error) {
	for i := 0; i < advanceLimit; i++ {
		g, err := d.Game(ctx)
		if err != nil {
			return nil, err
		}
		if g.Phase == domain.PhaseEnd {
			return g, nil
		}

		waiting, err := d.WaitingOnUser(ctx)
		if err != nil {
			return nil, err
		}
		if waiting {
			return g, nil
		}

		// A correct guess leaves nobody required; confirm on the user's
		// behalf.
		if g.Phase == domain.PhaseSolution && domain.CountedCorrect(g.CurrentRound()) {
			if _, _, err := d.svc.ResolveRound(ctx, d.userID, d.gameID, nil); err != nil {
				return nil, err
			}
			continue
		}

		if err := d.stepAgents(ctx, g); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("tutorial did not settle after %d steps", advanceLimit)
}

// stepAgents executes the first companion action the game is waiting on.
func (d *Driver) stepAgents(ctx context.Context, g *domain.Game) error {
	for _, agent := range d.agents {
		action, ok := agent.NextAction(ctx, g)
		if !ok {
			continue
		}
		var err error
		switch action.Kind {
		case bot.ActionEnterWords:
			player := g.PlayerByID(agent.ID)
			if player == nil {
				continue
			}
			p := *player
			p.EnteredWords = action.Words
			_, _, err = d.svc.UpdatePlayer(ctx, agent.ID, d.gameID, p)
		case bot.ActionSubmitHint:
			_, _, err = d.svc.SubmitHint(ctx, agent.ID, d.gameID, action.HintID, action.Text)
		case bot.ActionShowHints:
			_, _, err = d.svc.ShowHints(ctx, agent.ID, d.gameID)
		case bot.ActionGuess:
			_, _, err = d.svc.Guess(ctx, agent.ID, d.gameID, action.Text)
		case bot.ActionResolve:
			_, _, err = d.svc.ResolveRound(ctx, agent.ID, d.gameID, nil)
		default:
			continue
		}
		return err
	}
	return fmt.Errorf("no companion can act in phase %s", g.Phase)
}
