package bot

import (
	"context"

	"oneword/internal/domain"
	"oneword/internal/ports"
)

// ActionKind identifies the kind of move an agent wants to make.
type ActionKind string

const (
	ActionEnterWords ActionKind = "enterWords"
	ActionSubmitHint ActionKind = "submitHint"
	ActionShowHints  ActionKind = "showHints"
	ActionGuess      ActionKind = "guess"
	ActionResolve    ActionKind = "resolve"
)

// Action is the decision an agent made for the current game state.
type Action struct {
	Kind   ActionKind
	HintID string
	Text   string
	Words  []string
}

// Agent represents an autonomous AI player. It only decides; the caller
// executes the action through the command layer so authorization and
// persistence stay in one place.
type Agent struct {
	ID    string
	Name  string
	Words ports.WordSource
}

// NextAction calculates the agent's move for the current game state.
// ok is false when the game is not waiting on this agent.
func (a *Agent) NextAction(ctx context.Context, g *domain.Game) (Action, bool) {
	player := g.PlayerByID(a.ID)
	if player == nil {
		return Action{}, false
	}

	switch g.Phase {
	case domain.PhasePreparation:
		return a.enterWords(g, player)
	case domain.PhaseHintWriting:
		return a.writeHint(ctx, g)
	case domain.PhaseHintComparing:
		if g.IsRoundHost(a.ID) {
			return Action{Kind: ActionShowHints}, true
		}
	case domain.PhaseGuessing:
		if g.IsGuesser(a.ID) {
			return a.guess(ctx, g)
		}
	case domain.PhaseSolution:
		r := g.CurrentRound()
		if r != nil && g.IsRoundHost(a.ID) && !domain.CountedCorrect(r) {
			return Action{Kind: ActionResolve}, true
		}
	}
	return Action{}, false
}

func (a *Agent) enterWords(g *domain.Game, player *domain.Player) (Action, bool) {
	words := make([]string, 0, g.WordsPerPlayer)
	for _, w := range player.EnteredWords {
		if domain.NormalizeWord(w) != "" {
			words = append(words, w)
		}
	}
	if len(words) >= g.WordsPerPlayer {
		return Action{}, false
	}
	for len(words) < g.WordsPerPlayer {
		words = append(words, a.Words.RandomWord(g.Language))
	}
	return Action{Kind: ActionEnterWords, Words: words}, true
}

func (a *Agent) writeHint(ctx context.Context, g *domain.Game) (Action, bool) {
	r := g.CurrentRound()
	if r == nil {
		return Action{}, false
	}
	var slot *domain.Hint
	for _, h := range r.Hints {
		if h.AuthorID == a.ID && domain.NormalizeWord(h.Hint) == "" {
			slot = h
			break
		}
	}
	if slot == nil {
		return Action{}, false
	}

	text, err := a.Words.GenerateHint(ctx, r.Word, g.Language)
	if err != nil || domain.NormalizeWord(text) == "" {
		text = a.Words.RandomWord(g.Language)
	}
	return Action{Kind: ActionSubmitHint, HintID: slot.ID, Text: text}, true
}

func (a *Agent) guess(ctx context.Context, g *domain.Game) (Action, bool) {
	r := g.CurrentRound()
	if r == nil {
		return Action{}, false
	}
	var hints []string
	for _, h := range r.Hints {
		if !h.IsDuplicate && domain.NormalizeWord(h.Hint) != "" {
			hints = append(hints, domain.NormalizeWord(h.Hint))
		}
	}

	text, err := a.Words.GenerateGuess(ctx, hints, g.Language)
	if err != nil || domain.NormalizeWord(text) == "" {
		text = a.Words.RandomWord(g.Language)
	}
	return Action{Kind: ActionGuess, Text: text}, true
}
