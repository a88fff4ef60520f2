package domain

import "time"

// Phase represents the lifecycle stage of a game.
type Phase string

const (
	// PhaseInit is the lobby state where players can join.
	PhaseInit Phase = "init"
	// PhasePreparation is the state where players submit their secret words.
	PhasePreparation Phase = "preparation"
	// PhaseHintWriting is the per-round state where non-guessers write hints.
	PhaseHintWriting Phase = "hintWriting"
	// PhaseHintComparing is the state where the round host reviews duplicates.
	PhaseHintComparing Phase = "hintComparing"
	// PhaseGuessing is the state where the current guesser acts.
	PhaseGuessing Phase = "guessing"
	// PhaseSolution is the state after a guess, awaiting resolution.
	PhaseSolution Phase = "solution"
	// PhaseEnd is the terminal state after the last round resolves.
	PhaseEnd Phase = "end"
)

// Language selects the vocabulary used for generated words.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
)

// Player holds the state for a participant in a game.
type Player struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Color        string   `json:"color"`
	EnteredWords []string `json:"enteredWords"`
	IsAI         bool     `json:"isAi"`
}

// Hint is one author's contribution within a round. Slots are created when
// the round starts and only their text and duplicate flag change afterwards.
type Hint struct {
	ID          string `json:"id"`
	Hint        string `json:"hint"`
	AuthorID    string `json:"authorId"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// Round is one word-guessing cycle with a fixed guesser, host and hint set.
type Round struct {
	Word      string  `json:"word"`
	AuthorID  string  `json:"authorId"`
	GuesserID string  `json:"guesserId"`
	HostID    string  `json:"hostId"`
	Hints     []*Hint `json:"hints"`
	Guess     string  `json:"guess"`
	// Correct is nil while the guess is unresolved, including after a forced
	// empty guess by the game host.
	Correct *bool `json:"correct"`
	// CountAnyway is the round host's override when a literal mismatch is
	// ruled acceptable.
	CountAnyway *bool `json:"countAnyway"`
}

// JoiningRequest is a proposal for a new or returning player to occupy an
// existing seat mid-game.
type JoiningRequest struct {
	ID              string `json:"id"`
	OldPlayerID     string `json:"oldPlayerId"`
	OldPlayerName   string `json:"oldPlayerName"`
	NewPlayer       Player `json:"newPlayer"`
	JoinAsNewPlayer bool   `json:"joinAsNewPlayer"`
	Accepted        bool   `json:"accepted"`
	Denied          bool   `json:"denied"`
}

// Game is the aggregate root. It is persisted and broadcast whole.
type Game struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	Players            []*Player         `json:"players"`
	HostID             string            `json:"hostId"`
	WordsPerPlayer     int               `json:"wordsPerPlayer"`
	Language           Language          `json:"language"`
	Round              int               `json:"round"`
	Phase              Phase             `json:"phase"`
	Rounds             []*Round          `json:"rounds"`
	JoiningRequests    []*JoiningRequest `json:"joiningRequests"`
	CreationTime       time.Time         `json:"creationTime"`
	StartTime          time.Time         `json:"startTime"`
	EndTime            time.Time         `json:"endTime"`
	RematchID          string            `json:"rematchId"`
	IsTwoPlayerVariant bool              `json:"isTwoPlayerVariant"`
}

// CurrentRound returns the active round, or nil outside the per-round phases.
func (g *Game) CurrentRound() *Round {
	if g.Round < 0 || g.Round >= len(g.Rounds) {
		return nil
	}
	switch g.Phase {
	case PhaseHintWriting, PhaseHintComparing, PhaseGuessing, PhaseSolution:
		return g.Rounds[g.Round]
	}
	return nil
}

// PlayerByID returns the player with the given id, or nil.
func (g *Game) PlayerByID(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// HintByID returns the hint with the given id in the current round, or nil.
func (g *Game) HintByID(id string) *Hint {
	r := g.CurrentRound()
	if r == nil {
		return nil
	}
	for _, h := range r.Hints {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// IsGameHost reports whether the given player created the game.
func (g *Game) IsGameHost(playerID string) bool {
	return playerID != "" && playerID == g.HostID
}

// IsRoundHost reports whether the given player referees the current round.
func (g *Game) IsRoundHost(playerID string) bool {
	r := g.CurrentRound()
	return r != nil && playerID != "" && playerID == r.HostID
}

// IsGuesser reports whether the given player must guess the current round.
func (g *Game) IsGuesser(playerID string) bool {
	r := g.CurrentRound()
	return r != nil && playerID != "" && playerID == r.GuesserID
}
