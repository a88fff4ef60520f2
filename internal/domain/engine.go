package domain

import (
	"fmt"
	"strings"
	"time"
)

// The transition functions below are deterministic and free of I/O so the
// same code runs behind the networked command layer and the offline tutorial
// driver. Every function is a no-op when its preconditions are not met; a
// stray duplicate or late command must never corrupt state. Authorization is
// the command layer's job, not the engine's.

// MinPlayers is the smallest group a regular game can start with. The
// two-player variant lowers the bound to exactly two.
const MinPlayers = 3

// smallGroupThreshold is the player count below which every non-guesser
// contributes two hints, so duplicate detection stays meaningful.
const smallGroupThreshold = 4

// NormalizeWord reduces text to its first whitespace-delimited token. Hints,
// secret words and guesses are all single words by rule; everything after the
// first space is silently dropped rather than rejected.
func NormalizeWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// WordsEqual compares two words case-insensitively after normalization.
func WordsEqual(a, b string) bool {
	return strings.EqualFold(NormalizeWord(a), NormalizeWord(b))
}

// AddPlayer appends a player in the lobby. Join order is semantically
// significant: it defines the guess and host rotation for the whole game.
func AddPlayer(g *Game, p Player) {
	if g.Phase != PhaseInit || p.ID == "" || g.PlayerByID(p.ID) != nil {
		return
	}
	np := p
	g.Players = append(g.Players, &np)
	if g.HostID == "" {
		g.HostID = np.ID
	}
}

// UpdatePlayer replaces a player's mutable fields. During preparation this is
// how entered words arrive.
func UpdatePlayer(g *Game, p Player) {
	existing := g.PlayerByID(p.ID)
	if existing == nil {
		return
	}
	switch g.Phase {
	case PhaseInit:
		if p.Name != "" {
			existing.Name = p.Name
		}
		if p.Color != "" {
			existing.Color = p.Color
		}
	case PhasePreparation:
		if p.Name != "" {
			existing.Name = p.Name
		}
		if p.Color != "" {
			existing.Color = p.Color
		}
		if p.EnteredWords != nil {
			existing.EnteredWords = p.EnteredWords
		}
	}
}

// RemovePlayer removes a player before the rounds are built. Mid-game seats
// change hands through joining requests instead so rotation stays intact.
func RemovePlayer(g *Game, playerID string) {
	if g.Phase != PhaseInit && g.Phase != PhasePreparation {
		return
	}
	for i, p := range g.Players {
		if p.ID == playerID {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			break
		}
	}
	if g.HostID == playerID && len(g.Players) > 0 {
		g.HostID = g.Players[0].ID
	}
}

// StartPreparation moves the lobby into word collection.
func StartPreparation(g *Game, wordsPerPlayer int, isTwoPlayerVariant bool, language Language) {
	if g.Phase != PhaseInit || wordsPerPlayer < 1 {
		return
	}
	min := MinPlayers
	if isTwoPlayerVariant {
		min = 2
	}
	if len(g.Players) < min {
		return
	}
	g.WordsPerPlayer = wordsPerPlayer
	g.IsTwoPlayerVariant = isTwoPlayerVariant
	if language != "" {
		g.Language = language
	}
	g.Phase = PhasePreparation
}

// BackToLobby aborts word collection. Entered words are kept so players can
// edit them on the next attempt; any built rounds are discarded.
func BackToLobby(g *Game) {
	if g.Phase != PhasePreparation {
		return
	}
	g.Phase = PhaseInit
	g.Rounds = nil
	g.Round = 0
}

// AllWordsEntered reports whether every player has submitted the required
// number of non-empty words.
func AllWordsEntered(g *Game) bool {
	if g.Phase != PhasePreparation || len(g.Players) == 0 {
		return false
	}
	for _, p := range g.Players {
		entered := 0
		for _, w := range p.EnteredWords {
			if NormalizeWord(w) != "" {
				entered++
			}
		}
		if entered < g.WordsPerPlayer {
			return false
		}
	}
	return true
}

// StartGame builds the round list once and enters the first round. It
// returns false if the game is not ready to start.
//
// For round index i with N players, the guesser is players[i mod N] and the
// word comes from an adjacent player: the next player on even rotations and
// the previous one on odd rotations, so nobody immediately guesses a word
// entered right before their own turn. Rounds whose word normalizes to empty
// are filtered out before assignment.
func StartGame(g *Game, now time.Time) bool {
	if !AllWordsEntered(g) {
		return false
	}
	n := len(g.Players)
	total := g.WordsPerPlayer * n
	rounds := make([]*Round, 0, total)
	for i := 0; i < total; i++ {
		guesserIndex := i % n
		guessTime := i / n
		var sourceIndex int
		if guessTime%2 == 0 {
			sourceIndex = (guesserIndex + 1) % n
		} else {
			sourceIndex = (guesserIndex - 1 + n) % n
		}
		source := g.Players[sourceIndex]
		if guessTime >= len(source.EnteredWords) {
			continue
		}
		word := NormalizeWord(source.EnteredWords[guessTime])
		if word == "" {
			continue
		}
		rounds = append(rounds, &Round{
			Word:     word,
			AuthorID: source.ID,
		})
	}
	if len(rounds) == 0 {
		return false
	}
	g.Rounds = rounds
	g.Round = 0
	g.StartTime = now
	startRound(g)
	return true
}

// startRound assigns the rotation for the current round index and resets the
// round's mutable state. The guesser is players[round mod N]; the round host
// is the next guesser, players[(round+1) mod N].
func startRound(g *Game) {
	r := g.Rounds[g.Round]
	n := len(g.Players)
	r.GuesserID = g.Players[g.Round%n].ID
	r.HostID = g.Players[(g.Round+1)%n].ID
	r.Guess = ""
	r.Correct = nil
	r.CountAnyway = nil
	r.Hints = buildHintSlots(g, r.GuesserID)
	g.Phase = PhaseHintWriting
}

// buildHintSlots creates one empty slot per non-guesser, doubled for small
// groups. Slot ids are deterministic so the server and the tutorial replica
// agree given identical player lists.
func buildHintSlots(g *Game, guesserID string) []*Hint {
	var hints []*Hint
	passes := 1
	if len(g.Players) < smallGroupThreshold {
		passes = 2
	}
	for pass := 0; pass < passes; pass++ {
		for _, p := range g.Players {
			if p.ID == guesserID {
				continue
			}
			hints = append(hints, &Hint{
				ID:       fmt.Sprintf("%d-%s-%d", g.Round, p.ID, pass),
				AuthorID: p.ID,
			})
		}
	}
	return hints
}

// SubmitHint fills the author's first unfilled slot with the normalized
// text. If all of the author's slots are already filled the first one is
// overwritten, which covers edits in the doubled-slot case. Authors without
// a slot (the guesser) are ignored.
func SubmitHint(g *Game, authorID, text string) {
	if g.Phase != PhaseHintWriting {
		return
	}
	word := NormalizeWord(text)
	if word == "" {
		return
	}
	r := g.Rounds[g.Round]
	var fallback *Hint
	var target *Hint
	for _, h := range r.Hints {
		if h.AuthorID != authorID {
			continue
		}
		if fallback == nil {
			fallback = h
		}
		if h.Hint == "" {
			target = h
			break
		}
	}
	if target == nil {
		target = fallback
	}
	if target == nil {
		return
	}
	target.Hint = word
	if allHintsFilled(r) {
		enterHintComparing(g)
	}
}

// ResetHint clears a hint slot during hint writing.
func ResetHint(g *Game, hintID string) {
	if g.Phase != PhaseHintWriting {
		return
	}
	if h := g.HintByID(hintID); h != nil {
		h.Hint = ""
	}
}

// EndHintPhase forces the transition to hint comparison, leaving any
// unfilled slots empty. Used by the game host to unblock a stalled round.
func EndHintPhase(g *Game) {
	if g.Phase != PhaseHintWriting {
		return
	}
	enterHintComparing(g)
}

func allHintsFilled(r *Round) bool {
	for _, h := range r.Hints {
		if h.Hint == "" {
			return false
		}
	}
	return true
}

func enterHintComparing(g *Game) {
	g.Phase = PhaseHintComparing
	MarkDuplicates(g.Rounds[g.Round])
}

// MarkDuplicates flags every hint whose text occurs more than once in the
// round, case-insensitively. Empty slots are ignored. This is a default the
// round host can override hint by hint; the recompute only happens on phase
// entry, so manual toggles stick until then.
func MarkDuplicates(r *Round) {
	counts := make(map[string]int, len(r.Hints))
	for _, h := range r.Hints {
		if h.Hint == "" {
			continue
		}
		counts[strings.ToLower(h.Hint)]++
	}
	for _, h := range r.Hints {
		if h.Hint == "" {
			h.IsDuplicate = false
			continue
		}
		h.IsDuplicate = counts[strings.ToLower(h.Hint)] > 1
	}
}

// ToggleDuplicateHint flips a hint's duplicate flag during comparison.
func ToggleDuplicateHint(g *Game, hintID string) {
	if g.Phase != PhaseHintComparing {
		return
	}
	if h := g.HintByID(hintID); h != nil {
		h.IsDuplicate = !h.IsDuplicate
	}
}

// ShowHints reveals the surviving hints to the guesser.
func ShowHints(g *Game) {
	if g.Phase != PhaseHintComparing {
		return
	}
	g.Phase = PhaseGuessing
}

// Guess records the guesser's attempt and judges it against the secret word,
// case-insensitively on first tokens. Empty guesses are ignored; the game
// host's forced advance goes through ForceEmptyGuess instead.
func Guess(g *Game, text string) {
	if g.Phase != PhaseGuessing {
		return
	}
	r := g.Rounds[g.Round]
	if NormalizeWord(r.Word) == "" || NormalizeWord(text) == "" {
		return
	}
	r.Guess = text
	correct := WordsEqual(text, r.Word)
	r.Correct = &correct
	g.Phase = PhaseSolution
}

// ForceEmptyGuess advances a stalled guessing phase without recording a
// guess. The word is not compared and the round stays unresolved until the
// round host adjudicates it.
func ForceEmptyGuess(g *Game) {
	if g.Phase != PhaseGuessing {
		return
	}
	r := g.Rounds[g.Round]
	r.Guess = ""
	r.Correct = nil
	g.Phase = PhaseSolution
}

// ResolveRound finishes the current round, optionally applying the round
// host's countAnyway override, and enters the next round's hint writing or
// ends the game after the last round.
func ResolveRound(g *Game, countAnyway *bool, now time.Time) {
	if g.Phase != PhaseSolution {
		return
	}
	r := g.Rounds[g.Round]
	if countAnyway != nil {
		v := *countAnyway
		r.CountAnyway = &v
	}
	if g.Round >= len(g.Rounds)-1 {
		g.Phase = PhaseEnd
		g.EndTime = now
		return
	}
	g.Round++
	startRound(g)
}

// HandleJoining resolves a pending take-over request. On acceptance the old
// seat's player is replaced in place and every reference to the old id in
// rounds and hints is rewritten, so the rotation stays derivable from the
// player list. Without joinAsNewPlayer the old name and color are kept and
// only the identity behind the seat changes.
func HandleJoining(g *Game, joiningID string, deny bool) {
	var req *JoiningRequest
	for _, jr := range g.JoiningRequests {
		if jr.ID == joiningID {
			req = jr
			break
		}
	}
	if req == nil || req.Accepted || req.Denied {
		return
	}
	if deny {
		req.Denied = true
		return
	}
	old := g.PlayerByID(req.OldPlayerID)
	if old == nil || req.NewPlayer.ID == "" {
		req.Denied = true
		return
	}
	req.Accepted = true
	replacement := req.NewPlayer
	replacement.EnteredWords = old.EnteredWords
	replacement.IsAI = false
	if !req.JoinAsNewPlayer {
		replacement.Name = old.Name
		replacement.Color = old.Color
	}
	for i, p := range g.Players {
		if p.ID == old.ID {
			g.Players[i] = &replacement
			break
		}
	}
	rewritePlayerID(g, old.ID, replacement.ID)
}

func rewritePlayerID(g *Game, oldID, newID string) {
	if g.HostID == oldID {
		g.HostID = newID
	}
	for _, r := range g.Rounds {
		if r.AuthorID == oldID {
			r.AuthorID = newID
		}
		if r.GuesserID == oldID {
			r.GuesserID = newID
		}
		if r.HostID == oldID {
			r.HostID = newID
		}
		for _, h := range r.Hints {
			if h.AuthorID == oldID {
				h.AuthorID = newID
			}
		}
	}
}
