package domain

import (
	"fmt"
	"testing"
	"time"
)

func newLobbyGame(n int) *Game {
	g := &Game{ID: "g1", Name: "test", Phase: PhaseInit, Language: LanguageEnglish}
	for i := 0; i < n; i++ {
		AddPlayer(g, Player{ID: fmt.Sprintf("p%d", i), Name: fmt.Sprintf("Player %d", i)})
	}
	return g
}

// startedGame builds a game of n players with wordsPerPlayer words each and
// advances it into the first round.
func startedGame(t *testing.T, n, wordsPerPlayer int) *Game {
	t.Helper()
	g := newLobbyGame(n)
	StartPreparation(g, wordsPerPlayer, n == 2, "")
	if g.Phase != PhasePreparation {
		t.Fatalf("phase = %s, want preparation", g.Phase)
	}
	for i, p := range g.Players {
		words := make([]string, wordsPerPlayer)
		for w := range words {
			words[w] = fmt.Sprintf("word-%d-%d", i, w)
		}
		UpdatePlayer(g, Player{ID: p.ID, EnteredWords: words})
	}
	if !StartGame(g, time.Unix(1000, 0)) {
		t.Fatalf("game did not start")
	}
	return g
}

func TestAddPlayerAssignsHostAndKeepsOrder(t *testing.T) {
	g := newLobbyGame(3)
	if g.HostID != "p0" {
		t.Fatalf("host = %s, want p0", g.HostID)
	}
	// Duplicate ids are ignored.
	AddPlayer(g, Player{ID: "p1", Name: "again"})
	if len(g.Players) != 3 {
		t.Fatalf("players = %d, want 3", len(g.Players))
	}
	for i, p := range g.Players {
		if p.ID != fmt.Sprintf("p%d", i) {
			t.Fatalf("player %d = %s, join order not preserved", i, p.ID)
		}
	}
}

func TestStartPreparationNeedsEnoughPlayers(t *testing.T) {
	g := newLobbyGame(2)
	StartPreparation(g, 1, false, "")
	if g.Phase != PhaseInit {
		t.Fatalf("started with 2 players without the two-player variant")
	}
	StartPreparation(g, 1, true, "")
	if g.Phase != PhasePreparation {
		t.Fatalf("two-player variant should start with 2 players")
	}
}

func TestRoundConstructionCounts(t *testing.T) {
	for _, tc := range []struct{ n, words int }{{2, 1}, {3, 1}, {3, 2}, {4, 2}, {5, 3}} {
		g := startedGame(t, tc.n, tc.words)
		want := tc.n * tc.words
		if len(g.Rounds) != want {
			t.Fatalf("n=%d words=%d: rounds = %d, want %d", tc.n, tc.words, len(g.Rounds), want)
		}
		// Round-robin invariant: every player guesses rounds/N times.
		guessCounts := make(map[string]int)
		for i := range g.Rounds {
			guesserIndex := i % tc.n
			guessCounts[g.Players[guesserIndex].ID]++
		}
		for _, p := range g.Players {
			if guessCounts[p.ID] != tc.words {
				t.Fatalf("n=%d words=%d: player %s guesses %d times, want %d", tc.n, tc.words, p.ID, guessCounts[p.ID], tc.words)
			}
		}
	}
}

func TestRoundConstructionFiltersEmptyWords(t *testing.T) {
	g := newLobbyGame(3)
	StartPreparation(g, 1, false, "")
	UpdatePlayer(g, Player{ID: "p0", EnteredWords: []string{"multi word hint"}})
	UpdatePlayer(g, Player{ID: "p1", EnteredWords: []string{"beta"}})
	UpdatePlayer(g, Player{ID: "p2", EnteredWords: []string{"gamma"}})
	// The count check sees one non-empty word, but the slot the rounds are
	// built from is blank; that round is filtered, not an error.
	g.Players[1].EnteredWords = []string{"   ", "beta"}
	if !StartGame(g, time.Unix(0, 0)) {
		t.Fatalf("start failed")
	}
	if len(g.Rounds) != 2 {
		t.Fatalf("rounds = %d, want 2 after filtering the blank word", len(g.Rounds))
	}
	foundMulti := false
	for _, r := range g.Rounds {
		if r.Word == "" {
			t.Fatalf("empty word survived round construction")
		}
		if r.Word == "multi" {
			foundMulti = true
		}
	}
	if !foundMulti {
		t.Fatalf("expected a round with the normalized word %q", "multi")
	}
}

func TestRotationAssignsDistinctGuesserAndHost(t *testing.T) {
	g := startedGame(t, 3, 2)
	n := len(g.Players)
	for i := 0; i < len(g.Rounds); i++ {
		r := g.Rounds[g.Round]
		if r.GuesserID != g.Players[g.Round%n].ID {
			t.Fatalf("round %d guesser = %s, want %s", g.Round, r.GuesserID, g.Players[g.Round%n].ID)
		}
		if r.HostID != g.Players[(g.Round+1)%n].ID {
			t.Fatalf("round %d host = %s, want %s", g.Round, r.HostID, g.Players[(g.Round+1)%n].ID)
		}
		if r.GuesserID == r.HostID {
			t.Fatalf("round %d guesser and host are the same player", g.Round)
		}
		finishRound(t, g, false)
	}
	if g.Phase != PhaseEnd {
		t.Fatalf("phase = %s, want end", g.Phase)
	}
}

// finishRound pushes the current round through to resolution.
func finishRound(t *testing.T, g *Game, correctGuess bool) {
	t.Helper()
	r := g.Rounds[g.Round]
	for _, h := range r.Hints {
		if h.Hint == "" {
			SubmitHint(g, h.AuthorID, "clue-"+h.ID)
		}
	}
	if g.Phase != PhaseHintComparing {
		t.Fatalf("phase = %s after all hints, want hintComparing", g.Phase)
	}
	ShowHints(g)
	if correctGuess {
		Guess(g, r.Word)
	} else {
		Guess(g, "definitely-wrong")
	}
	ResolveRound(g, nil, time.Unix(2000, 0))
}

func TestSmallGroupDoublesHintSlots(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	if len(r.Hints) != 4 {
		t.Fatalf("hint slots = %d, want 4 (two non-guessers, doubled)", len(r.Hints))
	}
	g5 := startedGame(t, 5, 1)
	if len(g5.Rounds[0].Hints) != 4 {
		t.Fatalf("hint slots = %d, want 4 (four non-guessers, single)", len(g5.Rounds[0].Hints))
	}
}

func TestSubmitHintFillsAlternateSlotFirst(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	author := r.Hints[0].AuthorID
	SubmitHint(g, author, "first")
	SubmitHint(g, author, "second")
	var got []string
	for _, h := range r.Hints {
		if h.AuthorID == author {
			got = append(got, h.Hint)
		}
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("author slots = %v, want [first second]", got)
	}
}

func TestSubmitHintIgnoresGuesserAndNormalizes(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	SubmitHint(g, r.GuesserID, "sneaky")
	for _, h := range r.Hints {
		if h.Hint != "" {
			t.Fatalf("guesser filled a hint slot")
		}
	}
	author := r.Hints[0].AuthorID
	SubmitHint(g, author, "  two words here ")
	if r.Hints[0].Hint != "two" {
		t.Fatalf("hint = %q, want first token %q", r.Hints[0].Hint, "two")
	}
}

func TestAutoAdvanceToHintComparing(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	for i, h := range r.Hints {
		if g.Phase != PhaseHintWriting {
			t.Fatalf("advanced before slot %d was filled", i)
		}
		SubmitHint(g, h.AuthorID, fmt.Sprintf("unique%d", i))
	}
	if g.Phase != PhaseHintComparing {
		t.Fatalf("phase = %s, want hintComparing", g.Phase)
	}
}

func TestDuplicateDetectionCaseInsensitive(t *testing.T) {
	g := startedGame(t, 5, 1)
	r := g.Rounds[0]
	SubmitHint(g, r.Hints[0].AuthorID, "Dog")
	SubmitHint(g, r.Hints[1].AuthorID, "dog")
	SubmitHint(g, r.Hints[2].AuthorID, "Cat")
	SubmitHint(g, r.Hints[3].AuthorID, "mouse")
	if !r.Hints[0].IsDuplicate || !r.Hints[1].IsDuplicate {
		t.Fatalf("Dog/dog should both be duplicates")
	}
	if r.Hints[2].IsDuplicate || r.Hints[3].IsDuplicate {
		t.Fatalf("unique hints flagged as duplicates")
	}
}

func TestToggleDuplicateIsAuthoritative(t *testing.T) {
	g := startedGame(t, 5, 1)
	r := g.Rounds[0]
	for i, h := range r.Hints {
		SubmitHint(g, h.AuthorID, fmt.Sprintf("unique%d", i))
	}
	ToggleDuplicateHint(g, r.Hints[0].ID)
	if !r.Hints[0].IsDuplicate {
		t.Fatalf("toggle did not set duplicate flag")
	}
	ToggleDuplicateHint(g, r.Hints[0].ID)
	if r.Hints[0].IsDuplicate {
		t.Fatalf("toggle did not clear duplicate flag")
	}
}

func TestGuessFirstTokenCaseInsensitive(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	r.Word = "Titanic"
	for i, h := range r.Hints {
		SubmitHint(g, h.AuthorID, fmt.Sprintf("unique%d", i))
	}
	ShowHints(g)
	Guess(g, "titanic extra words")
	if g.Phase != PhaseSolution {
		t.Fatalf("phase = %s, want solution", g.Phase)
	}
	if r.Correct == nil || !*r.Correct {
		t.Fatalf("guess should have been judged correct")
	}
}

func TestForceEmptyGuessLeavesUnresolved(t *testing.T) {
	g := startedGame(t, 3, 1)
	r := g.Rounds[0]
	for i, h := range r.Hints {
		SubmitHint(g, h.AuthorID, fmt.Sprintf("unique%d", i))
	}
	ShowHints(g)
	Guess(g, "   ")
	if g.Phase != PhaseGuessing {
		t.Fatalf("empty guess should be ignored")
	}
	ForceEmptyGuess(g)
	if g.Phase != PhaseSolution || r.Guess != "" || r.Correct != nil {
		t.Fatalf("forced advance should record no guess, got guess=%q correct=%v phase=%s", r.Guess, r.Correct, g.Phase)
	}
}

func TestResolveCountAnywayAndEnd(t *testing.T) {
	g := startedGame(t, 3, 1)
	rounds := len(g.Rounds)
	for i := 0; i < rounds-1; i++ {
		finishRound(t, g, i%2 == 0)
	}
	// Last round: wrong guess, host counts it anyway.
	r := g.Rounds[g.Round]
	for j, h := range r.Hints {
		SubmitHint(g, h.AuthorID, fmt.Sprintf("unique%d", j))
	}
	ShowHints(g)
	Guess(g, "wrong")
	yes := true
	ResolveRound(g, &yes, time.Unix(5000, 0))
	if g.Phase != PhaseEnd {
		t.Fatalf("phase = %s, want end", g.Phase)
	}
	if g.EndTime.IsZero() {
		t.Fatalf("endTime not stamped")
	}
	if got := len(CorrectRounds(g)) + len(WrongRounds(g)); got != rounds {
		t.Fatalf("tallies sum to %d, want %d", got, rounds)
	}
	if !CountedCorrect(r) {
		t.Fatalf("countAnyway override should count the round")
	}
}

func TestTransitionsAreNoOpsOutOfPhase(t *testing.T) {
	g := newLobbyGame(3)
	before := g.Phase
	SubmitHint(g, "p1", "clue")
	ShowHints(g)
	Guess(g, "word")
	ResolveRound(g, nil, time.Unix(0, 0))
	EndHintPhase(g)
	BackToLobby(g)
	if g.Phase != before || len(g.Rounds) != 0 {
		t.Fatalf("out-of-phase commands changed state")
	}
}

func TestBackToLobbyKeepsWords(t *testing.T) {
	g := newLobbyGame(3)
	StartPreparation(g, 1, false, "")
	UpdatePlayer(g, Player{ID: "p0", EnteredWords: []string{"kept"}})
	BackToLobby(g)
	if g.Phase != PhaseInit {
		t.Fatalf("phase = %s, want init", g.Phase)
	}
	if len(g.Players[0].EnteredWords) != 1 || g.Players[0].EnteredWords[0] != "kept" {
		t.Fatalf("entered words lost on back to lobby")
	}
}

func TestHandleJoiningRewritesIDs(t *testing.T) {
	g := startedGame(t, 3, 1)
	old := g.Players[1]
	g.JoiningRequests = append(g.JoiningRequests, &JoiningRequest{
		ID:          "jr1",
		OldPlayerID: old.ID,
		NewPlayer:   Player{ID: "px", Name: "Xavier", Color: "teal"},
	})
	HandleJoining(g, "jr1", false)
	if g.Players[1].ID != "px" {
		t.Fatalf("seat not taken over")
	}
	if g.Players[1].Name != old.Name {
		t.Fatalf("without joinAsNewPlayer the old name should be kept")
	}
	for _, r := range g.Rounds {
		if r.AuthorID == old.ID || r.GuesserID == old.ID || r.HostID == old.ID {
			t.Fatalf("stale player id left in rounds")
		}
		for _, h := range r.Hints {
			if h.AuthorID == old.ID {
				t.Fatalf("stale player id left in hints")
			}
		}
	}
}

func TestHandleJoiningDeny(t *testing.T) {
	g := startedGame(t, 3, 1)
	g.JoiningRequests = append(g.JoiningRequests, &JoiningRequest{
		ID:          "jr1",
		OldPlayerID: g.Players[1].ID,
		NewPlayer:   Player{ID: "px"},
	})
	HandleJoining(g, "jr1", true)
	if !g.JoiningRequests[0].Denied || g.JoiningRequests[0].Accepted {
		t.Fatalf("deny not recorded")
	}
	// A settled request cannot flip.
	HandleJoining(g, "jr1", false)
	if g.JoiningRequests[0].Accepted {
		t.Fatalf("denied request was later accepted")
	}
}
