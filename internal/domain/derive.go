package domain

import "time"

// Derived state is recomputed from phase/round/rounds on every read and is
// never persisted; hint submission is incremental and must immediately
// narrow the pending-action set.

// CountedCorrect reports whether a resolved round counts for the group:
// either the guess matched or the round host ruled it acceptable.
func CountedCorrect(r *Round) bool {
	if r.Correct != nil && *r.Correct {
		return true
	}
	return r.CountAnyway != nil && *r.CountAnyway
}

// resolvedRounds returns the rounds that have been fully adjudicated.
func resolvedRounds(g *Game) []*Round {
	if g.Phase == PhaseEnd {
		return g.Rounds
	}
	if g.CurrentRound() == nil {
		return nil
	}
	return g.Rounds[:g.Round]
}

// CorrectRounds returns the resolved rounds that counted.
func CorrectRounds(g *Game) []*Round {
	var out []*Round
	for _, r := range resolvedRounds(g) {
		if CountedCorrect(r) {
			out = append(out, r)
		}
	}
	return out
}

// WrongRounds returns the resolved rounds that did not count.
func WrongRounds(g *Game) []*Round {
	var out []*Round
	for _, r := range resolvedRounds(g) {
		if !CountedCorrect(r) {
			out = append(out, r)
		}
	}
	return out
}

// ActionRequiredFrom computes the set of players the current phase waits on.
func ActionRequiredFrom(g *Game) []*Player {
	switch g.Phase {
	case PhasePreparation:
		var out []*Player
		for _, p := range g.Players {
			entered := 0
			for _, w := range p.EnteredWords {
				if NormalizeWord(w) != "" {
					entered++
				}
			}
			if entered < g.WordsPerPlayer {
				out = append(out, p)
			}
		}
		return out
	case PhaseHintWriting:
		r := g.CurrentRound()
		pending := make(map[string]bool)
		for _, h := range r.Hints {
			if h.Hint == "" {
				pending[h.AuthorID] = true
			}
		}
		var out []*Player
		for _, p := range g.Players {
			if pending[p.ID] {
				out = append(out, p)
			}
		}
		return out
	case PhaseHintComparing:
		if p := g.PlayerByID(g.CurrentRound().HostID); p != nil {
			return []*Player{p}
		}
	case PhaseGuessing:
		if p := g.PlayerByID(g.CurrentRound().GuesserID); p != nil {
			return []*Player{p}
		}
	case PhaseSolution:
		// A correct guess auto-accepts; only a wrong or unresolved guess
		// needs the round host's ruling.
		r := g.CurrentRound()
		if !CountedCorrect(r) {
			if p := g.PlayerByID(r.HostID); p != nil {
				return []*Player{p}
			}
		}
	}
	return nil
}

// ClearedForDeletion reports whether any former participant may garbage
// collect the game: finished and past the clearance window, or never started
// and stale since creation. The game host can always delete directly.
func ClearedForDeletion(g *Game, now time.Time, finishedAfter, unstartedAfter time.Duration) bool {
	if g.Phase == PhaseEnd && !g.EndTime.IsZero() {
		return now.Sub(g.EndTime) > finishedAfter
	}
	if g.StartTime.IsZero() && !g.CreationTime.IsZero() {
		return now.Sub(g.CreationTime) > unstartedAfter
	}
	return false
}
