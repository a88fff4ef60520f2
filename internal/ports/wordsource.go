package ports

import (
	"context"

	"oneword/internal/domain"
)

// WordSource supplies vocabulary and optional generated content for AI
// players. It is a pure data provider: it never drives state transitions.
type WordSource interface {
	// RandomWord returns a random secret word for the given language.
	RandomWord(language domain.Language) string

	// GenerateHint produces a one-word hint for the secret word. Used only to
	// pre-fill content a human would otherwise type.
	GenerateHint(ctx context.Context, word string, language domain.Language) (string, error)

	// GenerateGuess produces a guess from the revealed hints.
	GenerateGuess(ctx context.Context, hints []string, language domain.Language) (string, error)
}
