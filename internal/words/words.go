// Package words supplies random vocabulary per language and, optionally,
// AI-generated hints and guesses. It is a pure data provider: nothing in
// here drives game state transitions.
package words

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"oneword/internal/domain"
)

// wordList is the on-disk shape of the vocabulary file: language -> words.
type wordList map[string][]string

var (
	fileWords wordList
	loadOnce  sync.Once
	loadErr   error
)

// LoadWordList loads the vocabulary from the given path. Missing files are
// an error the caller may choose to ignore; the built-in fallback lists keep
// the game playable without a data file.
func LoadWordList(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read word list: %w", err)
			return
		}
		var wl wordList
		if err := json.Unmarshal(data, &wl); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal word list: %w", err)
			return
		}
		fileWords = wl
	})
	return loadErr
}

// Source implements ports.WordSource. When a Generator is set it produces
// hints and guesses; otherwise random vocabulary stands in.
type Source struct {
	Generator *Generator
	rng       *rand.Rand
}

// NewSource constructs a Source with the provided rng or a time-seeded
// default. gen may be nil to disable AI generation.
func NewSource(gen *Generator, rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{Generator: gen, rng: rng}
}

// RandomWord returns a random word for the language, preferring the loaded
// data file over the built-in lists.
func (s *Source) RandomWord(language domain.Language) string {
	list := s.listFor(language)
	if len(list) == 0 {
		return ""
	}
	return list[s.rng.Intn(len(list))]
}

func (s *Source) listFor(language domain.Language) []string {
	if fileWords != nil {
		if list, ok := fileWords[string(language)]; ok && len(list) > 0 {
			return list
		}
	}
	if list, ok := fallbackWords[language]; ok {
		return list
	}
	return fallbackWords[domain.LanguageEnglish]
}

// GenerateHint produces a one-word hint for the secret word. Without a
// generator a random word fills in; the content is advisory either way.
func (s *Source) GenerateHint(ctx context.Context, word string, language domain.Language) (string, error) {
	if s.Generator != nil {
		hint, err := s.Generator.Hint(ctx, word, language)
		if err == nil && domain.NormalizeWord(hint) != "" {
			return domain.NormalizeWord(hint), nil
		}
	}
	return s.randomWordExcept(language, word), nil
}

// GenerateGuess produces a guess from the revealed hints.
func (s *Source) GenerateGuess(ctx context.Context, hints []string, language domain.Language) (string, error) {
	if s.Generator != nil {
		guess, err := s.Generator.Guess(ctx, hints, language)
		if err == nil && domain.NormalizeWord(guess) != "" {
			return domain.NormalizeWord(guess), nil
		}
	}
	return s.RandomWord(language), nil
}

func (s *Source) randomWordExcept(language domain.Language, avoid string) string {
	for i := 0; i < 10; i++ {
		w := s.RandomWord(language)
		if !domain.WordsEqual(w, avoid) {
			return w
		}
	}
	return s.RandomWord(language)
}

var fallbackWords = map[domain.Language][]string{
	domain.LanguageEnglish: {
		"Titanic", "Piano", "Desert", "Lighthouse", "Carnival", "Compass",
		"Volcano", "Library", "Penguin", "Harvest", "Bridge", "Circus",
		"Anchor", "Galaxy", "Honey", "Mirror", "Forest", "Rocket",
		"Castle", "Thunder", "Violin", "Island", "Lantern", "Feather",
		"Glacier", "Pirate", "Garden", "Whistle", "Shadow", "Treasure",
	},
	domain.LanguageGerman: {
		"Leuchtturm", "Klavier", "Wüste", "Karneval", "Kompass", "Vulkan",
		"Bibliothek", "Pinguin", "Ernte", "Brücke", "Zirkus", "Anker",
		"Galaxie", "Honig", "Spiegel", "Wald", "Rakete", "Schloss",
		"Donner", "Geige", "Insel", "Laterne", "Feder", "Gletscher",
		"Pirat", "Garten", "Pfeife", "Schatten", "Schatz", "Segel",
	},
}
