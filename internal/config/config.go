package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// GameConfig holds tunables loaded from the data folder. Environment
// variables read in the Nakama adapter override individual fields.
type GameConfig struct {
	// DefaultLanguage is used when a game is created without one.
	DefaultLanguage string `json:"default_language"`
	// DefaultWordsPerPlayer seeds the preparation dialog.
	DefaultWordsPerPlayer int `json:"default_words_per_player"`
	// FinishedClearanceMinutes is how long after endTime any participant may
	// delete a finished game.
	FinishedClearanceMinutes int `json:"finished_clearance_minutes"`
	// UnstartedClearanceHours is how long after creation a never-started game
	// may be deleted by any participant.
	UnstartedClearanceHours int `json:"unstarted_clearance_hours"`
	// BotMinDelaySeconds and BotMaxDelaySeconds pace AI player actions.
	BotMinDelaySeconds int `json:"bot_min_delay_seconds"`
	BotMaxDelaySeconds int `json:"bot_max_delay_seconds"`
	// WordListPath points at the vocabulary data file.
	WordListPath string `json:"word_list_path"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}
		var c GameConfig
		if err := json.Unmarshal(data, &c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = &c
	})
	return loadErr
}

// GetGameConfig returns the global game configuration with defaults applied.
func GetGameConfig() GameConfig {
	c := GameConfig{}
	if cfg != nil {
		c = *cfg
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.DefaultWordsPerPlayer == 0 {
		c.DefaultWordsPerPlayer = 1
	}
	if c.FinishedClearanceMinutes == 0 {
		c.FinishedClearanceMinutes = 10
	}
	if c.UnstartedClearanceHours == 0 {
		c.UnstartedClearanceHours = 24
	}
	if c.BotMinDelaySeconds == 0 {
		c.BotMinDelaySeconds = 1
	}
	if c.BotMaxDelaySeconds == 0 {
		c.BotMaxDelaySeconds = 3
	}
	if c.WordListPath == "" {
		c.WordListPath = "data/words.json"
	}
	return c
}
