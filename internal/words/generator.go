package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"oneword/internal/domain"
)

// GeneratorConfig configures the chat-completions endpoint used for hint and
// guess generation. Any OpenAI-compatible server works.
type GeneratorConfig struct {
	URL        string // completions endpoint; required
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Generator asks a language model for one-word hints and guesses. It is used
// only to pre-fill content a human would otherwise type; failures fall back
// to random vocabulary at the call site.
type Generator struct {
	cfg GeneratorConfig
}

// NewGenerator builds a Generator, or nil when no endpoint is configured.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Generator{cfg: cfg}
}

// Hint requests a single-word hint for the secret word.
func (g *Generator) Hint(ctx context.Context, word string, language domain.Language) (string, error) {
	prompt := fmt.Sprintf(
		"We are playing the party game Just One in language %q. The secret word is %q. Reply with exactly one word that hints at the secret word without containing it.",
		language, word)
	return g.complete(ctx, prompt)
}

// Guess requests a guess from the revealed hints.
func (g *Generator) Guess(ctx context.Context, hints []string, language domain.Language) (string, error) {
	prompt := fmt.Sprintf(
		"We are playing the party game Just One in language %q. The hints are: %s. Reply with exactly one word: your guess for the secret word.",
		language, strings.Join(hints, ", "))
	return g.complete(ctx, prompt)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    g.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}
	resp, err := g.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion request returned status %d", resp.StatusCode)
	}
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
