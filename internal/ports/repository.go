package ports

import (
	"context"

	"oneword/internal/domain"
)

// GameRepository persists Game aggregates as whole documents keyed by id.
// Implementations return a deep copy from reads so callers can mutate freely,
// and overwrite the full document on update (last-write-wins; there is no
// concurrency token).
type GameRepository interface {
	// GetOne loads a game by id. It returns (nil, nil) when the id is unknown.
	GetOne(ctx context.Context, id string) (*domain.Game, error)

	// GetAll returns every stored game, for the lobby list.
	GetAll(ctx context.Context) ([]*domain.Game, error)

	// Add stores a new game document.
	Add(ctx context.Context, game *domain.Game) error

	// Update replaces the stored document wholesale.
	Update(ctx context.Context, game *domain.Game) error

	// Delete removes the document. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
