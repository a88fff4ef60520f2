package nakama

import (
	"context"
	"encoding/json"
	"fmt"

	"oneword/internal/domain"
	"oneword/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	gamesCollection = "games"
	listPageSize    = 100
)

// StorageGameRepository implements ports.GameRepository on Nakama's storage
// engine. Documents are system-owned and written without a version token, so
// concurrent writers follow last-write-wins.
type StorageGameRepository struct {
	nk runtime.NakamaModule
}

// NewStorageGameRepository creates a game repository backed by Nakama storage.
func NewStorageGameRepository(nk runtime.NakamaModule) *StorageGameRepository {
	return &StorageGameRepository{nk: nk}
}

// GetOne loads a game by id. Unknown ids return (nil, nil).
func (r *StorageGameRepository) GetOne(ctx context.Context, id string) (*domain.Game, error) {
	objects, err := r.nk.StorageRead(ctx, []*runtime.StorageRead{
		{Collection: gamesCollection, Key: id},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read game %s: %w", id, err)
	}
	if len(objects) == 0 {
		return nil, nil
	}

	var game domain.Game
	if err := json.Unmarshal([]byte(objects[0].Value), &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", id, err)
	}
	return &game, nil
}

// GetAll returns every stored game.
func (r *StorageGameRepository) GetAll(ctx context.Context) ([]*domain.Game, error) {
	var games []*domain.Game
	cursor := ""
	for {
		objects, next, err := r.nk.StorageList(ctx, "", "", gamesCollection, listPageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		for _, obj := range objects {
			var game domain.Game
			if err := json.Unmarshal([]byte(obj.Value), &game); err != nil {
				return nil, fmt.Errorf("failed to unmarshal game %s: %w", obj.Key, err)
			}
			games = append(games, &game)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return games, nil
}

// Add stores a new game document.
func (r *StorageGameRepository) Add(ctx context.Context, game *domain.Game) error {
	return r.write(ctx, game)
}

// Update replaces the stored document wholesale.
func (r *StorageGameRepository) Update(ctx context.Context, game *domain.Game) error {
	return r.write(ctx, game)
}

func (r *StorageGameRepository) write(ctx context.Context, game *domain.Game) error {
	value, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal game %s: %w", game.ID, err)
	}
	_, err = r.nk.StorageWrite(ctx, []*runtime.StorageWrite{
		{
			Collection:      gamesCollection,
			Key:             game.ID,
			Value:           string(value),
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write game %s: %w", game.ID, err)
	}
	return nil
}

// Delete removes the document. Unknown ids are not an error.
func (r *StorageGameRepository) Delete(ctx context.Context, id string) error {
	err := r.nk.StorageDelete(ctx, []*runtime.StorageDelete{
		{Collection: gamesCollection, Key: id},
	})
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	return nil
}

var _ ports.GameRepository = (*StorageGameRepository)(nil)
