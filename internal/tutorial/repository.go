// Package tutorial runs a complete offline game against AI co-players. It
// reuses the server's engine and command layer unchanged, so the tutorial
// behaves exactly like a real game.
package tutorial

import (
	"context"
	"encoding/json"
	"sync"

	"oneword/internal/domain"
	"oneword/internal/ports"
)

// MemoryRepository is an in-process GameRepository with the same document
// semantics as the storage-backed one: reads return copies, updates replace
// the whole document.
type MemoryRepository struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]byte)}
}

func (r *MemoryRepository) GetOne(ctx context.Context, id string) (*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	var g domain.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *MemoryRepository) GetAll(ctx context.Context) ([]*domain.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Game, 0, len(r.docs))
	for _, raw := range r.docs {
		var g domain.Game
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, nil
}

func (r *MemoryRepository) Add(ctx context.Context, game *domain.Game) error {
	return r.Update(ctx, game)
}

func (r *MemoryRepository) Update(ctx context.Context, game *domain.Game) error {
	raw, err := json.Marshal(game)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[game.ID] = raw
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

var _ ports.GameRepository = (*MemoryRepository)(nil)
