package ports

import "context"

// WalletUpdate represents a single star-balance change for a user.
type WalletUpdate struct {
	UserID   string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort defines the interface for managing the star currency players
// collect from correctly guessed words.
type EconomyPort interface {
	// GetBalance retrieves the current star balance for a user.
	GetBalance(ctx context.Context, userID string) (int64, error)

	// UpdateBalances applies multiple wallet changes.
	// Used at the end of a game to credit every player's stars.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}
