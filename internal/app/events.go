package app

import "oneword/internal/domain"

// EventKind identifies emitted app events for gateway dispatch.
type EventKind string

const (
	// EventGameUpdated carries the full game snapshot after a successful
	// mutation. Clients treat each snapshot as the latest complete state.
	EventGameUpdated EventKind = "game_updated"
	// EventGamesChanged signals that the set of joinable games changed.
	EventGamesChanged EventKind = "games_changed"
	// EventGameDeleted tells room members their game is gone.
	EventGameDeleted EventKind = "game_deleted"
	// EventNotification carries a translated toast for some or all players.
	EventNotification EventKind = "notification"
	// EventConfetti triggers the decorative celebration on clients.
	EventConfetti EventKind = "confetti"
	// EventGameEnded carries the final tally for wallet settlement.
	EventGameEnded EventKind = "game_ended"
)

// Severity tags a notification for client presentation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Event is an app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // player ids; empty means broadcast to the room
}

// NotificationPayload is a message key plus template parameters; the client
// owns the translation.
type NotificationPayload struct {
	Key      string            `json:"key"`
	Params   map[string]string `json:"params,omitempty"`
	Severity Severity          `json:"severity"`
}

// ConfettiPayload optionally tints the confetti with player colors.
type ConfettiPayload struct {
	Colors []string `json:"colors,omitempty"`
}

// GameDeletedPayload identifies the removed game.
type GameDeletedPayload struct {
	GameID string `json:"gameId"`
}

// GameEndedPayload is the final score: stars to credit per player.
type GameEndedPayload struct {
	GameID       string           `json:"gameId"`
	CorrectWords int              `json:"correctWords"`
	WrongWords   int              `json:"wrongWords"`
	Stars        map[string]int64 `json:"stars"`
}

// snapshotEvent wraps the updated aggregate for room broadcast.
func snapshotEvent(g *domain.Game) Event {
	return Event{Kind: EventGameUpdated, Payload: g}
}

func notify(key string, params map[string]string, severity Severity, recipients ...string) Event {
	return Event{
		Kind:       EventNotification,
		Payload:    NotificationPayload{Key: key, Params: params, Severity: severity},
		Recipients: recipients,
	}
}
