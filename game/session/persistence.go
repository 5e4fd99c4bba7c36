package session

import (
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

// SessionPersistence defines the interface for persisting sessions.
// Save reads the session's game, so callers hold the session lock.
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID          string                                 `json:"id"`
	CreatedAt   time.Time                              `json:"created_at"`
	ConcludedAt time.Time                              `json:"concluded_at,omitempty"`
	Profiles    map[engine.Color]account.PublicProfile `json:"profiles,omitempty"`
	Game        *engine.Game                           `json:"game"`
}
