package session

import (
	"sync"
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

// Slot is the connection binding of one side. An empty ConnID means the
// player is currently disconnected.
type Slot struct {
	ConnID         string    `json:"-"`
	DisconnectedAt time.Time `json:"disconnectedAt,omitempty"`
}

// Session is one live match together with its connection bindings. Every
// read or write of Game, the slots or ConcludedAt happens under Lock.
type Session struct {
	ID          string
	Game        *engine.Game
	White       Slot
	Black       Slot
	Profiles    map[engine.Color]account.PublicProfile
	CreatedAt   time.Time
	ConcludedAt time.Time

	removed bool
	mu      sync.Mutex
}

// Lock acquires exclusive access to the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Removed reports whether the session has left the registry. Callers that
// looked the session up before locking it must check this first.
func (s *Session) Removed() bool { return s.removed }

// Slot returns the binding for c.
func (s *Session) Slot(c engine.Color) *Slot {
	switch c {
	case engine.White:
		return &s.White
	case engine.Black:
		return &s.Black
	}
	return nil
}

// ConnIDs returns the connection ids currently bound to the session.
func (s *Session) ConnIDs() []string {
	var ids []string
	for _, slot := range []Slot{s.White, s.Black} {
		if slot.ConnID != "" {
			ids = append(ids, slot.ConnID)
		}
	}
	return ids
}

// DisconnectedFor reports how long c has been away, or zero if connected.
func (s *Session) DisconnectedFor(c engine.Color, now time.Time) time.Duration {
	slot := s.Slot(c)
	if slot == nil || slot.ConnID != "" || slot.DisconnectedAt.IsZero() {
		return 0
	}
	return now.Sub(slot.DisconnectedAt)
}
