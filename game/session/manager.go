package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrConnNotBound         = errors.New("connection is not in a session")
)

type binding struct {
	roomID string
	color  engine.Color
}

// Manager is the registry of live sessions. It indexes sessions by room id,
// by bound connection id and by participant user id.
//
// Lock order: a caller may take the registry lock while holding a session
// lock, never the other way round. Manager itself never locks a session
// except in SaveAllSessions, which holds no registry lock at that point.
type Manager struct {
	sessions    map[string]*Session
	conns       map[string]binding
	users       map[string]string
	persistence SessionPersistence
	now         func() time.Time
	mu          sync.RWMutex
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		conns:    make(map[string]binding),
		users:    make(map[string]string),
		now:      time.Now,
	}
}

// NewManagerWithPersistence creates a new session manager with snapshot persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	m := NewManager()
	m.persistence = persistence
	return m
}

// Create registers a session for game and binds the given connections. An
// empty RoomID gets a fresh one.
func (m *Manager) Create(game *engine.Game, whiteConn, blackConn string, profiles map[engine.Color]account.PublicProfile) (*Session, error) {
	if game == nil {
		return nil, fmt.Errorf("game cannot be nil")
	}
	if game.RoomID == "" {
		game.RoomID = uuid.NewString()
	}

	now := m.now()
	s := &Session{
		ID:        game.RoomID,
		Game:      game,
		White:     Slot{ConnID: whiteConn},
		Black:     Slot{ConnID: blackConn},
		Profiles:  profiles,
		CreatedAt: now,
	}
	for _, c := range []engine.Color{engine.White, engine.Black} {
		if slot := s.Slot(c); slot.ConnID == "" {
			slot.DisconnectedAt = now
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return nil, ErrSessionAlreadyExists
	}
	m.sessions[s.ID] = s
	m.index(s)
	return s, nil
}

// index binds s's participants and connections. Callers hold m.mu.
func (m *Manager) index(s *Session) {
	for _, c := range []engine.Color{engine.White, engine.Black} {
		if uid := s.Game.Player(c).UserID; uid != "" {
			m.users[uid] = s.ID
		}
		if conn := s.Slot(c).ConnID; conn != "" {
			m.conns[conn] = binding{roomID: s.ID, color: c}
		}
	}
}

// Get retrieves a session by ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup resolves the session and color bound to a connection
func (m *Manager) Lookup(connID string) (*Session, engine.Color, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.conns[connID]
	if !ok {
		return nil, engine.NoColor, ErrConnNotBound
	}
	s, ok := m.sessions[b.roomID]
	if !ok {
		return nil, engine.NoColor, ErrSessionNotFound
	}
	return s, b.color, nil
}

// FindByUser returns the most recent session userID takes part in
func (m *Manager) FindByUser(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.users[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Bind maps connID to color in session id
func (m *Manager) Bind(connID, id string, color engine.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	m.conns[connID] = binding{roomID: id, color: color}
	return nil
}

// Unbind forgets a connection
func (m *Manager) Unbind(connID string) {
	if connID == "" {
		return
	}
	m.mu.Lock()
	delete(m.conns, connID)
	m.mu.Unlock()
}

// Remove drops a session, its bindings and its snapshot. Callers hold the
// session lock so no intent can slip in between.
func (m *Manager) Remove(s *Session) error {
	m.mu.Lock()
	if _, exists := m.sessions[s.ID]; !exists {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, s.ID)
	for conn, b := range m.conns {
		if b.roomID == s.ID {
			delete(m.conns, conn)
		}
	}
	for uid, id := range m.users {
		if id == s.ID {
			delete(m.users, uid)
		}
	}
	s.removed = true
	m.mu.Unlock()

	if m.persistence != nil && m.persistence.Exists(s.ID) {
		if err := m.persistence.Delete(s.ID); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
	}
	return nil
}

// List returns all active sessions
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, s)
	}
	return result
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Save snapshots one session. Callers hold the session lock.
func (m *Manager) Save(s *Session) error {
	if m.persistence == nil {
		return nil
	}
	return m.persistence.Save(s)
}

// LoadPersistedSessions loads all persisted sessions into memory with both
// sides marked disconnected
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if _, exists := m.sessions[id]; exists {
			continue
		}

		s, err := m.persistence.Load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}
		s.White.DisconnectedAt = now
		s.Black.DisconnectedAt = now

		m.sessions[s.ID] = s
		m.index(s)
		loaded++
	}

	if loaded > 0 {
		log.Printf("Loaded %d persisted sessions from storage", loaded)
	}
	return nil
}

// SaveAllSessions snapshots every in-memory session
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	errorCount := 0
	for _, s := range m.List() {
		s.Lock()
		err := m.persistence.Save(s)
		s.Unlock()
		if err != nil {
			log.Printf("Warning: Failed to save session %s: %v", s.ID, err)
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}
	return nil
}
