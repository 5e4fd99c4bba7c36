package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/service"
)

// MockUserStore keeps profiles in memory. SaveFunc, when set, replaces Save.
type MockUserStore struct {
	SaveFunc func(ctx context.Context, profiles ...account.Profile) error

	profiles map[string]account.Profile
	mu       sync.Mutex
}

func NewMockUserStore(profiles ...account.Profile) *MockUserStore {
	m := &MockUserStore{profiles: make(map[string]account.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MockUserStore) FindUser(ctx context.Context, id string) (account.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return account.Profile{}, account.ErrUserNotFound
	}
	return p, nil
}

func (m *MockUserStore) FindUsers(ctx context.Context, ids ...string) ([]account.Profile, error) {
	out := make([]account.Profile, 0, len(ids))
	for _, id := range ids {
		p, err := m.FindUser(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockUserStore) Save(ctx context.Context, profiles ...account.Profile) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, profiles...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return nil
}

func (m *MockUserStore) Balance(id string) int64 {
	p, _ := m.FindUser(context.Background(), id)
	return p.Balance
}

// MockArchive records archived matches.
type MockArchive struct {
	ArchiveFunc func(ctx context.Context, rec account.MatchRecord) error

	records map[string]account.MatchRecord
	mu      sync.Mutex
}

func NewMockArchive() *MockArchive {
	return &MockArchive{records: make(map[string]account.MatchRecord)}
}

func (m *MockArchive) Archive(ctx context.Context, rec account.MatchRecord) error {
	if m.ArchiveFunc != nil {
		if err := m.ArchiveFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.RoomID] = rec
	return nil
}

func (m *MockArchive) GetMatch(ctx context.Context, roomID string) (account.MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[roomID]
	if !ok {
		return account.MatchRecord{}, account.ErrMatchNotFound
	}
	return rec, nil
}

// MockBoards serves the built-in tiers.
type MockBoards struct{}

func (MockBoards) ListBoards() ([]config.Board, error) {
	return config.DefaultBoards(), nil
}

func (MockBoards) Board(id int) (config.Board, error) {
	for _, b := range config.DefaultBoards() {
		if b.ID == id {
			return b, nil
		}
	}
	return config.Board{}, config.ErrBoardNotFound
}

// MockIdentity accepts "token-<user>" for every user.
type MockIdentity struct{}

var errBadToken = errors.New("bad token")

func (MockIdentity) Authenticate(ctx context.Context, token string) (string, error) {
	if len(token) <= len("token-") || token[:len("token-")] != "token-" {
		return "", errBadToken
	}
	return token[len("token-"):], nil
}

// Recorder captures every published event.
type Recorder struct {
	events []service.Outbound
	mu     sync.Mutex
}

func (r *Recorder) Publish(out service.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, out)
}

// For returns the events of kind addressed to connID, oldest first.
func (r *Recorder) For(connID string, kind service.EventKind) []service.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []service.Outbound
	for _, e := range r.events {
		if e.Event != kind {
			continue
		}
		if e.Broadcast {
			out = append(out, e)
			continue
		}
		for _, id := range e.ConnIDs {
			if id == connID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// LastGame returns the latest setGame view sent to connID.
func (r *Recorder) LastGame(connID string) *service.GameView {
	events := r.For(connID, service.EventSetGame)
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1].Payload.(*service.GameView)
}

// Clock is a settable time source.
type Clock struct {
	t  time.Time
	mu sync.Mutex
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
