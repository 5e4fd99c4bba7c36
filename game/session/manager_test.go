package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/backgammon-server/game/engine"
)

func newTestGame(room, white, black string) *engine.Game {
	return engine.NewGame(engine.NewGameParams{
		RoomID: room,
		Bet:    100,
		White:  white,
		Black:  black,
		First:  engine.White,
		Now:    time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC),
	})
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()

	t.Run("create with room ID", func(t *testing.T) {
		s, err := manager.Create(newTestGame("room-1", "alice", "bob"), "c1", "c2", nil)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if s.ID != "room-1" {
			t.Errorf("Expected session ID 'room-1', got '%s'", s.ID)
		}
		if s.White.ConnID != "c1" || s.Black.ConnID != "c2" {
			t.Errorf("Expected connections bound, got %+v %+v", s.White, s.Black)
		}
	})

	t.Run("create with generated ID", func(t *testing.T) {
		s, err := manager.Create(newTestGame("", "carol", "dave"), "", "", nil)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if s.ID == "" || s.Game.RoomID != s.ID {
			t.Errorf("Expected generated room id, got %q", s.ID)
		}
		if s.White.DisconnectedAt.IsZero() {
			t.Error("Expected unbound slots to be marked disconnected")
		}
	})

	t.Run("duplicate room", func(t *testing.T) {
		if _, err := manager.Create(newTestGame("room-1", "x", "y"), "", "", nil); !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	if manager.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", manager.Count())
	}
}

func TestManager_Lookup(t *testing.T) {
	manager := NewManager()
	manager.Create(newTestGame("room-1", "alice", "bob"), "c1", "c2", nil)

	s, color, err := manager.Lookup("c2")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if s.ID != "room-1" || color != engine.Black {
		t.Errorf("Expected room-1/black, got %s/%s", s.ID, color)
	}

	if _, _, err := manager.Lookup("nope"); !errors.Is(err, ErrConnNotBound) {
		t.Errorf("Expected ErrConnNotBound, got %v", err)
	}

	manager.Unbind("c2")
	if _, _, err := manager.Lookup("c2"); !errors.Is(err, ErrConnNotBound) {
		t.Errorf("Expected ErrConnNotBound after unbind, got %v", err)
	}

	if err := manager.Bind("c3", "room-1", engine.Black); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if _, color, _ := manager.Lookup("c3"); color != engine.Black {
		t.Errorf("Expected rebound connection on black, got %s", color)
	}
	if err := manager.Bind("c4", "missing", engine.White); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_FindByUser(t *testing.T) {
	manager := NewManager()
	manager.Create(newTestGame("room-1", "alice", "bob"), "", "", nil)

	s, err := manager.FindByUser("bob")
	if err != nil || s.ID != "room-1" {
		t.Fatalf("Expected room-1 for bob, got %v (%v)", s, err)
	}

	// A rematch moves the user index to the newer room
	manager.Create(newTestGame("room-2", "bob", "alice"), "", "", nil)
	s, _ = manager.FindByUser("bob")
	if s.ID != "room-2" {
		t.Errorf("Expected room-2 for bob, got %s", s.ID)
	}

	old, _ := manager.Get("room-1")
	old.Lock()
	manager.Remove(old)
	old.Unlock()
	if s, err := manager.FindByUser("alice"); err != nil || s.ID != "room-2" {
		t.Errorf("Expected removal of room-1 to keep alice on room-2, got %v (%v)", s, err)
	}
}

func TestManager_Remove(t *testing.T) {
	manager := NewManager()
	s, _ := manager.Create(newTestGame("room-1", "alice", "bob"), "c1", "c2", nil)

	s.Lock()
	err := manager.Remove(s)
	removed := s.Removed()
	s.Unlock()
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Error("Expected session to be flagged removed")
	}
	if _, err := manager.Get("room-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if _, _, err := manager.Lookup("c1"); err == nil {
		t.Error("Expected connection bindings to be dropped")
	}
	if _, err := manager.FindByUser("alice"); err == nil {
		t.Error("Expected user index to be dropped")
	}
	if err := manager.Remove(s); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second remove, got %v", err)
	}
}

func TestSessionDisconnectedFor(t *testing.T) {
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	s := &Session{White: Slot{ConnID: "c1"}, Black: Slot{DisconnectedAt: now.Add(-90 * time.Second)}}

	if d := s.DisconnectedFor(engine.White, now); d != 0 {
		t.Errorf("Expected connected side to report 0, got %v", d)
	}
	if d := s.DisconnectedFor(engine.Black, now); d != 90*time.Second {
		t.Errorf("Expected 90s, got %v", d)
	}
	if ids := s.ConnIDs(); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("Expected [c1], got %v", ids)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g := newTestGame("", "w", "b")
			s, err := manager.Create(g, "", "", nil)
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			s.Lock()
			s.Game.Resign(engine.White)
			s.Unlock()
			manager.List()
			manager.Count()
		}(i)
	}
	wg.Wait()

	if manager.Count() != 50 {
		t.Errorf("Expected 50 sessions, got %d", manager.Count())
	}
}
