package settlement

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

// MockUserStore is a UserStore whose behaviour is set per test.
type MockUserStore struct {
	FindUserFunc  func(ctx context.Context, id string) (account.Profile, error)
	FindUsersFunc func(ctx context.Context, ids ...string) ([]account.Profile, error)
	SaveFunc      func(ctx context.Context, profiles ...account.Profile) error
}

func (m *MockUserStore) FindUser(ctx context.Context, id string) (account.Profile, error) {
	return m.FindUserFunc(ctx, id)
}

func (m *MockUserStore) FindUsers(ctx context.Context, ids ...string) ([]account.Profile, error) {
	return m.FindUsersFunc(ctx, ids...)
}

func (m *MockUserStore) Save(ctx context.Context, profiles ...account.Profile) error {
	return m.SaveFunc(ctx, profiles...)
}

func concludedGame(winner engine.Color) *engine.Game {
	g := engine.NewGame(engine.NewGameParams{
		RoomID: "room-1",
		Bet:    100,
		Tip:    0.05,
		White:  "alice",
		Black:  "bob",
		Now:    time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC),
	})
	g.Resign(winner.Opponent())
	return g
}

func TestKFactor(t *testing.T) {
	tests := []struct {
		xp   int
		want float64
	}{
		{0, 20},
		{100, 16},
		{400, 4},
		{401, 4},
		{5000, 4},
	}
	for _, tt := range tests {
		if got := KFactor(tt.xp); got != tt.want {
			t.Errorf("KFactor(%d) = %v, want %v", tt.xp, got, tt.want)
		}
	}
}

func TestRatingDelta(t *testing.T) {
	if d := RatingDelta(1500, 1500, 0, true); d != 10 {
		t.Errorf("Expected +10 between equals, got %v", d)
	}
	if d := RatingDelta(1500, 1500, 0, false); d != -10 {
		t.Errorf("Expected -10 between equals, got %v", d)
	}
	favourite := RatingDelta(1900, 1500, 0, true)
	underdog := RatingDelta(1500, 1900, 0, true)
	if favourite >= underdog {
		t.Errorf("Expected the underdog to gain more, got favourite=%v underdog=%v", favourite, underdog)
	}
}

func TestPayout(t *testing.T) {
	if got := Payout(100, 0.05); got != 95 {
		t.Errorf("Expected payout 95, got %d", got)
	}
	if got := Payout(15, 0.05); got != 15 {
		t.Errorf("Expected payout rounded up to 15, got %d", got)
	}
}

func TestApply(t *testing.T) {
	g := concludedGame(engine.White)
	winner := account.Profile{ID: "alice", Balance: 900}
	loser := account.Profile{ID: "bob", Balance: 900, RatingHistory: []float64{1500}}

	res := Apply(g, winner, loser)
	if res.Winner.Balance != 900+100+95 {
		t.Errorf("Expected winner balance 1095, got %d", res.Winner.Balance)
	}
	if res.Loser.Balance != 900 {
		t.Errorf("Expected loser balance unchanged at 900, got %d", res.Loser.Balance)
	}
	if res.Winner.Experience != 1 || res.Loser.Experience != 1 {
		t.Error("Expected both experience counters to increment")
	}
	if len(res.Winner.RatingHistory) != 1 || res.Winner.RatingHistory[0] != 1510 {
		t.Errorf("Expected winner rating history [1510], got %v", res.Winner.RatingHistory)
	}
	if len(res.Loser.RatingHistory) != 2 || math.Abs(res.Loser.RatingHistory[1]-1490) > 1e-9 {
		t.Errorf("Expected loser rating history [1500 1490], got %v", res.Loser.RatingHistory)
	}
	if len(loser.RatingHistory) != 1 {
		t.Error("Expected the input profile to be left untouched")
	}
}

func TestSettle(t *testing.T) {
	profiles := map[string]account.Profile{
		"alice": {ID: "alice", Balance: 900},
		"bob":   {ID: "bob", Balance: 900},
	}
	store := &MockUserStore{
		FindUsersFunc: func(ctx context.Context, ids ...string) ([]account.Profile, error) {
			out := make([]account.Profile, 0, len(ids))
			for _, id := range ids {
				out = append(out, profiles[id])
			}
			return out, nil
		},
	}

	t.Run("saves both players in one call", func(t *testing.T) {
		var saved []account.Profile
		store.SaveFunc = func(ctx context.Context, ps ...account.Profile) error {
			saved = ps
			return nil
		}
		g := concludedGame(engine.Black)
		res, err := NewService(store).Settle(context.Background(), g)
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		if !g.Settled {
			t.Error("Expected game to be marked settled")
		}
		if len(saved) != 2 || saved[0].ID != "bob" || saved[1].ID != "alice" {
			t.Fatalf("Expected bob and alice saved together, got %+v", saved)
		}
		if res.Winner.Balance != 1095 {
			t.Errorf("Expected winner balance 1095, got %d", res.Winner.Balance)
		}
	})

	t.Run("store failure leaves game unsettled", func(t *testing.T) {
		store.SaveFunc = func(ctx context.Context, ps ...account.Profile) error {
			return errors.New("disk full")
		}
		g := concludedGame(engine.White)
		if _, err := NewService(store).Settle(context.Background(), g); err == nil {
			t.Fatal("Expected settle to fail")
		}
		if g.Settled {
			t.Error("Expected game to stay unsettled")
		}
	})

	t.Run("refuses twice", func(t *testing.T) {
		store.SaveFunc = func(ctx context.Context, ps ...account.Profile) error { return nil }
		g := concludedGame(engine.White)
		svc := NewService(store)
		svc.Settle(context.Background(), g)
		if _, err := svc.Settle(context.Background(), g); !errors.Is(err, ErrAlreadySettled) {
			t.Errorf("Expected ErrAlreadySettled, got %v", err)
		}
	})

	t.Run("refuses an unfinished game", func(t *testing.T) {
		g := concludedGame(engine.White)
		g.Won = engine.NoColor
		if _, err := NewService(store).Settle(context.Background(), g); !errors.Is(err, ErrNotConcluded) {
			t.Errorf("Expected ErrNotConcluded, got %v", err)
		}
	})
}
