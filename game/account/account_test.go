package account

import (
	"testing"
	"time"

	"github.com/wricardo/backgammon-server/game/engine"
)

func TestRating(t *testing.T) {
	p := Profile{ID: "u1"}
	if p.Rating() != InitialRating {
		t.Errorf("Expected initial rating %v, got %v", InitialRating, p.Rating())
	}
	p.RatingHistory = []float64{1500, 1510.5}
	if p.Rating() != 1510.5 {
		t.Errorf("Expected latest rating 1510.5, got %v", p.Rating())
	}
}

func TestToPublic(t *testing.T) {
	p := Profile{
		ID:            "u1",
		Username:      "alice",
		Picture:       "a.png",
		Balance:       900,
		RatingHistory: []float64{1500, 1490},
		Experience:    7,
	}
	pub := ToPublic(p)
	if pub.ID != "u1" || pub.Username != "alice" || pub.Picture != "a.png" {
		t.Errorf("Unexpected identity fields %+v", pub)
	}
	if pub.Rating != 1490 {
		t.Errorf("Expected rating 1490, got %v", pub.Rating)
	}
	if pub.Experience != 7 {
		t.Errorf("Expected experience 7, got %d", pub.Experience)
	}
}

func TestNewMatchRecord(t *testing.T) {
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)
	g := engine.NewGame(engine.NewGameParams{RoomID: "r1", TierID: 2, Bet: 200, White: "a", Black: "b", Now: now})
	g.Resign(engine.Black)

	rec := NewMatchRecord(g, now.Add(time.Minute))
	if rec.Winner != engine.White {
		t.Errorf("Expected winner white, got %q", rec.Winner)
	}
	if rec.Stake != 200 {
		t.Errorf("Expected stake 200, got %d", rec.Stake)
	}
	if rec.Game == g {
		t.Error("Expected the record to hold a copy of the game")
	}
}
