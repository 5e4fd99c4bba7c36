package account

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/backgammon-server/game/engine"
)

// InitialRating is the rating of a user with no history.
const InitialRating = 1500.0

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrMatchNotFound = errors.New("match not found")
)

// Profile is the full user record as kept by the user store.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Picture       string    `json:"picture,omitempty"`
	Balance       int64     `json:"balance"`
	RatingHistory []float64 `json:"ratingHistory"`
	Experience    int       `json:"experience"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Rating returns the latest rating, or InitialRating when there is none.
func (p Profile) Rating() float64 {
	if len(p.RatingHistory) == 0 {
		return InitialRating
	}
	return p.RatingHistory[len(p.RatingHistory)-1]
}

// PublicProfile is what an opponent or a spectator may see.
type PublicProfile struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Picture    string  `json:"picture,omitempty"`
	Rating     float64 `json:"rating"`
	Experience int     `json:"experience"`
}

// ToPublic projects a profile onto its public fields.
func ToPublic(p Profile) PublicProfile {
	return PublicProfile{
		ID:         p.ID,
		Username:   p.Username,
		Picture:    p.Picture,
		Rating:     p.Rating(),
		Experience: p.Experience,
	}
}

// UserStore reads and writes user profiles.
type UserStore interface {
	FindUser(ctx context.Context, id string) (Profile, error)
	// FindUsers returns profiles in the order of ids. A missing id is ErrUserNotFound.
	FindUsers(ctx context.Context, ids ...string) ([]Profile, error)
	// Save writes every profile in one durable update.
	Save(ctx context.Context, profiles ...Profile) error
}

// MatchRecord is the archived form of a concluded match.
type MatchRecord struct {
	RoomID      string       `json:"roomId"`
	TierID      int          `json:"tierId"`
	WhiteID     string       `json:"whiteId"`
	BlackID     string       `json:"blackId"`
	Winner      engine.Color `json:"winner"`
	Stake       int64        `json:"stake"`
	Multiplier  int          `json:"multiplier"`
	Game        *engine.Game `json:"game"`
	StartedAt   time.Time    `json:"startedAt"`
	ConcludedAt time.Time    `json:"concludedAt"`
}

// NewMatchRecord builds the archive record for a concluded game.
func NewMatchRecord(g *engine.Game, concludedAt time.Time) MatchRecord {
	return MatchRecord{
		RoomID:      g.RoomID,
		TierID:      g.TierID,
		WhiteID:     g.White.UserID,
		BlackID:     g.Black.UserID,
		Winner:      g.Won,
		Stake:       g.CurrentAmountBet / 2,
		Multiplier:  g.Multiplier,
		Game:        g.Clone(),
		StartedAt:   g.StartedAt,
		ConcludedAt: concludedAt,
	}
}

// Archive durably records concluded matches. Archiving the same room twice succeeds.
type Archive interface {
	Archive(ctx context.Context, rec MatchRecord) error
}
