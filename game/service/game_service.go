package service

import (
	"context"
	"errors"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/game/settlement"
)

var (
	ErrNotIdentified  = errors.New("announce your identity first")
	ErrAlreadyPlaying = errors.New("you already have a game in progress")
	ErrGameInProgress = errors.New("the game is not over yet")
	ErrOpponentLeft   = errors.New("your opponent has left")
	ErrUnknownIntent  = errors.New("unknown intent")
)

// GameService is the command surface of the match server.
type GameService interface {
	// Handle applies one intent. Rejections are published to the requester
	// as userError and also returned.
	Handle(ctx context.Context, in Intent) error

	// CheckTimeouts forfeits every game whose clock ran out. It returns the
	// number of games forfeited.
	CheckTimeouts(ctx context.Context) int
	// ArchiveSweep retries failed settlements and archives finished
	// sessions. It returns the number of sessions archived.
	ArchiveSweep(ctx context.Context) int

	Stats(ctx context.Context) ServerStats
	Boards(ctx context.Context) ([]config.Board, error)
	ListSessions(ctx context.Context) []SessionInfo
	GetSession(ctx context.Context, id string) (*GameView, error)
	Profile(ctx context.Context, userID string) (account.PublicProfile, error)
	Match(ctx context.Context, roomID string) (account.MatchRecord, error)
}

// Publisher delivers outbound events. The service calls it while holding
// the affected session's lock, so it must not call back into the service.
type Publisher interface {
	Publish(out Outbound)
}

// Identity verifies a bearer token and returns the stable user id.
type Identity interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// BoardCatalog lists the stake tiers.
type BoardCatalog interface {
	ListBoards() ([]config.Board, error)
	Board(id int) (config.Board, error)
}

// MatchReader reads archived matches.
type MatchReader interface {
	GetMatch(ctx context.Context, roomID string) (account.MatchRecord, error)
}

// Settler settles concluded games.
type Settler interface {
	Settle(ctx context.Context, g *engine.Game) (settlement.Result, error)
}
