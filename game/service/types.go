package service

import (
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

// IntentKind names an inbound participant command.
type IntentKind string

const (
	IntentRoll             IntentKind = "roll"
	IntentMove             IntentKind = "move"
	IntentMoveBatch        IntentKind = "moveBatch"
	IntentUndoMove         IntentKind = "undoMove"
	IntentEndTurn          IntentKind = "endTurn"
	IntentOfferDouble      IntentKind = "offerDouble"
	IntentAcceptDouble     IntentKind = "acceptDouble"
	IntentResign           IntentKind = "resign"
	IntentSelectStake      IntentKind = "selectStake"
	IntentCancelStake      IntentKind = "cancelStake"
	IntentAnnounceIdentity IntentKind = "announceIdentity"
	IntentDisconnect       IntentKind = "disconnect"
	IntentAskPlayAgain     IntentKind = "askPlayAgain"
	IntentBackToLobby      IntentKind = "backToLobby"
	IntentGetBoards        IntentKind = "getBoards"
)

// Intent is one command from a connection. Only the fields relevant to Kind are read.
type Intent struct {
	Kind   IntentKind    `json:"type"`
	ConnID string        `json:"-"`
	From   int           `json:"from,omitempty"`
	To     int           `json:"to,omitempty"`
	Die    int           `json:"die,omitempty"`
	Moves  []engine.Move `json:"moves,omitempty"`
	TierID int           `json:"tierId,omitempty"`
	Token  string        `json:"token,omitempty"`
}

// EventKind names an outbound event.
type EventKind string

const (
	EventSetGame     EventKind = "setGame"
	EventSetUser     EventKind = "setUser"
	EventUserError   EventKind = "userError"
	EventServerStats EventKind = "serverStats"
	EventRemoveUser  EventKind = "removeUser"
	EventSetBoards   EventKind = "setBoards"
)

// Outbound is an event addressed to a set of connections, or to every
// connection when Broadcast is set.
type Outbound struct {
	Event     EventKind
	ConnIDs   []string
	Broadcast bool
	Payload   any
}

// GameView is the setGame payload: a copy of the game plus what a client
// needs to render it.
type GameView struct {
	Game       *engine.Game                           `json:"game"`
	Phase      engine.Phase                           `json:"phase"`
	ValidMoves [engine.Points]bool                    `json:"validMoves"`
	Players    map[engine.Color]account.PublicProfile `json:"players"`
	Connected  map[engine.Color]bool                  `json:"connected"`
}

// UserError is the userError payload.
type UserError struct {
	Intent  IntentKind `json:"intent"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// ServerStats is the serverStats payload.
type ServerStats struct {
	GamesInProgress  int `json:"gamesInProgress"`
	PlayersConnected int `json:"playersConnected"`
	PlayersWaiting   int `json:"playersWaiting"`
}

// RemoveUser tells a connection it no longer belongs to a room.
type RemoveUser struct {
	RoomID string `json:"roomId"`
}

// SessionInfo summarises a live session for listings.
type SessionInfo struct {
	ID          string                                 `json:"id"`
	TierID      int                                    `json:"tier_id"`
	Phase       engine.Phase                           `json:"phase"`
	Turn        engine.Color                           `json:"turn"`
	Multiplier  int                                    `json:"multiplier"`
	Stake       int64                                  `json:"stake"`
	Won         engine.Color                           `json:"won,omitempty"`
	Players     map[engine.Color]account.PublicProfile `json:"players"`
	Connected   map[engine.Color]bool                  `json:"connected"`
	CreatedAt   time.Time                              `json:"created_at"`
	ConcludedAt *time.Time                             `json:"concluded_at,omitempty"`
}
