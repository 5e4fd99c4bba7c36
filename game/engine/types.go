package engine

import (
	"errors"
	"time"
)

// Color identifies one side of the board.
type Color string

const (
	NoColor Color = ""
	White   Color = "white"
	Black   Color = "black"
)

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	}
	return NoColor
}

// Valid reports whether c names one of the two sides.
func (c Color) Valid() bool {
	return c == White || c == Black
}

const (
	// Points holds the 24 board points plus the two off-board slots.
	Points = 26

	// StonesPerSide is the number of stones each color owns for the whole match.
	StonesPerSide = 15

	// MaxMultiplier is the doubling cube ceiling.
	MaxMultiplier = 64

	// DefaultLimit is the per-turn clock in seconds.
	DefaultLimit = 45
)

// Position counts one color's stones per index. Indices 0 and 25 are the
// off-board slots: for white 25 is the bar and 0 is borne off, for black the
// reverse. Points 1..24 share the same numbering for both colors.
type Position [Points]int

// Sum returns the total number of stones in the position.
func (p Position) Sum() int {
	total := 0
	for _, n := range p {
		total += n
	}
	return total
}

// Move is a single stone movement that consumes one die.
type Move struct {
	From int `json:"from"`
	To   int `json:"to"`
	Die  int `json:"die"`
}

// HistoryKind tags a HistoryEntry.
type HistoryKind string

const (
	HistoryDice         HistoryKind = "dice"
	HistoryMove         HistoryKind = "move"
	HistoryResign       HistoryKind = "resign"
	HistoryOfferDouble  HistoryKind = "offer-double"
	HistoryAcceptDouble HistoryKind = "accept-double"
)

// HistoryEntry records one applied action. Only the fields relevant to Kind are set.
type HistoryEntry struct {
	Kind       HistoryKind `json:"kind"`
	Color      Color       `json:"color"`
	Dice       []int       `json:"dice,omitempty"`
	Move       *Move       `json:"move,omitempty"`
	Captured   bool        `json:"captured,omitempty"`
	Multiplier int         `json:"multiplier,omitempty"`
}

// Player is one side's slot inside a match.
type Player struct {
	UserID     string   `json:"userId"`
	Position   Position `json:"position"`
	Message    string   `json:"message,omitempty"`
	HasLeft    bool     `json:"hasLeft"`
	WantsAgain bool     `json:"wantsAgain"`
	// Escrow is what this side has already paid into the pot.
	Escrow int64 `json:"escrow"`
}

// Game is the full state of one match.
type Game struct {
	RoomID string  `json:"roomId"`
	TierID int     `json:"tierId"`
	Bet    int64   `json:"bet"`
	Tip    float64 `json:"tip"`

	// CurrentAmountBet is the total at risk across both sides.
	CurrentAmountBet  int64   `json:"currentAmountBet"`
	Multiplier        int     `json:"multiplier"`
	PendingMultiplier int     `json:"pendingMultiplier"`
	Doublers          []Color `json:"doublers"`
	MaxBet            int64   `json:"maxBet"`

	Turn         Color     `json:"turn"`
	LastRolled   Color     `json:"lastRolled"`
	Dice         []int     `json:"dice"`
	OriginalDice []int     `json:"originalDice"`
	Limit        int       `json:"limit"`
	LastMove     time.Time `json:"lastMove"`
	StartedAt    time.Time `json:"startedAt"`

	White Player `json:"white"`
	Black Player `json:"black"`

	Won      Color `json:"won"`
	Archived bool  `json:"archived"`
	Settled  bool  `json:"settled"`

	History []HistoryEntry `json:"history"`
}

// Phase is the turn state machine's current state.
type Phase string

const (
	PhaseAwaitingRoll           Phase = "awaiting-roll"
	PhaseAwaitingMoves          Phase = "awaiting-moves"
	PhaseAwaitingDoubleResponse Phase = "awaiting-double-response"
	PhaseGameOver               Phase = "game-over"
)

var (
	ErrGameOver          = errors.New("game is over")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrAlreadyRolled     = errors.New("dice already rolled this turn")
	ErrNotRolled         = errors.New("dice not rolled yet")
	ErrOfferPending      = errors.New("a double offer is pending")
	ErrNoOfferPending    = errors.New("no double offer is pending")
	ErrDieUnavailable    = errors.New("die is not available")
	ErrIllegalMove       = errors.New("illegal move")
	ErrNothingToUndo     = errors.New("nothing to undo")
	ErrMovesRemaining    = errors.New("legal moves remain")
	ErrDoubleCeiling     = errors.New("doubling ceiling reached")
	ErrUnknownColor      = errors.New("unknown color")
	ErrSuspectedCheating = errors.New("batch does not match the rolled dice")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
