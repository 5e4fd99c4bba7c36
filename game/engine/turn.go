package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Roller returns one die value in [1,6].
type Roller func() int

// DefaultRoller draws uniformly from math/rand/v2.
func DefaultRoller() int {
	return rand.IntN(6) + 1
}

// CoinFlip picks the starting color.
func CoinFlip() Color {
	if rand.IntN(2) == 0 {
		return White
	}
	return Black
}

// OpeningPosition returns the standard 15-stone starting layout for c.
func OpeningPosition(c Color) Position {
	var p Position
	if c == White {
		p[6], p[8], p[13], p[24] = 5, 3, 5, 2
	} else {
		p[1], p[12], p[17], p[19] = 2, 5, 3, 5
	}
	return p
}

// NewGameParams describes a match about to start.
type NewGameParams struct {
	RoomID string
	TierID int
	Bet    int64
	Tip    float64
	Limit  int
	White  string
	Black  string
	First  Color
	Now    time.Time
}

// NewGame builds a match at the opening layout with both stakes escrowed.
func NewGame(p NewGameParams) *Game {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	first := p.First
	if !first.Valid() {
		first = White
	}
	return &Game{
		RoomID:            p.RoomID,
		TierID:            p.TierID,
		Bet:               p.Bet,
		Tip:               p.Tip,
		CurrentAmountBet:  2 * p.Bet,
		Multiplier:        1,
		PendingMultiplier: 1,
		MaxBet:            p.Bet,
		Turn:              first,
		Limit:             limit,
		LastMove:          p.Now,
		StartedAt:         p.Now,
		White:             Player{UserID: p.White, Position: OpeningPosition(White), Escrow: p.Bet},
		Black:             Player{UserID: p.Black, Position: OpeningPosition(Black), Escrow: p.Bet},
	}
}

// OfferPending reports whether a double offer awaits a response.
func (g *Game) OfferPending() bool {
	return len(g.Doublers) > 0
}

// OfferPendingFor reports whether c is the side that must answer a double offer.
func (g *Game) OfferPendingFor(c Color) bool {
	return g.Won == NoColor && g.OfferPending() && g.Turn == c
}

// Phase derives the state machine position from the game fields.
func (g *Game) Phase() Phase {
	switch {
	case g.Won != NoColor:
		return PhaseGameOver
	case g.OfferPending():
		return PhaseAwaitingDoubleResponse
	case g.LastRolled == g.Turn:
		return PhaseAwaitingMoves
	}
	return PhaseAwaitingRoll
}

// ColorOf returns the color played by userID.
func (g *Game) ColorOf(userID string) (Color, bool) {
	switch userID {
	case "":
		return NoColor, false
	case g.White.UserID:
		return White, true
	case g.Black.UserID:
		return Black, true
	}
	return NoColor, false
}

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
	c := *g
	c.Doublers = slices.Clone(g.Doublers)
	c.Dice = slices.Clone(g.Dice)
	c.OriginalDice = slices.Clone(g.OriginalDice)
	c.History = make([]HistoryEntry, len(g.History))
	for i, h := range g.History {
		h.Dice = slices.Clone(h.Dice)
		if h.Move != nil {
			m := *h.Move
			h.Move = &m
		}
		c.History[i] = h
	}
	return &c
}

// canAct checks the preconditions shared by every turn action.
func (g *Game) canAct(c Color) error {
	if !c.Valid() {
		return ErrUnknownColor
	}
	if g.Won != NoColor {
		return ErrGameOver
	}
	if g.OfferPending() {
		return ErrOfferPending
	}
	if g.Turn != c {
		return ErrNotYourTurn
	}
	return nil
}

// Roll throws two dice for c. Doubles expand to four moves.
func (g *Game) Roll(c Color, roll Roller) ([]int, error) {
	if err := g.canAct(c); err != nil {
		return nil, err
	}
	if g.LastRolled == c {
		return nil, ErrAlreadyRolled
	}
	if roll == nil {
		roll = DefaultRoller
	}

	a, b := roll(), roll()
	if a < b {
		a, b = b, a
	}
	dice := []int{a, b}
	if a == b {
		dice = []int{a, a, a, a}
	}

	g.Dice = dice
	g.OriginalDice = slices.Clone(dice)
	g.LastRolled = c
	g.History = append(g.History, HistoryEntry{Kind: HistoryDice, Color: c, Dice: slices.Clone(dice)})
	return slices.Clone(dice), nil
}

// Move applies a single stone movement for c consuming die.
func (g *Game) Move(c Color, m Move) error {
	if err := g.canAct(c); err != nil {
		return err
	}
	if g.LastRolled != c {
		return ErrNotRolled
	}
	return g.applyMove(c, m)
}

func (g *Game) applyMove(c Color, m Move) error {
	idx := slices.Index(g.Dice, m.Die)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrDieUnavailable, m.Die)
	}
	to, ok := g.legalWithDie(m.From, m.Die)
	if !ok || to != m.To {
		return fmt.Errorf("%w: %d -> %d with %d", ErrIllegalMove, m.From, m.To, m.Die)
	}

	me, opp := g.player(c), g.player(c.Opponent())
	me.Position[m.From]--
	me.Position[m.To]++

	captured := false
	if m.To != OutIndex(c) && opp.Position[m.To] == 1 {
		opp.Position[m.To] = 0
		opp.Position[BarIndex(c.Opponent())]++
		captured = true
	}

	g.Dice = slices.Delete(g.Dice, idx, idx+1)
	mv := m
	g.History = append(g.History, HistoryEntry{Kind: HistoryMove, Color: c, Move: &mv, Captured: captured})
	return nil
}

// Undo reverses c's most recent move and returns its die to the dice list.
func (g *Game) Undo(c Color) error {
	if err := g.canAct(c); err != nil {
		return err
	}
	if len(g.History) == 0 {
		return ErrNothingToUndo
	}
	last := g.History[len(g.History)-1]
	if last.Kind != HistoryMove || last.Color != c || last.Move == nil || g.LastRolled != c {
		return ErrNothingToUndo
	}

	m := *last.Move
	me, opp := g.player(c), g.player(c.Opponent())
	me.Position[m.To]--
	me.Position[m.From]++
	if last.Captured {
		opp.Position[BarIndex(c.Opponent())]--
		opp.Position[m.To]++
	}

	switch {
	case len(g.Dice) == 0:
		g.Dice = []int{m.Die}
	case m.Die > g.Dice[0]:
		g.Dice = append([]int{m.Die}, g.Dice...)
	default:
		g.Dice = append(g.Dice, m.Die)
	}
	g.History = g.History[:len(g.History)-1]
	return nil
}

// EndTurn hands play to the opponent once c has no dice left to use. It sets
// Won when c has borne everything off, and keeps the turn with c when the
// opponent is shut out on the bar.
func (g *Game) EndTurn(c Color, now time.Time) error {
	if err := g.canAct(c); err != nil {
		return err
	}
	if g.LastRolled != c {
		return ErrNotRolled
	}
	if len(g.Dice) > 0 && HasValidMove(g) {
		return ErrMovesRemaining
	}

	g.Dice = nil
	g.LastMove = now
	if IsWinner(g) {
		g.Won = c
		return nil
	}
	if BlocksOpponent(g) {
		g.LastRolled = c.Opponent()
		return nil
	}
	g.Turn = c.Opponent()
	return nil
}

// ApplyBatch validates every move against an intermediate copy and commits
// them together with the end of the turn. Any mismatch leaves g untouched and
// wraps ErrSuspectedCheating.
func (g *Game) ApplyBatch(c Color, moves []Move, now time.Time) error {
	if err := g.canAct(c); err != nil {
		return err
	}
	if g.LastRolled != c {
		return ErrNotRolled
	}

	pool := slices.Clone(g.Dice)
	for _, m := range moves {
		i := slices.Index(pool, m.Die)
		if i < 0 {
			return fmt.Errorf("%w: die %d not rolled", ErrSuspectedCheating, m.Die)
		}
		pool = slices.Delete(pool, i, i+1)
	}

	tmp := g.Clone()
	for i, m := range moves {
		if err := tmp.applyMove(c, m); err != nil {
			return fmt.Errorf("%w: move %d: %v", ErrSuspectedCheating, i, err)
		}
	}
	if len(tmp.Dice) > 0 && HasValidMove(tmp) {
		return fmt.Errorf("%w: %d dice left unplayed", ErrSuspectedCheating, len(tmp.Dice))
	}

	*g = *tmp
	return g.EndTurn(c, now)
}

// Resign concedes the match to the opponent.
func (g *Game) Resign(c Color) error {
	if !c.Valid() {
		return ErrUnknownColor
	}
	if g.Won != NoColor {
		return ErrGameOver
	}
	g.clearOffer()
	g.Won = c.Opponent()
	g.player(c).Message = "I resign"
	g.History = append(g.History, HistoryEntry{Kind: HistoryResign, Color: c})
	return nil
}

// Timeout forfeits the side on turn when its clock has run out.
func (g *Game) Timeout(now time.Time) bool {
	if g.Won != NoColor || !g.Turn.Valid() {
		return false
	}
	deadline := g.LastMove.Add(time.Duration(g.Limit) * time.Second)
	if !deadline.Before(now) {
		return false
	}
	g.clearOffer()
	g.Won = g.Turn.Opponent()
	g.player(g.Turn).Message = "I ran out of time"
	return true
}
