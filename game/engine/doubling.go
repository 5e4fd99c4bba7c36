package engine

import "time"

// OfferDouble proposes doubling the stakes. A fresh offer is only allowed
// before c rolls; while an offer is pending the side answering it may raise
// again instead. fundsWhite and fundsBlack are what each side could put at
// risk in total, escrow included. An offer that cannot raise the stake above
// what is already proposed fails with ErrInsufficientFunds.
func (g *Game) OfferDouble(c Color, fundsWhite, fundsBlack int64, now time.Time) error {
	if !c.Valid() {
		return ErrUnknownColor
	}
	if g.Won != NoColor {
		return ErrGameOver
	}
	if g.Turn != c {
		return ErrNotYourTurn
	}
	if !g.OfferPending() && g.LastRolled == c {
		return ErrAlreadyRolled
	}
	current := max(g.Multiplier, g.PendingMultiplier, 1)
	if current >= MaxMultiplier {
		return ErrDoubleCeiling
	}

	next := 2 * current
	stake := g.stakeCap(next, fundsWhite, fundsBlack)
	if stake <= g.MaxBet {
		return ErrInsufficientFunds
	}
	g.PendingMultiplier = next
	g.MaxBet = stake
	g.Doublers = append(g.Doublers, c)
	g.Turn = c.Opponent()
	g.LastMove = now

	msg := "Let's double the bet"
	if len(g.Doublers) > 1 {
		msg = "Let's redouble that again"
	}
	g.player(c).Message = msg
	g.History = append(g.History, HistoryEntry{Kind: HistoryOfferDouble, Color: c, Multiplier: next})
	return nil
}

// AcceptDouble applies the pending multiplier. It returns how much more each
// side must put into escrow; the caller is responsible for moving the money.
func (g *Game) AcceptDouble(c Color, fundsWhite, fundsBlack int64, now time.Time) (topUpWhite, topUpBlack int64, err error) {
	if !c.Valid() {
		return 0, 0, ErrUnknownColor
	}
	if g.Won != NoColor {
		return 0, 0, ErrGameOver
	}
	if !g.OfferPending() {
		return 0, 0, ErrNoOfferPending
	}
	if g.Turn != c {
		return 0, 0, ErrNotYourTurn
	}

	target := g.stakeCap(g.PendingMultiplier, fundsWhite, fundsBlack)
	topUpWhite = target - g.White.Escrow
	topUpBlack = target - g.Black.Escrow

	g.White.Escrow = target
	g.Black.Escrow = target
	g.Multiplier = g.PendingMultiplier
	g.MaxBet = target
	g.CurrentAmountBet = 2 * target
	g.Turn = g.Doublers[0]
	g.Doublers = nil
	g.LastMove = now
	g.White.Message = ""
	g.Black.Message = ""
	g.History = append(g.History, HistoryEntry{Kind: HistoryAcceptDouble, Color: c, Multiplier: g.Multiplier})
	return topUpWhite, topUpBlack, nil
}

// Decline ends the match in the offerer's favour at the stake in force before the offer.
func (g *Game) Decline(c Color) error {
	if !c.Valid() {
		return ErrUnknownColor
	}
	if g.Won != NoColor {
		return ErrGameOver
	}
	if !g.OfferPendingFor(c) {
		return ErrNoOfferPending
	}
	g.clearOffer()
	g.Won = c.Opponent()
	g.player(c).Message = "I decline the double"
	return nil
}

// stakeCap is the per-side stake for multiplier, limited by both sides' funds
// and never below what is already escrowed.
func (g *Game) stakeCap(multiplier int, fundsWhite, fundsBlack int64) int64 {
	capped := min(int64(multiplier)*g.Bet, fundsWhite, fundsBlack)
	return max(capped, g.White.Escrow, g.Black.Escrow)
}

func (g *Game) clearOffer() {
	g.Doublers = nil
	g.PendingMultiplier = g.Multiplier
	g.MaxBet = g.White.Escrow
}
