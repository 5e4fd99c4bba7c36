package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

var (
	ErrNotConcluded   = errors.New("game has no winner")
	ErrAlreadySettled = errors.New("game already settled")
)

// KFactor is the rating step size for a player with xp rounds behind them.
func KFactor(xp int) float64 {
	if xp > 400 {
		return 4
	}
	return float64(500-xp) * 4 / 100
}

// RatingDelta returns the rating change for a player rated self facing opp.
func RatingDelta(self, opp float64, xp int, won bool) float64 {
	exp := (self - opp) / 2000
	k := KFactor(xp)
	if won {
		return k / (1 + math.Pow(10, exp))
	}
	return -k / (1 + math.Pow(10, -exp))
}

// Payout is what the winner receives on top of their own escrow.
func Payout(stake int64, tip float64) int64 {
	return int64(math.Ceil(float64(stake) * (1 - tip)))
}

// Result describes a settlement after it has been applied.
type Result struct {
	Winner      account.Profile
	Loser       account.Profile
	Stake       int64
	Payout      int64
	WinnerDelta float64
	LoserDelta  float64
}

// Apply computes the settled profiles. Escrowed stakes were already taken from
// both balances, so the loser's balance is left as is and the winner gets
// their escrow back plus the tipped payout.
func Apply(g *engine.Game, winner, loser account.Profile) Result {
	stake := g.CurrentAmountBet / 2
	payout := Payout(stake, g.Tip)

	wr, lr := winner.Rating(), loser.Rating()
	wd := RatingDelta(wr, lr, winner.Experience, true)
	ld := RatingDelta(lr, wr, loser.Experience, false)

	winner.Balance += g.Player(g.Won).Escrow + payout
	winner.RatingHistory = append(append([]float64(nil), winner.RatingHistory...), wr+wd)
	winner.Experience++

	loser.RatingHistory = append(append([]float64(nil), loser.RatingHistory...), lr+ld)
	loser.Experience++

	return Result{
		Winner:      winner,
		Loser:       loser,
		Stake:       stake,
		Payout:      payout,
		WinnerDelta: wd,
		LoserDelta:  ld,
	}
}

// Service settles concluded games against the user store.
type Service struct {
	users  account.UserStore
	tracer trace.Tracer
}

// NewService creates a settlement service.
func NewService(users account.UserStore) *Service {
	return &Service{
		users:  users,
		tracer: otel.Tracer("github.com/wricardo/backgammon-server/game/settlement"),
	}
}

// Settle writes the money, rating and experience changes for g in a single
// save and marks g settled. On error g is left unsettled so it can be retried.
func (s *Service) Settle(ctx context.Context, g *engine.Game) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Settle",
		trace.WithAttributes(attribute.String("room.id", g.RoomID)))
	defer span.End()

	if g.Won == engine.NoColor {
		return Result{}, ErrNotConcluded
	}
	if g.Settled {
		return Result{}, ErrAlreadySettled
	}

	winnerID := g.Player(g.Won).UserID
	loserID := g.Player(g.Won.Opponent()).UserID
	profiles, err := s.users.FindUsers(ctx, winnerID, loserID)
	if err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("load players: %w", err)
	}

	res := Apply(g, profiles[0], profiles[1])
	if err := s.users.Save(ctx, res.Winner, res.Loser); err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("save settlement: %w", err)
	}

	g.Settled = true
	log.Printf("[SETTLE] room=%s winner=%s stake=%d payout=%d rating=%+.2f/%+.2f",
		g.RoomID, winnerID, res.Stake, res.Payout, res.WinnerDelta, res.LoserDelta)
	return res, nil
}
