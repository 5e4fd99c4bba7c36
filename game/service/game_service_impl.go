package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/config"
	"github.com/wricardo/backgammon-server/game/engine"
	"github.com/wricardo/backgammon-server/game/matchmaking"
	"github.com/wricardo/backgammon-server/game/session"
)

const (
	msgDisconnected = "I'm disconnected. If I can't reconnect, you win."
	msgPlayAgain    = "Let's play again"
	msgLeaving      = "I've got to leave"
	msgCannotAfford = "I can't afford another game at this stake"
)

var colors = []engine.Color{engine.White, engine.Black}

// Deps are the collaborators of the game service.
type Deps struct {
	Sessions  *session.Manager
	Queue     *matchmaking.Queue
	Users     account.UserStore
	Archive   account.Archive
	Matches   MatchReader
	Settler   Settler
	Boards    BoardCatalog
	Identity  Identity
	Publisher Publisher
}

// Options tune money, timing and randomness. Zero values fall back to defaults.
type Options struct {
	Tip             float64
	DisconnectGrace time.Duration
	ConcludedMaxAge time.Duration
	Roller          engine.Roller
	CoinFlip        func() engine.Color
	Now             func() time.Time
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions  *session.Manager
	queue     *matchmaking.Queue
	users     account.UserStore
	archive   account.Archive
	matches   MatchReader
	settler   Settler
	boards    BoardCatalog
	identity  Identity
	publisher Publisher

	tip    float64
	grace  time.Duration
	maxAge time.Duration
	roller engine.Roller
	coin   func() engine.Color
	now    func() time.Time
	tracer trace.Tracer

	// conns maps announced connections to their user id.
	conns  map[string]string
	connMu sync.RWMutex

	// ledgerMu serialises balance read-modify-write cycles against the user store.
	ledgerMu sync.Mutex
}

// NewGameService creates a new game service instance
func NewGameService(d Deps, o Options) GameService {
	s := &gameServiceImpl{
		sessions:  d.Sessions,
		queue:     d.Queue,
		users:     d.Users,
		archive:   d.Archive,
		matches:   d.Matches,
		settler:   d.Settler,
		boards:    d.Boards,
		identity:  d.Identity,
		publisher: d.Publisher,
		tip:       o.Tip,
		grace:     o.DisconnectGrace,
		maxAge:    o.ConcludedMaxAge,
		roller:    o.Roller,
		coin:      o.CoinFlip,
		now:       o.Now,
		tracer:    otel.Tracer("github.com/wricardo/backgammon-server/game/service"),
		conns:     make(map[string]string),
	}
	if s.grace <= 0 {
		s.grace = time.Minute
	}
	if s.maxAge <= 0 {
		s.maxAge = time.Hour
	}
	if s.roller == nil {
		s.roller = engine.DefaultRoller
	}
	if s.coin == nil {
		s.coin = engine.CoinFlip
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.queue == nil {
		s.queue = matchmaking.NewQueue()
	}
	return s
}

// Handle applies one intent
func (s *gameServiceImpl) Handle(ctx context.Context, in Intent) error {
	ctx, span := s.tracer.Start(ctx, "service.Handle",
		trace.WithAttributes(attribute.String("intent", string(in.Kind))))
	defer span.End()

	var err error
	switch in.Kind {
	case IntentRoll, IntentMove, IntentMoveBatch, IntentUndoMove, IntentEndTurn,
		IntentOfferDouble, IntentAcceptDouble, IntentResign:
		err = s.play(ctx, in)
	case IntentSelectStake:
		err = s.selectStake(ctx, in)
	case IntentCancelStake:
		err = s.cancelStake(in)
	case IntentAnnounceIdentity:
		err = s.announceIdentity(ctx, in)
	case IntentDisconnect:
		s.disconnect(in.ConnID)
	case IntentAskPlayAgain:
		err = s.askPlayAgain(ctx, in)
	case IntentBackToLobby:
		err = s.backToLobby(in)
	case IntentGetBoards:
		err = s.sendBoards(in.ConnID)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownIntent, in.Kind)
	}

	if err != nil {
		span.RecordError(err)
		s.reject(in, err)
	}
	return err
}

func (s *gameServiceImpl) reject(in Intent, err error) {
	code := "rejected"
	switch {
	case errors.Is(err, engine.ErrSuspectedCheating):
		code = "suspected-cheating"
		userID, _ := s.userOf(in.ConnID)
		log.Printf("[AUDIT] conn=%s user=%s intent=%s: %v", in.ConnID, userID, in.Kind, err)
	case errors.Is(err, engine.ErrInsufficientFunds):
		code = "insufficient-funds"
		log.Printf("[REJECT] conn=%s intent=%s: %v", in.ConnID, in.Kind, err)
	default:
		log.Printf("[REJECT] conn=%s intent=%s: %v", in.ConnID, in.Kind, err)
	}
	if in.ConnID == "" {
		return
	}
	s.publisher.Publish(Outbound{
		Event:   EventUserError,
		ConnIDs: []string{in.ConnID},
		Payload: UserError{Intent: in.Kind, Code: code, Message: err.Error()},
	})
}

// withSession runs fn under the lock of the session connID is bound to.
func (s *gameServiceImpl) withSession(connID string, fn func(*session.Session, engine.Color) error) error {
	sess, c, err := s.sessions.Lookup(connID)
	if err != nil {
		return err
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Removed() || sess.Slot(c).ConnID != connID {
		return session.ErrConnNotBound
	}
	return fn(sess, c)
}

// declinesOffer reports whether kind, sent by the side facing a double,
// counts as turning it down.
func declinesOffer(kind IntentKind) bool {
	switch kind {
	case IntentRoll, IntentMove, IntentMoveBatch, IntentUndoMove, IntentEndTurn:
		return true
	}
	return false
}

func (s *gameServiceImpl) play(ctx context.Context, in Intent) error {
	return s.withSession(in.ConnID, func(sess *session.Session, c engine.Color) error {
		g := sess.Game
		if g.OfferPendingFor(c) && declinesOffer(in.Kind) {
			if err := g.Decline(c); err != nil {
				return err
			}
			log.Printf("[MATCH] room=%s color=%s declined the double with %s", g.RoomID, c, in.Kind)
			s.conclude(ctx, sess)
			return nil
		}

		now := s.now()
		var err error
		switch in.Kind {
		case IntentRoll:
			var dice []int
			dice, err = g.Roll(c, s.roller)
			if err == nil {
				log.Printf("[MOVE] room=%s color=%s rolled %v", g.RoomID, c, dice)
			}
		case IntentMove:
			err = g.Move(c, engine.Move{From: in.From, To: in.To, Die: in.Die})
		case IntentMoveBatch:
			err = g.ApplyBatch(c, in.Moves, now)
		case IntentUndoMove:
			err = g.Undo(c)
		case IntentEndTurn:
			err = g.EndTurn(c, now)
		case IntentOfferDouble:
			err = s.offerDouble(ctx, g, c, now)
		case IntentAcceptDouble:
			err = s.acceptDouble(ctx, sess, c, now)
		case IntentResign:
			err = g.Resign(c)
		}
		if err != nil {
			return err
		}

		log.Printf("[MOVE] room=%s color=%s intent=%s phase=%s", g.RoomID, c, in.Kind, g.Phase())
		if g.Won != engine.NoColor {
			s.conclude(ctx, sess)
			return nil
		}
		s.publishGame(sess)
		return nil
	})
}

func (s *gameServiceImpl) offerDouble(ctx context.Context, g *engine.Game, c engine.Color, now time.Time) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	white, black, err := s.players(ctx, g)
	if err != nil {
		return err
	}
	return g.OfferDouble(c, white.Balance+g.White.Escrow, black.Balance+g.Black.Escrow, now)
}

// acceptDouble stages the accept on a copy and commits it only once the
// extra escrow has been saved.
func (s *gameServiceImpl) acceptDouble(ctx context.Context, sess *session.Session, c engine.Color, now time.Time) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	g := sess.Game
	white, black, err := s.players(ctx, g)
	if err != nil {
		return err
	}

	staged := g.Clone()
	topUpWhite, topUpBlack, err := staged.AcceptDouble(c, white.Balance+g.White.Escrow, black.Balance+g.Black.Escrow, now)
	if err != nil {
		return err
	}
	white.Balance -= topUpWhite
	black.Balance -= topUpBlack
	if err := s.users.Save(ctx, white, black); err != nil {
		return fmt.Errorf("escrow doubled stake: %w", err)
	}

	*g = *staged
	log.Printf("[MATCH] room=%s double accepted multiplier=%d stake=%d", g.RoomID, g.Multiplier, g.MaxBet)
	s.sendProfile(sess.White.ConnID, white)
	s.sendProfile(sess.Black.ConnID, black)
	return nil
}

func (s *gameServiceImpl) players(ctx context.Context, g *engine.Game) (account.Profile, account.Profile, error) {
	profiles, err := s.users.FindUsers(ctx, g.White.UserID, g.Black.UserID)
	if err != nil {
		return account.Profile{}, account.Profile{}, fmt.Errorf("load players: %w", err)
	}
	return profiles[0], profiles[1], nil
}

// conclude stamps the end of a game, settles it and publishes the final state
// once the settlement is saved. Callers hold the session lock.
func (s *gameServiceImpl) conclude(ctx context.Context, sess *session.Session) {
	if sess.ConcludedAt.IsZero() {
		sess.ConcludedAt = s.now()
	}
	g := sess.Game
	log.Printf("[MATCH] room=%s won=%s multiplier=%d stake=%d", g.RoomID, g.Won, g.Multiplier, g.CurrentAmountBet/2)
	settled := s.settle(ctx, sess)
	s.snapshot(sess)
	if settled {
		s.publishGame(sess)
	}
}

// snapshot writes the session so a restart resumes it with the right
// settlement state. Callers hold the session lock.
func (s *gameServiceImpl) snapshot(sess *session.Session) {
	if err := s.sessions.Save(sess); err != nil {
		log.Printf("[MATCH] room=%s snapshot failed: %v", sess.ID, err)
	}
}

// settle reports whether the game is now settled. Failures are retried by
// the archive sweep.
func (s *gameServiceImpl) settle(ctx context.Context, sess *session.Session) bool {
	g := sess.Game
	if g.Settled {
		return true
	}

	s.ledgerMu.Lock()
	res, err := s.settler.Settle(ctx, g)
	s.ledgerMu.Unlock()
	if err != nil {
		log.Printf("[SETTLE] room=%s failed, retrying on next sweep: %v", g.RoomID, err)
		return false
	}

	s.sendProfile(sess.Slot(g.Won).ConnID, res.Winner)
	s.sendProfile(sess.Slot(g.Won.Opponent()).ConnID, res.Loser)
	return true
}

func (s *gameServiceImpl) selectStake(ctx context.Context, in Intent) error {
	userID, ok := s.userOf(in.ConnID)
	if !ok {
		return ErrNotIdentified
	}
	board, err := s.boards.Board(in.TierID)
	if err != nil {
		return err
	}
	if s.hasUnfinishedGame(userID) {
		return ErrAlreadyPlaying
	}
	profile, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile.Balance < board.Bet {
		return fmt.Errorf("%w: %s needs %d", engine.ErrInsufficientFunds, board.Title, board.Bet)
	}

	s.leaveConcluded(in.ConnID)
	s.queue.Join(matchmaking.WaitingEntry{UserID: userID, TierID: board.ID, ConnID: in.ConnID, JoinedAt: s.now()})
	log.Printf("[MATCH] user=%s waiting on tier=%d (%d waiting)", userID, board.ID, len(s.queue.Waiting(board.ID)))

	s.queue.Sweep(board.ID, func(a, b matchmaking.WaitingEntry) matchmaking.Verdict {
		return s.pair(ctx, board, a, b)
	})
	s.publishStats(ctx)
	return nil
}

func (s *gameServiceImpl) cancelStake(in Intent) error {
	userID, ok := s.userOf(in.ConnID)
	if !ok {
		return ErrNotIdentified
	}
	if s.queue.Cancel(userID) {
		log.Printf("[MATCH] user=%s left the queue", userID)
		s.publishStats(context.Background())
	}
	return nil
}

// pair turns the two oldest waiting entries of a tier into a session.
func (s *gameServiceImpl) pair(ctx context.Context, board config.Board, a, b matchmaking.WaitingEntry) matchmaking.Verdict {
	aLive, bLive := s.live(a), s.live(b)
	switch {
	case !aLive && !bLive:
		return matchmaking.DropBoth
	case !aLive:
		return matchmaking.DropFirst
	case !bLive:
		return matchmaking.DropSecond
	}

	s.ledgerMu.Lock()
	profiles, err := s.users.FindUsers(ctx, a.UserID, b.UserID)
	if err != nil {
		s.ledgerMu.Unlock()
		log.Printf("[MATCH] tier=%d pairing %s/%s deferred: %v", board.ID, a.UserID, b.UserID, err)
		return matchmaking.Rejected
	}
	white, black := profiles[0], profiles[1]

	short := false
	for _, p := range []struct {
		profile account.Profile
		entry   matchmaking.WaitingEntry
	}{{white, a}, {black, b}} {
		if p.profile.Balance < board.Bet {
			short = true
			s.reject(Intent{Kind: IntentSelectStake, ConnID: p.entry.ConnID},
				fmt.Errorf("%w: %s needs %d", engine.ErrInsufficientFunds, board.Title, board.Bet))
		}
	}
	if short {
		s.ledgerMu.Unlock()
		return matchmaking.Rejected
	}

	white.Balance -= board.Bet
	black.Balance -= board.Bet
	if err := s.users.Save(ctx, white, black); err != nil {
		s.ledgerMu.Unlock()
		log.Printf("[MATCH] tier=%d escrow for %s/%s failed: %v", board.ID, a.UserID, b.UserID, err)
		return matchmaking.Rejected
	}
	s.ledgerMu.Unlock()

	g := engine.NewGame(engine.NewGameParams{
		TierID: board.ID,
		Bet:    board.Bet,
		Tip:    s.tip,
		Limit:  board.Limit,
		White:  a.UserID,
		Black:  b.UserID,
		First:  s.coin(),
		Now:    s.now(),
	})
	if err := s.start(ctx, g, a.ConnID, b.ConnID, white, black); err != nil {
		log.Printf("[MATCH] tier=%d could not start %s/%s: %v", board.ID, a.UserID, b.UserID, err)
	}
	return matchmaking.Paired
}

// start registers a funded game and publishes it to both sides. The escrow
// is returned if the session cannot be registered.
func (s *gameServiceImpl) start(ctx context.Context, g *engine.Game, whiteConn, blackConn string, white, black account.Profile) error {
	profiles := map[engine.Color]account.PublicProfile{
		engine.White: account.ToPublic(white),
		engine.Black: account.ToPublic(black),
	}
	sess, err := s.sessions.Create(g, whiteConn, blackConn, profiles)
	if err != nil {
		s.refund(ctx, g)
		return err
	}

	sess.Lock()
	log.Printf("[MATCH] room=%s tier=%d white=%s black=%s first=%s bet=%d",
		g.RoomID, g.TierID, g.White.UserID, g.Black.UserID, g.Turn, g.Bet)
	s.sendProfile(whiteConn, white)
	s.sendProfile(blackConn, black)
	s.publishGame(sess)
	sess.Unlock()

	s.publishStats(ctx)
	return nil
}

func (s *gameServiceImpl) refund(ctx context.Context, g *engine.Game) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	white, black, err := s.players(ctx, g)
	if err == nil {
		white.Balance += g.White.Escrow
		black.Balance += g.Black.Escrow
		err = s.users.Save(ctx, white, black)
	}
	if err != nil {
		log.Printf("[SETTLE] refund of %s/%s failed: %v", g.White.UserID, g.Black.UserID, err)
	}
}

func (s *gameServiceImpl) hasUnfinishedGame(userID string) bool {
	sess, err := s.sessions.FindByUser(userID)
	if err != nil {
		return false
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Removed() || sess.Game.Won != engine.NoColor {
		return false
	}
	c, ok := sess.Game.ColorOf(userID)
	return ok && !sess.Game.Player(c).HasLeft
}

// leaveConcluded detaches connID from a finished game it is still watching.
func (s *gameServiceImpl) leaveConcluded(connID string) {
	_ = s.withSession(connID, func(sess *session.Session, c engine.Color) error {
		if sess.Game.Won != engine.NoColor {
			s.leave(sess, c, connID)
		}
		return nil
	})
}

func (s *gameServiceImpl) backToLobby(in Intent) error {
	return s.withSession(in.ConnID, func(sess *session.Session, c engine.Color) error {
		if sess.Game.Won == engine.NoColor {
			return ErrGameInProgress
		}
		s.leave(sess, c, in.ConnID)
		return nil
	})
}

// leave marks c as gone for good. Callers hold the session lock.
func (s *gameServiceImpl) leave(sess *session.Session, c engine.Color, connID string) {
	g := sess.Game
	me, opp := g.Player(c), g.Player(c.Opponent())
	me.HasLeft = true
	me.WantsAgain = false
	me.Message = msgLeaving
	opp.Message = ""

	slot := sess.Slot(c)
	slot.ConnID = ""
	slot.DisconnectedAt = s.now()
	s.sessions.Unbind(connID)

	log.Printf("[MATCH] room=%s color=%s left", g.RoomID, c)
	s.publisher.Publish(Outbound{Event: EventRemoveUser, ConnIDs: []string{connID}, Payload: RemoveUser{RoomID: sess.ID}})
	s.publishGame(sess)
}

func (s *gameServiceImpl) askPlayAgain(ctx context.Context, in Intent) error {
	var (
		next         *engine.Game
		white, black account.Profile
		whiteConn    string
		blackConn    string
	)

	err := s.withSession(in.ConnID, func(sess *session.Session, c engine.Color) error {
		g := sess.Game
		if g.Won == engine.NoColor {
			return ErrGameInProgress
		}
		me, opp := g.Player(c), g.Player(c.Opponent())
		if opp.HasLeft {
			return ErrOpponentLeft
		}
		me.WantsAgain = true
		me.Message = msgPlayAgain
		if !s.settle(ctx, sess) {
			return nil
		}
		if !opp.WantsAgain {
			s.publishGame(sess)
			return nil
		}

		bet, limit := g.Bet, g.Limit
		if board, err := s.boards.Board(g.TierID); err == nil {
			bet, limit = board.Bet, board.Limit
		}

		s.ledgerMu.Lock()
		defer s.ledgerMu.Unlock()

		w, b, err := s.players(ctx, g)
		if err != nil {
			return err
		}
		if w.Balance < bet || b.Balance < bet {
			for _, col := range colors {
				p := w
				if col == engine.Black {
					p = b
				}
				if p.Balance < bet {
					g.Player(col).Message = msgCannotAfford
				}
			}
			log.Printf("[MATCH] room=%s rematch blocked on funds", g.RoomID)
			s.publishGame(sess)
			return nil
		}

		w.Balance -= bet
		b.Balance -= bet
		if err := s.users.Save(ctx, w, b); err != nil {
			return fmt.Errorf("escrow rematch stake: %w", err)
		}

		now := s.now()
		whiteConn, blackConn = sess.White.ConnID, sess.Black.ConnID
		for _, col := range colors {
			g.Player(col).HasLeft = true
			slot := sess.Slot(col)
			if slot.ConnID != "" {
				s.sessions.Unbind(slot.ConnID)
			}
			slot.ConnID = ""
			slot.DisconnectedAt = now
		}

		next = engine.NewGame(engine.NewGameParams{
			TierID: g.TierID,
			Bet:    bet,
			Tip:    s.tip,
			Limit:  limit,
			White:  g.White.UserID,
			Black:  g.Black.UserID,
			First:  g.Won.Opponent(),
			Now:    now,
		})
		white, black = w, b
		log.Printf("[MATCH] room=%s rematch agreed, %s starts", g.RoomID, next.Turn)
		return nil
	})
	if err != nil || next == nil {
		return err
	}
	return s.start(ctx, next, whiteConn, blackConn, white, black)
}

func (s *gameServiceImpl) announceIdentity(ctx context.Context, in Intent) error {
	userID, err := s.identity.Authenticate(ctx, in.Token)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	profile, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	s.connMu.Lock()
	s.conns[in.ConnID] = userID
	s.connMu.Unlock()

	s.sendProfile(in.ConnID, profile)
	s.resume(userID, in.ConnID)
	s.publisher.Publish(Outbound{Event: EventServerStats, ConnIDs: []string{in.ConnID}, Payload: s.Stats(ctx)})
	return nil
}

// resume rebinds connID to the game userID is still part of.
func (s *gameServiceImpl) resume(userID, connID string) {
	sess, err := s.sessions.FindByUser(userID)
	if err != nil {
		return
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Removed() {
		return
	}
	c, ok := sess.Game.ColorOf(userID)
	if !ok {
		return
	}
	p := sess.Game.Player(c)
	if p.HasLeft {
		return
	}

	slot := sess.Slot(c)
	if old := slot.ConnID; old != "" && old != connID {
		s.sessions.Unbind(old)
		s.publisher.Publish(Outbound{Event: EventRemoveUser, ConnIDs: []string{old}, Payload: RemoveUser{RoomID: sess.ID}})
	}
	if err := s.sessions.Bind(connID, sess.ID, c); err != nil {
		log.Printf("[MATCH] room=%s resume for %s failed: %v", sess.ID, userID, err)
		return
	}
	slot.ConnID = connID
	slot.DisconnectedAt = time.Time{}
	if p.Message == msgDisconnected {
		p.Message = ""
	}

	log.Printf("[MATCH] room=%s color=%s reconnected", sess.ID, c)
	s.publishGame(sess)
}

func (s *gameServiceImpl) disconnect(connID string) {
	s.connMu.Lock()
	userID := s.conns[connID]
	delete(s.conns, connID)
	s.connMu.Unlock()

	if s.queue.CancelConn(connID) {
		log.Printf("[MATCH] user=%s dropped from the queue", userID)
	}

	if sess, c, err := s.sessions.Lookup(connID); err == nil {
		sess.Lock()
		if slot := sess.Slot(c); !sess.Removed() && slot.ConnID == connID {
			slot.ConnID = ""
			slot.DisconnectedAt = s.now()
			if p := sess.Game.Player(c); !p.HasLeft {
				p.Message = msgDisconnected
			}
			log.Printf("[MATCH] room=%s color=%s disconnected", sess.ID, c)
			s.publishGame(sess)
		}
		sess.Unlock()
	}
	s.sessions.Unbind(connID)
	s.publishStats(context.Background())
}

func (s *gameServiceImpl) sendBoards(connID string) error {
	boards, err := s.boards.ListBoards()
	if err != nil {
		return fmt.Errorf("list boards: %w", err)
	}
	s.publisher.Publish(Outbound{Event: EventSetBoards, ConnIDs: []string{connID}, Payload: boards})
	return nil
}

// CheckTimeouts forfeits every game whose clock ran out
func (s *gameServiceImpl) CheckTimeouts(ctx context.Context) int {
	now := s.now()
	forfeited := 0
	for _, sess := range s.sessions.List() {
		sess.Lock()
		if !sess.Removed() && sess.Game.Timeout(now) {
			log.Printf("[SWEEP] room=%s %s ran out of time", sess.ID, sess.Game.Won.Opponent())
			s.conclude(ctx, sess)
			forfeited++
		}
		sess.Unlock()
	}
	return forfeited
}

// ArchiveSweep retries settlements and archives finished sessions
func (s *gameServiceImpl) ArchiveSweep(ctx context.Context) int {
	now := s.now()
	archived := 0
	for _, sess := range s.sessions.List() {
		if s.archiveOne(ctx, sess, now) {
			archived++
		}
	}
	if archived > 0 {
		log.Printf("[SWEEP] archived %d sessions", archived)
	}
	s.publishStats(ctx)
	return archived
}

func (s *gameServiceImpl) archiveOne(ctx context.Context, sess *session.Session, now time.Time) bool {
	sess.Lock()
	defer sess.Unlock()

	g := sess.Game
	if sess.Removed() || g.Won == engine.NoColor {
		return false
	}
	if sess.ConcludedAt.IsZero() {
		sess.ConcludedAt = now
	}
	if !g.Settled {
		if !s.settle(ctx, sess) {
			return false
		}
		s.snapshot(sess)
		s.publishGame(sess)
	}
	if !s.archivable(sess, now) {
		return false
	}

	g.Archived = true
	if err := s.archive.Archive(ctx, account.NewMatchRecord(g, sess.ConcludedAt)); err != nil {
		g.Archived = false
		log.Printf("[SWEEP] room=%s archive failed: %v", sess.ID, err)
		return false
	}
	if ids := sess.ConnIDs(); len(ids) > 0 {
		s.publisher.Publish(Outbound{Event: EventRemoveUser, ConnIDs: ids, Payload: RemoveUser{RoomID: sess.ID}})
	}
	if err := s.sessions.Remove(sess); err != nil {
		log.Printf("[SWEEP] room=%s remove failed: %v", sess.ID, err)
	}
	log.Printf("[SWEEP] room=%s archived", sess.ID)
	return true
}

func (s *gameServiceImpl) archivable(sess *session.Session, now time.Time) bool {
	g := sess.Game
	if g.White.HasLeft && g.Black.HasLeft {
		return true
	}
	if now.Sub(sess.ConcludedAt) >= s.maxAge {
		return true
	}
	for _, c := range colors {
		if sess.DisconnectedFor(c, now) >= s.grace {
			return true
		}
	}
	return false
}

// Stats returns the lobby counters. Callers must not hold a session lock.
func (s *gameServiceImpl) Stats(ctx context.Context) ServerStats {
	s.connMu.RLock()
	connected := len(s.conns)
	s.connMu.RUnlock()

	inProgress := 0
	for _, sess := range s.sessions.List() {
		sess.Lock()
		if !sess.Removed() && sess.Game.Won == engine.NoColor {
			inProgress++
		}
		sess.Unlock()
	}

	return ServerStats{
		GamesInProgress:  inProgress,
		PlayersConnected: connected,
		PlayersWaiting:   s.queue.Len(),
	}
}

// Boards lists the stake tiers
func (s *gameServiceImpl) Boards(ctx context.Context) ([]config.Board, error) {
	return s.boards.ListBoards()
}

// ListSessions returns all active sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) []SessionInfo {
	sessions := s.sessions.List()
	result := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.Lock()
		if !sess.Removed() {
			result = append(result, info(sess))
		}
		sess.Unlock()
	}
	slices.SortFunc(result, func(a, b SessionInfo) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return result
}

// GetSession returns the current view of one session
func (s *gameServiceImpl) GetSession(ctx context.Context, id string) (*GameView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Removed() {
		return nil, session.ErrSessionNotFound
	}
	return view(sess), nil
}

// Profile returns the public profile of a user
func (s *gameServiceImpl) Profile(ctx context.Context, userID string) (account.PublicProfile, error) {
	p, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return account.PublicProfile{}, err
	}
	return account.ToPublic(p), nil
}

// Match returns an archived match
func (s *gameServiceImpl) Match(ctx context.Context, roomID string) (account.MatchRecord, error) {
	if s.matches == nil {
		return account.MatchRecord{}, account.ErrMatchNotFound
	}
	return s.matches.GetMatch(ctx, roomID)
}

func (s *gameServiceImpl) userOf(connID string) (string, bool) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	id, ok := s.conns[connID]
	return id, ok
}

func (s *gameServiceImpl) live(e matchmaking.WaitingEntry) bool {
	id, ok := s.userOf(e.ConnID)
	return ok && id == e.UserID
}

func (s *gameServiceImpl) sendProfile(connID string, p account.Profile) {
	if connID == "" {
		return
	}
	s.publisher.Publish(Outbound{Event: EventSetUser, ConnIDs: []string{connID}, Payload: p})
}

// publishGame sends the current view to both bound connections. Callers hold
// the session lock so views go out in mutation order. A finished game is held
// back until its settlement has been saved.
func (s *gameServiceImpl) publishGame(sess *session.Session) {
	if g := sess.Game; g.Won != engine.NoColor && !g.Settled {
		return
	}
	ids := sess.ConnIDs()
	if len(ids) == 0 {
		return
	}
	s.publisher.Publish(Outbound{Event: EventSetGame, ConnIDs: ids, Payload: view(sess)})
}

func (s *gameServiceImpl) publishStats(ctx context.Context) {
	s.publisher.Publish(Outbound{Event: EventServerStats, Broadcast: true, Payload: s.Stats(ctx)})
}

func connected(sess *session.Session) map[engine.Color]bool {
	return map[engine.Color]bool{
		engine.White: sess.White.ConnID != "",
		engine.Black: sess.Black.ConnID != "",
	}
}

func view(sess *session.Session) *GameView {
	g := sess.Game.Clone()
	v := &GameView{
		Game:      g,
		Phase:     g.Phase(),
		Players:   maps.Clone(sess.Profiles),
		Connected: connected(sess),
	}
	if v.Phase == engine.PhaseAwaitingMoves {
		v.ValidMoves = engine.ComputeValidMoves(g)
	}
	return v
}

func info(sess *session.Session) SessionInfo {
	g := sess.Game
	si := SessionInfo{
		ID:         sess.ID,
		TierID:     g.TierID,
		Phase:      g.Phase(),
		Turn:       g.Turn,
		Multiplier: g.Multiplier,
		Stake:      g.CurrentAmountBet / 2,
		Won:        g.Won,
		Players:    maps.Clone(sess.Profiles),
		Connected:  connected(sess),
		CreatedAt:  sess.CreatedAt,
	}
	if !sess.ConcludedAt.IsZero() {
		t := sess.ConcludedAt
		si.ConcludedAt = &t
	}
	return si
}
