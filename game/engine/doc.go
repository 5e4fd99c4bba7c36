// Package engine provides the core rules of a wagered backgammon match.
//
// The engine package implements:
//   - Move legality, bearing off and the bar re-entry rule
//   - The per-match turn state machine (roll, move, undo, end turn)
//   - Atomic batches of moves with cheating detection
//   - The doubling cube protocol (offer, redouble, accept, decline)
//   - Win, timeout and resignation outcomes
//
// Core Types:
//
// Game holds the full state of one match: both players' positions, the dice,
// the stake and the doubling state, and an append-only history. Position
// counts one color's stones over 26 indices where 0 and 25 are the bar and
// the borne-off slot, swapped by color.
//
// Usage:
//
//	g := engine.NewGame(engine.NewGameParams{
//		RoomID: id, Bet: 100, White: "alice", Black: "bob", First: engine.CoinFlip(), Now: time.Now(),
//	})
//
//	dice, err := g.Roll(engine.White, engine.DefaultRoller)
//	if err != nil {
//		return err
//	}
//	err = g.Move(engine.White, engine.Move{From: 13, To: 13 - dice[0], Die: dice[0]})
//	err = g.EndTurn(engine.White, time.Now())
//
// Concurrency:
//
// The package does no locking and no I/O. Callers serialize access to a Game
// and use Clone to stage changes that depend on an external write.
package engine
