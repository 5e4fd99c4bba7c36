// Package service provides the business logic layer for the backgammon server.
//
// The service package implements:
//   - Command dispatch for participant intents
//   - Matchmaking by stake tier and rematches
//   - Doubling cube escrow against the user store
//   - Disconnect and reconnect handling
//   - Timeout forfeits and archival of finished sessions
//
// Core Interfaces:
//
// GameService is the main service interface. Handle applies one intent from
// a connection; CheckTimeouts and ArchiveSweep are driven by the supervisor.
// Publisher receives outbound events. Identity, BoardCatalog, Settler and
// MatchReader are the collaborators the service consumes.
//
// Architecture:
//
// The service layer sits between the transports (WebSocket, HTTP, MCP) and
// the game engine. Every mutation of a session happens under that session's
// lock, and events for a session are published before the lock is released,
// so both participants see updates in the order they were applied. Balance
// changes go through a single ledger lock and are written to the user store
// before the game state that depends on them is committed.
//
// Usage:
//
//	svc := service.NewGameService(service.Deps{
//		Sessions:  session.NewManager(),
//		Queue:     matchmaking.NewQueue(),
//		Users:     store,
//		Archive:   store,
//		Matches:   store,
//		Settler:   settlement.NewService(store),
//		Boards:    boards,
//		Identity:  verifier,
//		Publisher: hub,
//	}, service.Options{Tip: 0.05})
//
//	err := svc.Handle(ctx, service.Intent{Kind: service.IntentRoll, ConnID: id})
package service
