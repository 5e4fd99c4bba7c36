// Package api provides HTTP REST API handlers for the backgammon server.
//
// The api package implements:
//   - Read-only endpoints for stake tiers, server stats and live sessions
//   - Lookups of archived matches and public player profiles
//   - WebSocket upgrade handling
//
// Endpoints:
//
//   - GET /api/boards - List stake tiers
//   - GET /api/stats - Games in progress, connected and waiting players
//   - GET /api/sessions - List live sessions (?tier=, ?order=asc|desc, ?limit=)
//   - GET /api/sessions/{id} - Get a live session's game view
//   - GET /api/matches/{id} - Get an archived match
//   - GET /api/users/{id} - Get a public profile
//   - GET /health - Liveness probe
//   - GET /ws - WebSocket upgrade; all play happens here
//
// Usage:
//
//	apiServer := api.NewServer(gameService, hub)
//	http.ListenAndServe(":3001", apiServer)
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code. Unknown
// ids map to 404:
//
//	{
//	  "error": "session not found"
//	}
package api
