// Package mcp provides a Model Context Protocol surface for the backgammon server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Read-only tools backed by the REST API
//   - Text rendering of boards, sessions and archived matches
//
// MCP Tools:
//   - list_boards: Stake tiers with bet and clock
//   - server_stats: Games in progress, connected and waiting players
//   - list_sessions: Live sessions, optionally filtered by tier
//   - get_session: Board, dice and cube of one live session
//   - get_match: An archived match
//   - get_profile: A player's public profile
//   - game_rules: The rules the server enforces
//
// Play is not exposed here. Moves require an authenticated WebSocket
// connection.
//
// Transport Modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: POST /mcp on the main server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3001")
//	server.ServeStdio(client.GetMCPServer())
package mcp
