// Package config provides configuration for the backgammon server.
//
// The config package handles:
//   - Stake tiers ("boards") loaded from JSON files
//   - Board validation, listing and caching
//   - Process configuration from environment variables and flags
//
// Board Format:
//
// Each board is a JSON file in the board directory:
//
//	{"id": 1, "title": "Wood", "bet": 100, "limit": 45}
//
// id identifies the matchmaking pool, bet is the entry stake and limit is
// the per-turn clock in seconds. When the directory holds no valid boards the
// built-in tiers (Wood, Stone, Water, Lava, Air and Void) are used.
//
// Server Configuration:
//
// ParseServer reads BACKGAMMON_* environment variables first and then
// applies command-line flags on top:
//
//	cfg, err := config.ParseServer(flag.CommandLine, os.Args[1:])
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Concurrency:
//
// Manager caches parsed boards behind a read-write lock and is safe for
// concurrent use.
package config
