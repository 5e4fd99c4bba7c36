// Package account defines user profiles and the storage contracts the match
// server depends on: a user store for balances and ratings, and a write-once
// archive for concluded matches.
package account
