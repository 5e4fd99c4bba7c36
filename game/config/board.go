package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrInvalidBoard  = errors.New("invalid board")
)

const (
	MinLimitSeconds = 10
	MaxLimitSeconds = 600
)

// Board is a stake tier: the entry bet and the per-turn clock of a matchmaking pool.
type Board struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Bet   int64  `json:"bet"`
	// Limit is the per-turn clock in seconds.
	Limit int `json:"limit"`
}

// DefaultBoards returns the built-in stake tiers.
func DefaultBoards() []Board {
	return []Board{
		{ID: 1, Title: "Wood", Bet: 100, Limit: 45},
		{ID: 2, Title: "Stone", Bet: 200, Limit: 45},
		{ID: 3, Title: "Water", Bet: 500, Limit: 45},
		{ID: 4, Title: "Lava", Bet: 1000, Limit: 45},
		{ID: 5, Title: "Air", Bet: 5000, Limit: 45},
		{ID: 6, Title: "Void", Bet: 20000, Limit: 45},
	}
}

// ValidateBoard checks that a board can be used to start matches.
func ValidateBoard(b *Board) error {
	if b == nil {
		return fmt.Errorf("board is nil")
	}
	if b.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", b.ID)
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if b.Bet <= 0 {
		return fmt.Errorf("bet must be positive, got %d", b.Bet)
	}
	if b.Limit < MinLimitSeconds || b.Limit > MaxLimitSeconds {
		return fmt.Errorf("limit must be between %d and %d seconds, got %d", MinLimitSeconds, MaxLimitSeconds, b.Limit)
	}
	return nil
}
