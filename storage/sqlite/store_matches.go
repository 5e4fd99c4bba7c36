package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/backgammon-server/game/account"
	"github.com/wricardo/backgammon-server/game/engine"
)

// ArchiveStats summarises the match archive.
type ArchiveStats struct {
	Matches         int         `json:"matches"`
	TotalStaked     int64       `json:"total_staked"`
	ByTier          map[int]int `json:"by_tier"`
	LastConcludedAt time.Time   `json:"last_concluded_at"`
}

// Archive stores a concluded match. Archiving a room twice keeps the first record.
func (s *Store) Archive(ctx context.Context, rec account.MatchRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(rec.RoomID) == "" {
		return fmt.Errorf("room id is required")
	}
	if rec.Game == nil {
		return fmt.Errorf("game is required")
	}
	gameJSON, err := json.Marshal(rec.Game)
	if err != nil {
		return fmt.Errorf("encode game: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO matches (room_id, tier_id, white_id, black_id, winner, stake, multiplier, game_json, started_at, concluded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(room_id) DO NOTHING`,
		rec.RoomID, rec.TierID, rec.WhiteID, rec.BlackID, string(rec.Winner), rec.Stake, rec.Multiplier,
		string(gameJSON), toMillis(rec.StartedAt), toMillis(rec.ConcludedAt),
	)
	if err != nil {
		return fmt.Errorf("archive match: %w", err)
	}
	return nil
}

const matchColumns = `room_id, tier_id, white_id, black_id, winner, stake, multiplier, game_json, started_at, concluded_at`

func scanMatch(row rowScanner) (account.MatchRecord, error) {
	var (
		rec         account.MatchRecord
		winner      string
		gameJSON    string
		startedAt   int64
		concludedAt int64
	)
	if err := row.Scan(&rec.RoomID, &rec.TierID, &rec.WhiteID, &rec.BlackID, &winner, &rec.Stake,
		&rec.Multiplier, &gameJSON, &startedAt, &concludedAt); err != nil {
		return account.MatchRecord{}, err
	}
	rec.Winner = engine.Color(winner)
	rec.Game = &engine.Game{}
	if err := json.Unmarshal([]byte(gameJSON), rec.Game); err != nil {
		return account.MatchRecord{}, fmt.Errorf("decode game %s: %w", rec.RoomID, err)
	}
	rec.StartedAt = fromMillis(startedAt)
	rec.ConcludedAt = fromMillis(concludedAt)
	return rec, nil
}

// GetMatch returns one archived match.
func (s *Store) GetMatch(ctx context.Context, roomID string) (account.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return account.MatchRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE room_id = ?`, roomID)
	rec, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.MatchRecord{}, fmt.Errorf("%w: %s", account.ErrMatchNotFound, roomID)
		}
		return account.MatchRecord{}, fmt.Errorf("get match: %w", err)
	}
	return rec, nil
}

// ListMatchesForUser returns the most recent matches userID played, newest first.
func (s *Store) ListMatchesForUser(ctx context.Context, userID string, limit int) ([]account.MatchRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		  WHERE white_id = ? OR black_id = ?
		  ORDER BY concluded_at DESC
		  LIMIT ?`,
		userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []account.MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

// Stats aggregates the archive.
func (s *Store) Stats(ctx context.Context) (ArchiveStats, error) {
	if err := s.ready(ctx); err != nil {
		return ArchiveStats{}, err
	}

	var (
		stats ArchiveStats
		last  int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(stake), 0), COALESCE(MAX(concluded_at), 0) FROM matches`,
	).Scan(&stats.Matches, &stats.TotalStaked, &last)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("archive totals: %w", err)
	}
	if last > 0 {
		stats.LastConcludedAt = fromMillis(last)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT tier_id, COUNT(*) FROM matches GROUP BY tier_id`)
	if err != nil {
		return ArchiveStats{}, fmt.Errorf("archive by tier: %w", err)
	}
	defer rows.Close()

	stats.ByTier = make(map[int]int)
	for rows.Next() {
		var tier, n int
		if err := rows.Scan(&tier, &n); err != nil {
			return ArchiveStats{}, fmt.Errorf("scan tier: %w", err)
		}
		stats.ByTier[tier] = n
	}
	return stats, rows.Err()
}
