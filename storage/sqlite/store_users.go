package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wricardo/backgammon-server/game/account"
)

const userColumns = `id, username, picture, balance, rating_history, experience, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (account.Profile, error) {
	var (
		p         account.Profile
		history   string
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Username, &p.Picture, &p.Balance, &history, &p.Experience, &createdAt); err != nil {
		return account.Profile{}, err
	}
	if err := json.Unmarshal([]byte(history), &p.RatingHistory); err != nil {
		return account.Profile{}, fmt.Errorf("decode rating history for %s: %w", p.ID, err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// CreateUser inserts a new user profile.
func (s *Store) CreateUser(ctx context.Context, p account.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if p.Balance < 0 {
		return fmt.Errorf("balance must not be negative")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	history, err := json.Marshal(nonNil(p.RatingHistory))
	if err != nil {
		return fmt.Errorf("encode rating history: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO users (id, username, picture, balance, rating_history, experience, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Username, p.Picture, p.Balance, string(history), p.Experience,
		toMillis(p.CreatedAt), toMillis(p.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindUser fetches one profile by id.
func (s *Store) FindUser(ctx context.Context, id string) (account.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return account.Profile{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	p, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Profile{}, fmt.Errorf("%w: %s", account.ErrUserNotFound, id)
		}
		return account.Profile{}, fmt.Errorf("get user: %w", err)
	}
	return p, nil
}

// FindUsers fetches profiles in the order of ids.
func (s *Store) FindUsers(ctx context.Context, ids ...string) ([]account.Profile, error) {
	profiles := make([]account.Profile, 0, len(ids))
	for _, id := range ids {
		p, err := s.FindUser(ctx, id)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Save writes balance, rating history and experience of every profile in one
// transaction. Either all profiles are updated or none is.
func (s *Store) Save(ctx context.Context, profiles ...account.Profile) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	updatedAt := toMillis(s.now())
	for _, p := range profiles {
		history, err := json.Marshal(nonNil(p.RatingHistory))
		if err != nil {
			return fmt.Errorf("encode rating history: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE users
			    SET username = ?, picture = ?, balance = ?, rating_history = ?, experience = ?, updated_at = ?
			  WHERE id = ?`,
			p.Username, p.Picture, p.Balance, string(history), p.Experience, updatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("save user %s: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("save user %s: %w", p.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", account.ErrUserNotFound, p.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit users: %w", err)
	}
	return nil
}

// ListUsers returns up to limit users ordered by username.
func (s *Store) ListUsers(ctx context.Context, limit int) ([]account.Profile, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []account.Profile
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func nonNil(history []float64) []float64 {
	if history == nil {
		return []float64{}
	}
	return history
}
