// Package scores persists finished runs and serves the leaderboard.
package scores

import (
	"context"
	"database/sql"
	"time"
)

// DefaultLimit is the leaderboard size.
const DefaultLimit = 50

// Entry is one leaderboard row. Name is the player's email.
type Entry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Board is the leaderboard collaborator.
type Board interface {
	Add(ctx context.Context, userID string, score int) error
	Top(ctx context.Context, limit int) ([]Entry, error)
}

// Store is the SQL-backed Board.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Add appends a score. Every finished run is its own row.
func (s *Store) Add(ctx context.Context, userID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (user_id, score, created_at) VALUES (?,?,?)`,
		userID, score, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Top returns the highest scores, ties broken by age (oldest first).
func (s *Store) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.email, s.score
		FROM scores s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.score DESC, s.created_at ASC, s.id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
