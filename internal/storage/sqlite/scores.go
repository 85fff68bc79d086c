package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// ErrNegativeBalance is returned by AddScore when the change would take the
// balance below zero. Nothing is written in that case.
var ErrNegativeBalance = errors.New("balance would become negative")

func (c *Client) GetScore(ctx context.Context, userID int64) (*models.Score, error) {
	var (
		s                        models.Score
		createdUnix, updatedUnix int64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT user_id, score, created, updated FROM scores WHERE user_id = ?
	`, userID).Scan(&s.UserID, &s.Score, &createdUnix, &updatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("score of user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	s.Created = time.Unix(createdUnix, 0)
	s.Updated = time.Unix(updatedUnix, 0)
	return &s, nil
}

// AddScore changes a user's balance by delta and appends a record of the
// action in the same transaction. The balance row is created on first use.
func (c *Client) AddScore(ctx context.Context, userID int64, action int, delta int64) (*models.Score, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := c.now()
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO scores (user_id, score, created, updated) VALUES (?, 0, ?, ?)
	`, userID, now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to create score: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE scores SET score = score + ?, updated = ? WHERE user_id = ? AND score + ? >= 0
	`, delta, now.Unix(), userID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNegativeBalance
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO score_records (user_id, action, score_count, created) VALUES (?, ?, ?, ?)
	`, userID, action, delta, now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to insert score record: %w", err)
	}

	var (
		s           models.Score
		createdUnix int64
	)
	if err := tx.QueryRowContext(ctx, `
		SELECT user_id, score, created FROM scores WHERE user_id = ?
	`, userID).Scan(&s.UserID, &s.Score, &createdUnix); err != nil {
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	s.Created = time.Unix(createdUnix, 0)
	s.Updated = time.Unix(now.Unix(), 0)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &s, nil
}

// ListScoreRecords returns a user's records, newest first.
func (c *Client) ListScoreRecords(ctx context.Context, userID int64) ([]*models.ScoreRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, action, score_count, created
		FROM score_records
		WHERE user_id = ?
		ORDER BY created DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list score records: %w", err)
	}
	defer rows.Close()

	var records []*models.ScoreRecord
	for rows.Next() {
		var (
			r           models.ScoreRecord
			createdUnix int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Action, &r.ScoreCount, &createdUnix); err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		r.Created = time.Unix(createdUnix, 0)
		records = append(records, &r)
	}
	return records, rows.Err()
}
