package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/standup/internal/types"
)

func ensureProfile(ctx context.Context, q execContext, userID, ts string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO profiles (id, points, created_at, updated_at)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, userID, ts, ts)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func getProfile(ctx context.Context, q querier, userID string) (*types.Profile, error) {
	var p types.Profile
	var name sql.NullString
	var createdAt, updatedAt string

	err := q.QueryRowContext(ctx, `
		SELECT id, display_name, points, created_at, updated_at FROM profiles WHERE id = ?
	`, userID).Scan(&p.ID, &name, &p.Points, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	p.DisplayName = nullableString(name)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// GetOrCreateProfile returns the user's profile, creating it with zero points.
func (s *SQLiteStore) GetOrCreateProfile(ctx context.Context, userID string) (*types.Profile, error) {
	var profile *types.Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureProfile(ctx, tx, userID, formatTime(s.now())); err != nil {
			return err
		}
		var err error
		profile, err = getProfile(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateDisplayName sets or clears the user's display name.
func (s *SQLiteStore) UpdateDisplayName(ctx context.Context, userID string, name *string) (*types.Profile, error) {
	var display *string
	if name != nil {
		display = optionalText(*name)
	}

	var profile *types.Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ts := formatTime(s.now())
		if err := ensureProfile(ctx, tx, userID, ts); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE profiles SET display_name = ?, updated_at = ? WHERE id = ?`,
			stringOrNil(display), ts, userID); err != nil {
			return fmt.Errorf("update display name: %w", err)
		}
		var err error
		profile, err = getProfile(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}
