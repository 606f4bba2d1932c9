package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/painting-generator/internal/types"
)

const titleColumns = `id, user_id, title, instructions, created_at`

func scanTitle(row pgx.Row) (*types.Title, error) {
	var t types.Title
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Instructions, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTitle inserts t and fills in its ID and CreatedAt.
func (db *DB) CreateTitle(ctx context.Context, t *types.Title) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO titles (user_id, title, instructions)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		t.UserID, t.Title, t.Instructions,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create title: %w", err)
	}
	return nil
}

// GetTitle returns nil, nil when the title does not exist.
func (db *DB) GetTitle(ctx context.Context, id uuid.UUID) (*types.Title, error) {
	t, err := scanTitle(db.pool.QueryRow(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	return t, nil
}

// ListTitles returns the user's titles, newest first.
func (db *DB) ListTitles(ctx context.Context, userID uuid.UUID) ([]types.Title, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	titles := []types.Title{}
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		titles = append(titles, *t)
	}
	return titles, rows.Err()
}

// UpdateTitle changes the display text and instructions.
func (db *DB) UpdateTitle(ctx context.Context, t *types.Title) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE titles SET title = $1, instructions = $2 WHERE id = $3`,
		t.Title, t.Instructions, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	return nil
}

// DeleteTitle removes the title with its ideas, paintings and references.
func (db *DB) DeleteTitle(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	return nil
}
