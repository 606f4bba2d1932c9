package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

const titleColumns = `id, user_id, title, instructions, created_at`

type titleRow struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	Title        string    `db:"title"`
	Instructions string    `db:"instructions"`
	CreatedAt    int64     `db:"created_at"`
}

func (r titleRow) title() types.Title {
	return types.Title{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Instructions: r.Instructions,
		CreatedAt:    fromMicros(r.CreatedAt),
	}
}

// CreateTitle inserts t and fills in its ID and CreatedAt.
func (s *Store) CreateTitle(ctx context.Context, t *types.Title) error {
	row := titleRow{ID: uuid.New(), UserID: t.UserID, Title: t.Title, Instructions: t.Instructions, CreatedAt: s.now()}
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT INTO titles (`+titleColumns+`) VALUES (:id, :user_id, :title, :instructions, :created_at)`, row); err != nil {
		return fmt.Errorf("failed to create title: %w", err)
	}
	t.ID = row.ID
	t.CreatedAt = fromMicros(row.CreatedAt)
	return nil
}

// GetTitle returns nil, nil when the title does not exist.
func (s *Store) GetTitle(ctx context.Context, id uuid.UUID) (*types.Title, error) {
	var row titleRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+titleColumns+` FROM titles WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	t := row.title()
	return &t, nil
}

// ListTitles returns the user's titles, newest first.
func (s *Store) ListTitles(ctx context.Context, userID uuid.UUID) ([]types.Title, error) {
	var rows []titleRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT `+titleColumns+` FROM titles WHERE user_id = ? ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	titles := make([]types.Title, 0, len(rows))
	for _, r := range rows {
		titles = append(titles, r.title())
	}
	return titles, nil
}

// UpdateTitle changes the display text and instructions.
func (s *Store) UpdateTitle(ctx context.Context, t *types.Title) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE titles SET title = ?, instructions = ? WHERE id = ?`, t.Title, t.Instructions, t.ID); err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	return nil
}

// DeleteTitle removes the title with its ideas, paintings and references.
func (s *Store) DeleteTitle(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM paintings WHERE title_id = ?`,
		`DELETE FROM ideas WHERE title_id = ?`,
		`DELETE FROM reference_images WHERE title_id = ?`,
		`DELETE FROM titles WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete title: %w", err)
		}
	}
	return tx.Commit()
}
