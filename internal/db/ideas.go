package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// CreateIdea inserts idea and fills in its ID and CreatedAt.
func (db *DB) CreateIdea(ctx context.Context, idea *types.Idea) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO ideas (title_id, summary, full_prompt)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		idea.TitleID, idea.Summary, idea.FullPrompt,
	).Scan(&idea.ID, &idea.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	return nil
}

// ListIdeas returns every idea of the title, newest first.
func (db *DB) ListIdeas(ctx context.Context, titleID uuid.UUID) ([]types.Idea, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title_id, summary, full_prompt, created_at
		 FROM ideas WHERE title_id = $1
		 ORDER BY created_at DESC`, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	ideas := []types.Idea{}
	for rows.Next() {
		var i types.Idea
		if err := rows.Scan(&i.ID, &i.TitleID, &i.Summary, &i.FullPrompt, &i.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, i)
	}
	return ideas, rows.Err()
}
