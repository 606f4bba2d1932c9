package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// CreatePainting inserts a pending painting and fills in its ID and CreatedAt.
func (db *DB) CreatePainting(ctx context.Context, p *types.Painting) error {
	if p.Status == "" {
		p.Status = types.PaintingPending
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO paintings (title_id, idea_id, status, used_reference_ids)
		 VALUES ($1, $2, $3, $4::jsonb)
		 RETURNING id, created_at`,
		p.TitleID, p.IdeaID, string(p.Status), IDList(p.UsedReferenceIDs),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create painting: %w", err)
	}
	return nil
}

// CompletePainting records a generated image.
func (db *DB) CompletePainting(ctx context.Context, id uuid.UUID, imageURL string, usedReferenceIDs []uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE paintings
		 SET status = 'completed', image_url = $1, used_reference_ids = $2::jsonb, error_message = NULL, updated_at = clock_timestamp()
		 WHERE id = $3`,
		imageURL, IDList(usedReferenceIDs), id)
	if err != nil {
		return fmt.Errorf("failed to complete painting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to complete painting: %s not found", id)
	}
	return nil
}

// FailPainting records a failed image generation.
func (db *DB) FailPainting(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE paintings
		 SET status = 'failed', error_message = $1, updated_at = clock_timestamp()
		 WHERE id = $2`,
		message, id)
	if err != nil {
		return fmt.Errorf("failed to fail painting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to fail painting: %s not found", id)
	}
	return nil
}

// ListPaintingDetails returns the title's paintings joined with their ideas, newest first.
func (db *DB) ListPaintingDetails(ctx context.Context, titleID uuid.UUID) ([]types.PaintingDetail, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT p.id, p.title_id, p.idea_id, p.status, COALESCE(p.image_url, ''), COALESCE(p.error_message, ''),
		        p.used_reference_ids, p.created_at, i.summary, i.full_prompt, t.title, t.instructions
		 FROM paintings p
		 JOIN ideas i ON p.idea_id = i.id
		 JOIN titles t ON p.title_id = t.id
		 WHERE p.title_id = $1
		 ORDER BY p.created_at DESC`, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list paintings: %w", err)
	}
	defer rows.Close()

	details := []types.PaintingDetail{}
	for rows.Next() {
		var (
			d      types.PaintingDetail
			status string
			used   IDList
		)
		if err := rows.Scan(&d.ID, &d.TitleID, &d.IdeaID, &status, &d.ImageURL, &d.ErrorMessage,
			&used, &d.CreatedAt, &d.Summary, &d.FullPrompt, &d.TitleText, &d.Instructions); err != nil {
			return nil, fmt.Errorf("failed to scan painting: %w", err)
		}
		d.Status = types.PaintingStatus(status)
		d.UsedReferenceIDs = used
		details = append(details, d)
	}
	return details, rows.Err()
}
