package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/db"
	"github.com/jonathan/painting-generator/internal/types"
)

type ideaRow struct {
	ID         uuid.UUID `db:"id"`
	TitleID    uuid.UUID `db:"title_id"`
	Summary    string    `db:"summary"`
	FullPrompt string    `db:"full_prompt"`
	CreatedAt  int64     `db:"created_at"`
}

// CreateIdea inserts idea and fills in its ID and CreatedAt.
func (s *Store) CreateIdea(ctx context.Context, idea *types.Idea) error {
	row := ideaRow{ID: uuid.New(), TitleID: idea.TitleID, Summary: idea.Summary, FullPrompt: idea.FullPrompt, CreatedAt: s.now()}
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT INTO ideas (id, title_id, summary, full_prompt, created_at)
		 VALUES (:id, :title_id, :summary, :full_prompt, :created_at)`, row); err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	idea.ID = row.ID
	idea.CreatedAt = fromMicros(row.CreatedAt)
	return nil
}

// ListIdeas returns every idea of the title, newest first.
func (s *Store) ListIdeas(ctx context.Context, titleID uuid.UUID) ([]types.Idea, error) {
	var rows []ideaRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, title_id, summary, full_prompt, created_at
		 FROM ideas WHERE title_id = ?
		 ORDER BY created_at DESC`, titleID); err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	ideas := make([]types.Idea, 0, len(rows))
	for _, r := range rows {
		ideas = append(ideas, types.Idea{
			ID:         r.ID,
			TitleID:    r.TitleID,
			Summary:    r.Summary,
			FullPrompt: r.FullPrompt,
			CreatedAt:  fromMicros(r.CreatedAt),
		})
	}
	return ideas, nil
}

// CreatePainting inserts a pending painting and fills in its ID and CreatedAt.
func (s *Store) CreatePainting(ctx context.Context, p *types.Painting) error {
	if p.Status == "" {
		p.Status = types.PaintingPending
	}
	id := uuid.New()
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO paintings (id, title_id, idea_id, status, used_reference_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.TitleID, p.IdeaID, string(p.Status), db.IDList(p.UsedReferenceIDs), now, now); err != nil {
		return fmt.Errorf("failed to create painting: %w", translate(err))
	}
	p.ID = id
	p.CreatedAt = fromMicros(now)
	return nil
}

// CompletePainting records a generated image.
func (s *Store) CompletePainting(ctx context.Context, id uuid.UUID, imageURL string, usedReferenceIDs []uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE paintings
		 SET status = 'completed', image_url = ?, used_reference_ids = ?, error_message = NULL, updated_at = ?
		 WHERE id = ?`,
		imageURL, db.IDList(usedReferenceIDs), s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete painting: %w", err)
	}
	return expectRow(res, "complete", id)
}

// FailPainting records a failed image generation.
func (s *Store) FailPainting(ctx context.Context, id uuid.UUID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE paintings SET status = 'failed', error_message = ?, updated_at = ? WHERE id = ?`,
		message, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to fail painting: %w", err)
	}
	return expectRow(res, "fail", id)
}

func expectRow(res sql.Result, op string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s painting: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s painting: %s not found", op, id)
	}
	return nil
}

type paintingDetailRow struct {
	ID               uuid.UUID `db:"id"`
	TitleID          uuid.UUID `db:"title_id"`
	IdeaID           uuid.UUID `db:"idea_id"`
	Status           string    `db:"status"`
	ImageURL         string    `db:"image_url"`
	ErrorMessage     string    `db:"error_message"`
	UsedReferenceIDs db.IDList `db:"used_reference_ids"`
	CreatedAt        int64     `db:"created_at"`
	Summary          string    `db:"summary"`
	FullPrompt       string    `db:"full_prompt"`
	TitleText        string    `db:"title"`
	Instructions     string    `db:"instructions"`
}

// ListPaintingDetails returns the title's paintings joined with their ideas, newest first.
func (s *Store) ListPaintingDetails(ctx context.Context, titleID uuid.UUID) ([]types.PaintingDetail, error) {
	var rows []paintingDetailRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT p.id, p.title_id, p.idea_id, p.status,
		        COALESCE(p.image_url, '') AS image_url, COALESCE(p.error_message, '') AS error_message,
		        p.used_reference_ids, p.created_at, i.summary, i.full_prompt, t.title, t.instructions
		 FROM paintings p
		 JOIN ideas i ON p.idea_id = i.id
		 JOIN titles t ON p.title_id = t.id
		 WHERE p.title_id = ?
		 ORDER BY p.created_at DESC`, titleID); err != nil {
		return nil, fmt.Errorf("failed to list paintings: %w", err)
	}

	details := make([]types.PaintingDetail, 0, len(rows))
	for _, r := range rows {
		details = append(details, types.PaintingDetail{
			Painting: types.Painting{
				ID:               r.ID,
				TitleID:          r.TitleID,
				IdeaID:           r.IdeaID,
				Status:           types.PaintingStatus(r.Status),
				ImageURL:         r.ImageURL,
				ErrorMessage:     r.ErrorMessage,
				UsedReferenceIDs: r.UsedReferenceIDs,
				CreatedAt:        fromMicros(r.CreatedAt),
			},
			Summary:      r.Summary,
			FullPrompt:   r.FullPrompt,
			TitleText:    r.TitleText,
			Instructions: r.Instructions,
		})
	}
	return details, nil
}
