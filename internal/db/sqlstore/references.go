package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonathan/painting-generator/internal/types"
)

const referenceColumns = `id, user_id, title_id, image_data, is_global, created_at`

type referenceRow struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	TitleID   *uuid.UUID `db:"title_id"`
	ImageData string     `db:"image_data"`
	IsGlobal  bool       `db:"is_global"`
	CreatedAt int64      `db:"created_at"`
}

func (r referenceRow) reference() types.ReferenceImage {
	return types.ReferenceImage{
		ID:        r.ID,
		UserID:    r.UserID,
		TitleID:   r.TitleID,
		ImageData: r.ImageData,
		IsGlobal:  r.IsGlobal,
		CreatedAt: fromMicros(r.CreatedAt),
	}
}

func (s *Store) selectReferences(ctx context.Context, query string, args ...any) ([]types.ReferenceImage, error) {
	var rows []referenceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	refs := make([]types.ReferenceImage, 0, len(rows))
	for _, r := range rows {
		refs = append(refs, r.reference())
	}
	return refs, nil
}

// CreateReference inserts r and fills in its ID and CreatedAt.
func (s *Store) CreateReference(ctx context.Context, r *types.ReferenceImage) error {
	row := referenceRow{
		ID:        uuid.New(),
		UserID:    r.UserID,
		TitleID:   r.TitleID,
		ImageData: r.ImageData,
		IsGlobal:  r.IsGlobal,
		CreatedAt: s.now(),
	}
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT INTO reference_images (`+referenceColumns+`)
		 VALUES (:id, :user_id, :title_id, :image_data, :is_global, :created_at)`, row); err != nil {
		return fmt.Errorf("failed to create reference: %w", err)
	}
	r.ID = row.ID
	r.CreatedAt = fromMicros(row.CreatedAt)
	return nil
}

// GetReference returns nil, nil when the reference does not exist.
func (s *Store) GetReference(ctx context.Context, id uuid.UUID) (*types.ReferenceImage, error) {
	var row referenceRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+referenceColumns+` FROM reference_images WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reference: %w", err)
	}
	r := row.reference()
	return &r, nil
}

// ListTitleReferences returns the references attached to a title.
func (s *Store) ListTitleReferences(ctx context.Context, titleID uuid.UUID) ([]types.ReferenceImage, error) {
	return s.selectReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images WHERE title_id = ? ORDER BY created_at`, titleID)
}

// ListGlobalReferences returns the user's global references.
func (s *Store) ListGlobalReferences(ctx context.Context, userID uuid.UUID) ([]types.ReferenceImage, error) {
	return s.selectReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images WHERE user_id = ? AND is_global = 1 ORDER BY created_at`, userID)
}

// ListGenerationReferences returns the title's references plus the user's global ones.
func (s *Store) ListGenerationReferences(ctx context.Context, titleID, userID uuid.UUID) ([]types.ReferenceImage, error) {
	return s.selectReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images
		 WHERE title_id = ? OR (user_id = ? AND is_global = 1)
		 ORDER BY created_at`, titleID, userID)
}

// GetReferenceData returns the image payloads for the given ids. Unknown ids are absent from the map.
func (s *Store) GetReferenceData(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	data := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return data, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	query, args, err := sqlx.In(`SELECT id, image_data FROM reference_images WHERE id IN (?)`, strs)
	if err != nil {
		return nil, fmt.Errorf("failed to build reference query: %w", err)
	}

	var rows []struct {
		ID        uuid.UUID `db:"id"`
		ImageData string    `db:"image_data"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	for _, r := range rows {
		data[r.ID] = r.ImageData
	}
	return data, nil
}

// DeleteReference removes a reference image.
func (s *Store) DeleteReference(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reference_images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete reference: %w", err)
	}
	return nil
}
