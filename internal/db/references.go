package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/painting-generator/internal/types"
)

const referenceColumns = `id, user_id, title_id, image_data, is_global, created_at`

func scanReference(row pgx.Row) (*types.ReferenceImage, error) {
	var r types.ReferenceImage
	if err := row.Scan(&r.ID, &r.UserID, &r.TitleID, &r.ImageData, &r.IsGlobal, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) queryReferences(ctx context.Context, query string, args ...any) ([]types.ReferenceImage, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list references: %w", err)
	}
	defer rows.Close()

	refs := []types.ReferenceImage{}
	for rows.Next() {
		r, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		refs = append(refs, *r)
	}
	return refs, rows.Err()
}

// CreateReference inserts r and fills in its ID and CreatedAt.
func (db *DB) CreateReference(ctx context.Context, r *types.ReferenceImage) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO reference_images (user_id, title_id, image_data, is_global)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		r.UserID, r.TitleID, r.ImageData, r.IsGlobal,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create reference: %w", err)
	}
	return nil
}

// GetReference returns nil, nil when the reference does not exist.
func (db *DB) GetReference(ctx context.Context, id uuid.UUID) (*types.ReferenceImage, error) {
	r, err := scanReference(db.pool.QueryRow(ctx,
		`SELECT `+referenceColumns+` FROM reference_images WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reference: %w", err)
	}
	return r, nil
}

// ListTitleReferences returns the references attached to a title.
func (db *DB) ListTitleReferences(ctx context.Context, titleID uuid.UUID) ([]types.ReferenceImage, error) {
	return db.queryReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images WHERE title_id = $1 ORDER BY created_at`, titleID)
}

// ListGlobalReferences returns the user's global references.
func (db *DB) ListGlobalReferences(ctx context.Context, userID uuid.UUID) ([]types.ReferenceImage, error) {
	return db.queryReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images WHERE user_id = $1 AND is_global ORDER BY created_at`, userID)
}

// ListGenerationReferences returns the title's references plus the user's global ones.
func (db *DB) ListGenerationReferences(ctx context.Context, titleID, userID uuid.UUID) ([]types.ReferenceImage, error) {
	return db.queryReferences(ctx,
		`SELECT `+referenceColumns+` FROM reference_images
		 WHERE title_id = $1 OR (user_id = $2 AND is_global)
		 ORDER BY created_at`, titleID, userID)
}

// GetReferenceData returns the image payloads for the given ids. Unknown ids are absent from the map.
func (db *DB) GetReferenceData(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	data := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return data, nil
	}

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, image_data FROM reference_images WHERE id = ANY($1::uuid[])`, strs)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var imageData string
		if err := rows.Scan(&id, &imageData); err != nil {
			return nil, fmt.Errorf("failed to scan reference data: %w", err)
		}
		data[id] = imageData
	}
	return data, rows.Err()
}

// DeleteReference removes a reference image.
func (db *DB) DeleteReference(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM reference_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reference: %w", err)
	}
	return nil
}
