package server

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/types"
)

// Store is the repository surface used by the HTTP handlers. Both db.DB and
// sqlstore.Store satisfy it. Lookups return nil, nil when nothing matches.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)

	CreateTitle(ctx context.Context, t *types.Title) error
	GetTitle(ctx context.Context, id uuid.UUID) (*types.Title, error)
	ListTitles(ctx context.Context, userID uuid.UUID) ([]types.Title, error)
	UpdateTitle(ctx context.Context, t *types.Title) error
	DeleteTitle(ctx context.Context, id uuid.UUID) error

	CreateReference(ctx context.Context, r *types.ReferenceImage) error
	GetReference(ctx context.Context, id uuid.UUID) (*types.ReferenceImage, error)
	ListTitleReferences(ctx context.Context, titleID uuid.UUID) ([]types.ReferenceImage, error)
	ListGlobalReferences(ctx context.Context, userID uuid.UUID) ([]types.ReferenceImage, error)
	GetReferenceData(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	DeleteReference(ctx context.Context, id uuid.UUID) error

	ListPaintingDetails(ctx context.Context, titleID uuid.UUID) ([]types.PaintingDetail, error)
}
