package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/painting-generator/internal/db"
	"github.com/jonathan/painting-generator/internal/types"
)

type userRow struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    int64     `db:"created_at"`
}

func (r userRow) user() *types.User {
	return &types.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    fromMicros(r.CreatedAt),
	}
}

// CreateUser inserts a user. Returns db.ErrDuplicate when the username or email is taken.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error) {
	row := userRow{ID: uuid.New(), Username: username, Email: email, PasswordHash: passwordHash, CreatedAt: s.now()}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES (:id, :username, :email, :password_hash, :created_at)`, row)
	if err != nil {
		if err = translate(err); errors.Is(err, db.ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return row.user(), nil
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*types.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.user(), nil
}

// GetUserByID returns nil, nil when the user does not exist.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id)
}

// GetUserByUsername returns nil, nil when the user does not exist.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return s.getUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username)
}
