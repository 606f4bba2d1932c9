package main

import (
	"context"
	"fmt"

	"github.com/jonathan/painting-generator/internal/config"
	"github.com/jonathan/painting-generator/internal/db"
	"github.com/jonathan/painting-generator/internal/db/sqlstore"
	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/server"
)

// repository is satisfied by both the Postgres and the sqlx backends.
type repository interface {
	server.Store
	orchestrator.Repository
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ repository = (*db.DB)(nil)
	_ repository = (*sqlstore.Store)(nil)
)

// openRepository connects to the backend selected by the database URL scheme.
func openRepository(ctx context.Context, cfg *config.Config) (repository, string, error) {
	backend, dsn, err := cfg.Database()
	if err != nil {
		return nil, "", err
	}

	switch backend {
	case config.BackendPostgres:
		database, err := db.Connect(ctx, dsn)
		if err != nil {
			return nil, backend, fmt.Errorf("failed to connect to database: %w", err)
		}
		return database, backend, nil
	case config.BackendSQLite, config.BackendMySQL:
		store, err := sqlstore.Open(ctx, backend, dsn)
		if err != nil {
			return nil, backend, fmt.Errorf("failed to connect to database: %w", err)
		}
		return store, backend, nil
	default:
		return nil, backend, fmt.Errorf("unsupported database backend %q", backend)
	}
}
