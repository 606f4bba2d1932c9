// Package sqlstore implements the painting repository on SQLite or MySQL using sqlx.
//
// Timestamps are stored as unix microseconds so ordering is identical on both
// engines. Ids are generated here rather than by the database.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jonathan/painting-generator/internal/db"
)

// Supported driver names.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store is a sqlx-backed repository.
type Store struct {
	db     *sqlx.DB
	driver string

	clockMu sync.Mutex
	last    int64
}

// Open connects to the database. For SQLite the pool is limited to a single
// connection so in-memory databases are shared and writes are serialized.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(32)
		conn.SetMaxIdleConns(16)
	}

	return &Store{db: conn, driver: driver}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if s.driver == DriverMySQL {
		statements = mysqlSchema
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// now returns a strictly increasing unix microsecond timestamp.
func (s *Store) now() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	ts := time.Now().UnixMicro()
	if ts <= s.last {
		ts = s.last + 1
	}
	s.last = ts
	return ts
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// translate maps engine-specific unique violations to db.ErrDuplicate.
func translate(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return db.ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return db.ErrDuplicate
	}
	return err
}
