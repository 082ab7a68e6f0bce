// Package sqlstore implements store.Store over database/sql using sqlx. It is
// shared by the sqlite and postgres backends, which supply the driver,
// migrations and error classification through a Dialect.
//
// Queries are written with ? placeholders and rebound for the driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/xraph/factoring/store"
)

// MigrationTable records applied schema migrations.
const MigrationTable = "factoring_migrations"

// Dialect captures what differs between SQL backends.
type Dialect struct {
	// Name is the sql-migrate dialect ("sqlite3", "postgres").
	Name string

	// Migrations is the schema source for this backend.
	Migrations migrate.MigrationSource

	// IsUniqueViolation reports whether err is a unique or primary key
	// constraint failure.
	IsUniqueViolation func(err error) bool
}

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store on a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

// New wraps an open database handle.
func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying sqlx handle for direct access.
func (s *Store) DB() *sqlx.DB { return s.db }

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	set := migrate.MigrationSet{TableName: MigrationTable}
	if _, err := set.ExecContext(ctx, s.db.DB, s.dialect.Name, s.dialect.Migrations, migrate.Up); err != nil {
		return fmt.Errorf("factoring/%s: migration failed: %w", s.dialect.Name, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn store.TxFunc) error {
	return s.run(ctx, fn, true)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn store.TxFunc) error {
	return s.run(ctx, fn, false)
}

func (s *Store) run(ctx context.Context, fn store.TxFunc, writable bool) (err error) {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("factoring/%s: begin: %w", s.dialect.Name, err)
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(ctx, &tx{tx: sqlTx, writable: writable, dialect: s.dialect}); err != nil {
		return err
	}
	if !writable {
		return sqlTx.Rollback()
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("factoring/%s: commit: %w", s.dialect.Name, err)
	}
	return nil
}
