// Package postgres provides a PostgreSQL-backed store.Store using the pgx
// database/sql driver.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/xraph/factoring/store/postgres/migrations"
	"github.com/xraph/factoring/store/sqlstore"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

const uniqueViolation = "23505"

// Dialect describes PostgreSQL to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Migrations:        &migrate.EmbedFileSystemMigrationSource{FileSystem: migrations.FS, Root: "."},
	IsUniqueViolation: isUniqueViolation,
}

// Open connects to PostgreSQL. The store is not migrated; call Migrate.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("factoring/postgres: dsn is required")
	}
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("factoring/postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("factoring/postgres: ping: %w", err)
	}
	return sqlstore.New(db, Dialect), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
