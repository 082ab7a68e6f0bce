// Package sqlite provides a SQLite-backed store.Store using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/xraph/factoring/store/sqlite/migrations"
	"github.com/xraph/factoring/store/sqlstore"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Dialect describes SQLite to the shared SQL store.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite3",
	Migrations:        &migrate.EmbedFileSystemMigrationSource{FileSystem: migrations.FS, Root: "."},
	IsUniqueViolation: isUniqueViolation,
}

// Open opens a SQLite database file. The store is not migrated; call Migrate.
func Open(path string) (*sqlstore.Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("factoring/sqlite: storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("factoring/sqlite: open: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions serial.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("factoring/sqlite: ping: %w", err)
	}
	return sqlstore.New(db, Dialect), nil
}

// OpenMemory opens a private in-memory database, mainly for tests.
func OpenMemory() (*sqlstore.Store, error) {
	db, err := sqlx.Open(DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("factoring/sqlite: open: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return sqlstore.New(db, Dialect), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
