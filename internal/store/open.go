package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	sqliteDriverName   = "sqlite"
	postgresDriverName = "pgx"
)

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	db, err := openDB(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, driver, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func openDB(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres:
		db, err := sql.Open(postgresDriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: ping postgres: %w", err)
		}
		return db, nil
	case DriverSQLite, "":
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("store: mkdir: %w", err)
			}
		}
		db, err := sql.Open(sqliteDriverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		for _, p := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("store: %s: %w", p, err)
			}
		}
		return db, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// OpenMemory opens an in-memory SQLite store for tests. A single
// connection keeps every query on the same in-memory database.
func OpenMemory(t testing.TB, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := openDB(ctx, DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, DriverSQLite, opts...)
	if err != nil {
		db.Close()
		t.Fatalf("store.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
