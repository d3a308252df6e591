package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Dialect names the SQL backend in use.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ParseURL picks the driver for a DATABASE_URL. Anything that is not a
// postgres URL is treated as a SQLite DSN; an optional sqlite:// prefix is stripped.
func ParseURL(databaseURL string) (Dialect, string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(databaseURL, "sqlite://")
	default:
		return DialectSQLite, databaseURL
	}
}

func Connect(databaseURL string, timeout time.Duration) (*sql.DB, Dialect, error) {
	dialect, dsn := ParseURL(databaseURL)

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create database handle: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		// One connection: SQLite has a single writer, and an in-memory
		// database lives only as long as its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	if dialect == DialectSQLite {
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, "", fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	return db, dialect, nil
}

// Migrate applies the embedded schema for the dialect. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	raw, err := schemaFS.ReadFile("schema/" + string(dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("no schema for dialect %q: %w", dialect, err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
