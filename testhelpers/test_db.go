package testhelpers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Dosada05/pong-tournament/db"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
)

// SetupTestDB opens a private in-memory SQLite database with the schema applied.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, dialect, err := db.Connect(":memory:", 5*time.Second)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.Migrate(context.Background(), conn, dialect); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return conn
}

// CreateUser inserts an account to act as a tournament creator.
func CreateUser(t *testing.T, conn *sql.DB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username}
	if err := repositories.NewUserRepository(conn).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}
