// Command seed creates (or reuses) a creator account and prints a bearer
// token for it, so tournaments can be created against a fresh database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Dosada05/pong-tournament/config"
	"github.com/Dosada05/pong-tournament/db"
	"github.com/Dosada05/pong-tournament/middleware"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
	"github.com/Dosada05/pong-tournament/utils"
)

func main() {
	username := flag.String("username", "admin", "account username")
	password := flag.String("password", "", "account password (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), *username, *password, *ttl); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, username, password string, ttl time.Duration) error {
	if password == "" {
		return errors.New("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	conn, dialect, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn, dialect); err != nil {
		return err
	}

	users := repositories.NewUserRepository(conn)
	user, err := users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		hash, err := utils.HashPassword(password)
		if err != nil {
			return err
		}
		user = &models.User{Username: username, PasswordHash: hash}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := utils.ComparePassword(user.PasswordHash, password); err != nil {
			return fmt.Errorf("existing user %q: %w", username, err)
		}
	}

	token, err := middleware.IssueToken(cfg.JWTSecretKey, user.ID, ttl)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Printf("user_id=%d\ntoken=%s\n", user.ID, token)
	return nil
}
