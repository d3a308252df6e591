package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
	"github.com/Dosada05/pong-tournament/utils"
)

var ErrAuthInvalidCredentials = errors.New("invalid username or password")

// AuthService checks creator credentials. Accounts are provisioned by
// cmd/seed; there is no self-registration.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{
		userRepo: userRepo,
	}
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return nil, ErrAuthInvalidCredentials
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	if err := utils.ComparePassword(user.PasswordHash, input.Password); err != nil {
		if errors.Is(err, utils.ErrPasswordMismatch) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to check password for user %d: %w", user.ID, err)
	}

	user.PasswordHash = ""
	return user, nil
}
