package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
)

// ErrMatchesListFailed - общая ошибка для листинга матчей
var ErrMatchesListFailed = errors.New("failed to list matches")

type MatchService interface {
	ListMatchesByTournament(ctx context.Context, tournamentID int, round *models.MatchRound) ([]*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
	}
}

func (s *matchService) ListMatchesByTournament(ctx context.Context, tournamentID int, round *models.MatchRound) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("%w: tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}

	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, round)
	if err != nil {
		return nil, fmt.Errorf("%w: tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}
	return matches, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return match, nil
}
