package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/pong-tournament/brackets"
	"github.com/Dosada05/pong-tournament/metrics"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
)

const (
	semifinalPoolSize = 4
	finalPoolSize     = 2
)

func (s *tournamentService) StartTournament(ctx context.Context, tournamentID int) (*StartTournamentResult, error) {
	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	batch := &eventBatch{tournamentID: tournamentID}
	var matches []MatchView

	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		tournament, err := s.loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if !tournament.IsPending() {
			return ErrTournamentNotPending
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournamentID, models.TournamentStatusStarted); err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrUpdateFailed
			}
			return fmt.Errorf("failed to start tournament %d: %w", tournamentID, err)
		}

		matches, err = s.createMatch(ctx, tx, tournamentID, batch)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.TournamentStarted()
	s.logger.Info("tournament started", slog.Int("tournament_id", tournamentID), slog.Int("matches", len(matches)))

	result := &StartTournamentResult{Message: "Tournament started", Matches: matches}
	if batch.champion != nil {
		result.Message = fmt.Sprintf("Tournament finished: %s is the champion", batch.champion.Champion)
	}
	// The started event goes out ahead of anything createMatch queued.
	s.events.PublishTournamentEvent(tournamentID, EventTournamentStarted, result)
	s.afterCommit(ctx, batch)

	return result, nil
}

// createMatch generates the next round for the tournament inside tx.
//
// Participants holding winner status form the pool when there are at least
// two of them (the final); otherwise the joined participants do (the
// semifinals). Four players are shuffled once as a group and split into
// two semifinals, two players are shuffled into the final, and a lone
// player is declared champion. Any other count is ErrInsufficientPlayers.
func (s *tournamentService) createMatch(ctx context.Context, tx *sql.Tx, tournamentID int, batch *eventBatch) ([]MatchView, error) {
	winnerStatus := models.ParticipantStatusWinner
	pool, err := s.participantRepo.ListByTournament(ctx, tx, tournamentID, &winnerStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners of tournament %d: %w", tournamentID, err)
	}
	if len(pool) < 2 {
		joinedStatus := models.ParticipantStatusJoined
		pool, err = s.participantRepo.ListByTournament(ctx, tx, tournamentID, &joinedStatus)
		if err != nil {
			return nil, fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
		}
	}

	var params brackets.GenerateBracketParams
	switch len(pool) {
	case semifinalPoolSize:
		// One shuffle across all four so both pairings are drawn jointly;
		// the pairs themselves are not reshuffled.
		s.shuffler.ShuffleParticipants(pool)
		params = brackets.GenerateBracketParams{Round: models.RoundSemifinal, Players: pool}
	case finalPoolSize:
		params = brackets.GenerateBracketParams{Round: models.RoundFinal, Players: pool, Shuffle: true}
	case 1:
		if err := s.declareChampion(ctx, tx, tournamentID, pool[0].TournamentAlias, batch); err != nil {
			return nil, err
		}
		return []MatchView{}, nil
	default:
		return nil, fmt.Errorf("%w: tournament %d has %d eligible players", ErrInsufficientPlayers, tournamentID, len(pool))
	}

	return s.insertPairings(ctx, tx, tournamentID, params)
}

// insertPairings stores one pending match per consecutive pair of players.
func (s *tournamentService) insertPairings(ctx context.Context, tx *sql.Tx, tournamentID int, params brackets.GenerateBracketParams) ([]MatchView, error) {
	pairings, err := s.generator.GenerateBracket(ctx, params)
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughPlayers) || errors.Is(err, brackets.ErrOddPlayerCount) {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientPlayers, err)
		}
		return nil, fmt.Errorf("failed to pair players of tournament %d: %w", tournamentID, err)
	}

	views := make([]MatchView, 0, len(pairings))
	for _, pairing := range pairings {
		match := &models.Match{
			UserScore:     0,
			OpponentScore: 0,
			Result:        models.MatchResultPending,
			Round:         pairing.Round,
			TournamentID:  tournamentID,
			Player1ID:     &pairing.Player1.ID,
			Player2ID:     &pairing.Player2.ID,
			OpponentName:  models.FormatMatchup(pairing.Player1.TournamentAlias, pairing.Player2.TournamentAlias),
		}
		if err := s.matchRepo.Create(ctx, tx, match); err != nil {
			return nil, fmt.Errorf("failed to create %s match %q: %w", pairing.Round, match.OpponentName, err)
		}

		views = append(views, MatchView{
			MatchID: match.ID,
			Round:   match.Round,
			Player1: newPlayerView(pairing.Player1),
			Player2: newPlayerView(pairing.Player2),
		})
		s.logger.Debug("match created",
			slog.Int("tournament_id", tournamentID),
			slog.Int("match_id", match.ID),
			slog.String("round", string(match.Round)),
			slog.String("pairing", match.OpponentName))
	}
	return views, nil
}
