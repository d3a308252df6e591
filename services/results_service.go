package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/pong-tournament/metrics"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
)

// UpdateMatchResults records the score of a pending match and advances the
// bracket. userScore belongs to the first alias of the pairing.
//
// When the caller is the tournament creator the row is stored from the
// creator's side: WIN/LOSS with their own score first, or
// DID_NOT_PARTICIPATE with both scores zeroed when they were not in the
// pairing. The winner is always decided on the generic scores.
func (s *tournamentService) UpdateMatchResults(ctx context.Context, input UpdateMatchResultsInput) (*MatchOutcome, error) {
	match, err := s.loadMatch(ctx, nil, input.MatchID)
	if err != nil {
		return nil, err
	}

	if input.UserScore < 0 || input.OpponentScore < 0 {
		return nil, ErrInvalidScore
	}
	if input.UserScore == input.OpponentScore && s.drawPolicy != DrawPolicyAllow {
		return nil, ErrDrawNotAllowed
	}

	unlock := s.locks.Lock(match.TournamentID)
	defer unlock()

	batch := &eventBatch{tournamentID: match.TournamentID}
	outcome := &MatchOutcome{}
	var recorded models.Match

	err = withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		match, err := s.loadMatch(ctx, tx, input.MatchID)
		if err != nil {
			return err
		}
		if match.IsTerminal() {
			return ErrMatchAlreadyRecorded
		}
		tournament, err := s.loadTournament(ctx, tx, match.TournamentID)
		if err != nil {
			return err
		}
		if tournament.IsFinished() {
			return ErrTournamentFinished
		}

		player1, player2, err := s.matchPlayers(ctx, tx, match)
		if err != nil {
			return err
		}

		var winner, loser *models.Participant
		switch {
		case input.UserScore > input.OpponentScore:
			winner, loser = player1, player2
		case input.UserScore < input.OpponentScore:
			winner, loser = player2, player1
		}

		recorded = *match
		recorded.UserID = nil
		recorded.UserScore = input.UserScore
		recorded.OpponentScore = input.OpponentScore
		recorded.Result = models.MatchResultDraw
		if winner != nil {
			recorded.Result = models.MatchResultFinished
			recorded.OpponentName = models.AnnotateWinner(match.OpponentName, winner.TournamentAlias)
		}
		reconcileCreator(&recorded, tournament, player1, player2, winner, input.LoggedInUserID)

		if err := s.matchRepo.RecordResult(ctx, tx, &recorded); err != nil {
			if errors.Is(err, repositories.ErrMatchNotUpdated) {
				return ErrUpdateFailed
			}
			return fmt.Errorf("failed to record result of match %d: %w", match.ID, err)
		}
		batch.add(EventMatchUpdated, recorded)

		if winner == nil {
			if recorded.Round == models.RoundSemifinal {
				s.logger.Warn("semifinal drawn, bracket cannot advance",
					slog.Int("tournament_id", match.TournamentID),
					slog.Int("match_id", match.ID))
			}
			return nil
		}

		winnerAlias, loserAlias := winner.TournamentAlias, loser.TournamentAlias
		outcome.WinnerAlias, outcome.LoserAlias = &winnerAlias, &loserAlias

		return s.advance(ctx, tx, &recorded, winner, batch)
	})
	if err != nil {
		return nil, err
	}

	metrics.MatchRecorded(string(recorded.Round), string(recorded.Result))
	s.logger.Info("match result recorded",
		slog.Int("tournament_id", recorded.TournamentID),
		slog.Int("match_id", recorded.ID),
		slog.String("result", string(recorded.Result)),
		slog.String("opponent_name", recorded.OpponentName))
	s.afterCommit(ctx, batch)

	return outcome, nil
}

// advance moves the winner of match on: a semifinal winner gets winner
// status and the final is generated once two winners exist; the final
// winner becomes champion.
func (s *tournamentService) advance(ctx context.Context, tx *sql.Tx, match *models.Match, winner *models.Participant, batch *eventBatch) error {
	switch match.Round {
	case models.RoundSemifinal:
		if err := s.participantRepo.UpdateStatus(ctx, tx, winner.ID, models.ParticipantStatusWinner); err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrUpdateFailed
			}
			return fmt.Errorf("failed to advance %q: %w", winner.TournamentAlias, err)
		}

		winnerStatus := models.ParticipantStatusWinner
		winners, err := s.participantRepo.CountByTournament(ctx, tx, match.TournamentID, &winnerStatus)
		if err != nil {
			return fmt.Errorf("failed to count winners of tournament %d: %w", match.TournamentID, err)
		}
		if winners != finalPoolSize {
			return nil
		}

		final, err := s.createMatch(ctx, tx, match.TournamentID, batch)
		if err != nil {
			return fmt.Errorf("failed to create final of tournament %d: %w", match.TournamentID, err)
		}
		batch.add(EventFinalCreated, final)
		return nil

	case models.RoundFinal:
		champion, err := s.participantRepo.FindByAlias(ctx, tx, match.TournamentID, winner.TournamentAlias)
		if err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				s.logger.Warn("final winner is not a participant, no champion declared",
					slog.Int("tournament_id", match.TournamentID),
					slog.String("alias", winner.TournamentAlias))
				return nil
			}
			return fmt.Errorf("failed to look up final winner: %w", err)
		}
		return s.declareChampion(ctx, tx, match.TournamentID, champion.TournamentAlias, batch)
	}
	return nil
}

// reconcileCreator rewrites record from the creator's point of view when
// the logged-in caller created the tournament.
func reconcileCreator(record *models.Match, tournament *models.Tournament, player1, player2, winner *models.Participant, loggedInUserID *int) {
	if loggedInUserID == nil || *loggedInUserID != tournament.CreatedBy {
		return
	}
	creatorID := tournament.CreatedBy

	switch tournament.CreatorAlias {
	case player1.TournamentAlias:
		record.UserID = &creatorID
		record.Result = creatorResult(record.Result, winner, player1)
	case player2.TournamentAlias:
		record.UserID = &creatorID
		record.UserScore, record.OpponentScore = record.OpponentScore, record.UserScore
		record.Result = creatorResult(record.Result, winner, player2)
	default:
		record.UserScore, record.OpponentScore = 0, 0
		record.Result = models.MatchResultDidNotParticipate
	}
}

func creatorResult(base models.MatchResult, winner, creator *models.Participant) models.MatchResult {
	if winner == nil {
		return base
	}
	if winner.TournamentAlias == creator.TournamentAlias {
		return models.MatchResultWin
	}
	return models.MatchResultLoss
}

// matchPlayers resolves both sides of a match through the player
// references, falling back to the "A vs B" name for rows without them.
func (s *tournamentService) matchPlayers(ctx context.Context, tx *sql.Tx, match *models.Match) (*models.Participant, *models.Participant, error) {
	if match.Player1ID != nil && match.Player2ID != nil {
		player1, err1 := s.participantRepo.FindByID(ctx, tx, *match.Player1ID)
		player2, err2 := s.participantRepo.FindByID(ctx, tx, *match.Player2ID)
		if err1 == nil && err2 == nil {
			return player1, player2, nil
		}
		for _, err := range []error{err1, err2} {
			if err != nil && !errors.Is(err, repositories.ErrParticipantNotFound) {
				return nil, nil, fmt.Errorf("failed to load players of match %d: %w", match.ID, err)
			}
		}
	}

	alias1, alias2, ok := models.ParseMatchup(match.OpponentName)
	if !ok {
		return nil, nil, ErrMatchPlayersUnknown
	}
	player1, err := s.participantRepo.FindByAlias(ctx, tx, match.TournamentID, alias1)
	if err != nil {
		return nil, nil, s.playerLookupError(match, err)
	}
	player2, err := s.participantRepo.FindByAlias(ctx, tx, match.TournamentID, alias2)
	if err != nil {
		return nil, nil, s.playerLookupError(match, err)
	}
	return player1, player2, nil
}

func (s *tournamentService) playerLookupError(match *models.Match, err error) error {
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return ErrMatchPlayersUnknown
	}
	return fmt.Errorf("failed to load players of match %d: %w", match.ID, err)
}

func (s *tournamentService) DeclareChampion(ctx context.Context, tournamentID int, alias string) (*ChampionResult, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, ErrAliasRequired
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	batch := &eventBatch{tournamentID: tournamentID}
	err := withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if _, err := s.loadTournament(ctx, tx, tournamentID); err != nil {
			return err
		}
		if _, err := s.participantRepo.FindByAlias(ctx, tx, tournamentID, alias); err != nil {
			if errors.Is(err, repositories.ErrParticipantNotFound) {
				return ErrParticipantNotFound
			}
			return fmt.Errorf("failed to look up champion %q: %w", alias, err)
		}
		return s.declareChampion(ctx, tx, tournamentID, alias, batch)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, batch)
	return batch.champion, nil
}

// declareChampion finishes the tournament with alias as champion. The
// champion alias is written to both winner_alias and creator_alias.
func (s *tournamentService) declareChampion(ctx context.Context, tx *sql.Tx, tournamentID int, alias string, batch *eventBatch) error {
	tournament, err := s.loadTournament(ctx, tx, tournamentID)
	if err != nil {
		return err
	}
	if tournament.IsFinished() {
		return ErrTournamentFinished
	}

	if err := s.tournamentRepo.MarkFinished(ctx, tx, tournamentID, alias, time.Now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrUpdateFailed
		}
		return fmt.Errorf("failed to finish tournament %d: %w", tournamentID, err)
	}

	batch.champion = &ChampionResult{TournamentID: tournamentID, Champion: alias}
	batch.add(EventTournamentFinished, batch.champion)
	return nil
}

// afterCommit runs the side effects of a committed operation.
func (s *tournamentService) afterCommit(ctx context.Context, batch *eventBatch) {
	batch.publish(s.events)
	if batch.champion == nil {
		return
	}

	metrics.ChampionDeclared()
	s.logger.Info("champion declared",
		slog.Int("tournament_id", batch.tournamentID),
		slog.String("champion", batch.champion.Champion))
	s.archiveResults(ctx, batch.tournamentID)
}

// archiveResults uploads the finished tournament. Failures are logged only.
func (s *tournamentService) archiveResults(ctx context.Context, tournamentID int) {
	if s.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	details, err := s.GetTournamentDetails(ctx, tournamentID)
	if err != nil {
		s.logger.Error("failed to load tournament for archiving", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	result, err := s.archiver.ArchiveResults(ctx, details)
	if err != nil {
		s.logger.Error("failed to archive tournament results", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	s.logger.Info("tournament results archived", slog.Int("tournament_id", tournamentID), slog.String("location", result.Location))
}

func (s *tournamentService) loadMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return match, nil
}
