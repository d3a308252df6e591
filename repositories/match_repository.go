package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/pong-tournament/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchNotUpdated        = errors.New("match update affected no rows")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
)

// MatchRepository stores tournament matches as game_history rows.
type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *models.MatchRound) ([]*models.Match, error)
	// RecordResult writes the outcome of a pending match. A match that already
	// holds a terminal result is left untouched and ErrMatchNotUpdated is returned.
	RecordResult(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type sqlMatchRepository struct {
	db *sql.DB
}

func NewMatchRepository(db *sql.DB) MatchRepository {
	return &sqlMatchRepository{db: db}
}

const matchColumns = `id, user_id, opponent_id, user_score, opponent_score, result, round,
	tournament_id, player1_id, player2_id, opponent_name, played_at, created_at`

func scanMatch(row rowScanner, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.UserID, &m.OpponentID, &m.UserScore, &m.OpponentScore, &m.Result, &m.Round,
		&m.TournamentID, &m.Player1ID, &m.Player2ID, &m.OpponentName, &m.PlayedAt, &m.CreatedAt,
	)
}

func (r *sqlMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Result == "" {
		m.Result = models.MatchResultPending
	}
	query := `
		INSERT INTO game_history
			(user_id, opponent_id, user_score, opponent_score, result, round,
			 tournament_id, player1_id, player2_id, opponent_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query,
		m.UserID,
		m.OpponentID,
		m.UserScore,
		m.OpponentScore,
		m.Result,
		m.Round,
		m.TournamentID,
		m.Player1ID,
		m.Player2ID,
		m.OpponentName,
		m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMatchTournamentInvalid
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *sqlMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM game_history WHERE id = $1`

	m := &models.Match{}
	if err := scanMatch(pickExecutor(r.db, exec).QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *sqlMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, round *models.MatchRound) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM game_history WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if round != nil {
		query += " AND round = $2"
		args = append(args, *round)
	}
	query += " ORDER BY id ASC"

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var m models.Match
		if err := scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	return matches, nil
}

func (r *sqlMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	if m.PlayedAt == nil {
		now := time.Now().UTC()
		m.PlayedAt = &now
	}
	query := `
		UPDATE game_history
		SET user_id = $1, user_score = $2, opponent_score = $3, result = $4, played_at = $5, opponent_name = $6
		WHERE id = $7 AND result = $8`

	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query,
		m.UserID, m.UserScore, m.OpponentScore, m.Result, m.PlayedAt, m.OpponentName,
		m.ID, models.MatchResultPending,
	)
	if err != nil {
		return fmt.Errorf("failed to record result for match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotUpdated)
}
