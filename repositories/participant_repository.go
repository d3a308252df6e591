package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/pong-tournament/models"
)

var (
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: alias already registered for this tournament")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	FindByAlias(ctx context.Context, exec SQLExecutor, tournamentID int, alias string) (*models.Participant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus) ([]*models.Participant, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus) (int, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type sqlParticipantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) ParticipantRepository {
	return &sqlParticipantRepository{db: db}
}

func (r *sqlParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = models.ParticipantStatusJoined
	}
	query := `
		INSERT INTO tournament_players (tournament_id, tournament_alias, status, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query,
		p.TournamentID,
		p.TournamentAlias,
		p.Status,
		p.JoinedAt,
	).Scan(&p.ID)

	if err != nil {
		switch {
		case isUniqueViolation(err, "tournament_players_tournament_id_alias_key"):
			return ErrParticipantConflict
		case isForeignKeyViolation(err):
			return ErrParticipantTournamentInvalid
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *sqlParticipantRepository) scanParticipant(row rowScanner, p *models.Participant) error {
	return row.Scan(
		&p.ID,
		&p.TournamentID,
		&p.TournamentAlias,
		&p.Status,
		&p.JoinedAt,
	)
}

func (r *sqlParticipantRepository) findOne(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) (*models.Participant, error) {
	p := &models.Participant{}
	err := r.scanParticipant(pickExecutor(r.db, exec).QueryRowContext(ctx, query, args...), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant: %w", err)
	}
	return p, nil
}

func (r *sqlParticipantRepository) FindByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	query := `SELECT id, tournament_id, tournament_alias, status, joined_at FROM tournament_players WHERE id = $1`
	return r.findOne(ctx, exec, query, id)
}

// FindByAlias matches the alias exactly; "Alice" and "alice" are different players.
func (r *sqlParticipantRepository) FindByAlias(ctx context.Context, exec SQLExecutor, tournamentID int, alias string) (*models.Participant, error) {
	query := `SELECT id, tournament_id, tournament_alias, status, joined_at FROM tournament_players WHERE tournament_id = $1 AND tournament_alias = $2`
	return r.findOne(ctx, exec, query, tournamentID, alias)
}

func (r *sqlParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus) ([]*models.Participant, error) {
	var queryBuilder strings.Builder
	args := []interface{}{tournamentID}

	queryBuilder.WriteString(`
		SELECT id, tournament_id, tournament_alias, status, joined_at
		FROM tournament_players
		WHERE tournament_id = $1`)

	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $2")
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY id ASC")

	rows, err := pickExecutor(r.db, exec).QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by tournament: %w", err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if err := r.scanParticipant(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		participants = append(participants, &p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participant rows: %w", err)
	}
	return participants, nil
}

func (r *sqlParticipantRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus) (int, error) {
	query := `SELECT COUNT(*) FROM tournament_players WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		query += " AND status = $2"
		args = append(args, *statusFilter)
	}

	var count int
	if err := pickExecutor(r.db, exec).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *sqlParticipantRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error {
	query := `UPDATE tournament_players SET status = $1 WHERE id = $2`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant status: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *sqlParticipantRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	query := `DELETE FROM tournament_players WHERE id = $1`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
