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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentInvalidOwner = errors.New("invalid creator reference")
)

type ListTournamentsFilter struct {
	Status    *models.TournamentStatus
	CreatedBy *int
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	// MarkFinished records the champion. creator_alias is overwritten with the
	// champion alias alongside winner_alias. Finished tournaments are not touched.
	MarkFinished(ctx context.Context, exec SQLExecutor, id int, championAlias string, finishedAt time.Time) error
}

type sqlTournamentRepository struct {
	db *sql.DB
}

func NewTournamentRepository(db *sql.DB) TournamentRepository {
	return &sqlTournamentRepository{db: db}
}

const tournamentColumns = `id, name, created_by, creator_alias, min_players, max_players, status, winner_alias, created_at, finished_at`

func scanTournament(row rowScanner, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.Name, &t.CreatedBy, &t.CreatorAlias, &t.MinPlayers, &t.MaxPlayers,
		&t.Status, &t.WinnerAlias, &t.CreatedAt, &t.FinishedAt,
	)
}

func (r *sqlTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = models.TournamentStatusPending
	}
	query := `
		INSERT INTO tournaments (name, created_by, creator_alias, min_players, max_players, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query,
		t.Name, t.CreatedBy, t.CreatorAlias, t.MinPlayers, t.MaxPlayers, t.Status, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrTournamentInvalidOwner
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *sqlTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	if err := scanTournament(pickExecutor(r.db, exec).QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *sqlTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.CreatedBy != nil {
		query += fmt.Sprintf(" AND created_by = $%d", argID)
		args = append(args, *filter.CreatedBy)
		argID++
	}

	query += " ORDER BY id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argID)
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if err := scanTournament(rows, &t); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournament rows: %w", err)
	}
	return tournaments, nil
}

func (r *sqlTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *sqlTournamentRepository) MarkFinished(ctx context.Context, exec SQLExecutor, id int, championAlias string, finishedAt time.Time) error {
	query := `
		UPDATE tournaments
		SET status = $1, finished_at = $2, winner_alias = $3, creator_alias = $3
		WHERE id = $4 AND status <> $1`
	result, err := pickExecutor(r.db, exec).ExecContext(ctx, query, models.TournamentStatusFinished, finishedAt, championAlias, id)
	if err != nil {
		return fmt.Errorf("failed to finish tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
