package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Dosada05/pong-tournament/models"
)

const maxAliasLength = 20

// normalizeAlias trims the alias and checks its length in characters.
func normalizeAlias(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", ErrAliasRequired
	}
	if utf8.RuneCountInString(alias) > maxAliasLength {
		return "", ErrAliasTooLong
	}
	return alias, nil
}

// withTx runs fn in a transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, logger *slog.Logger, fn func(tx *sql.Tx) error) (txErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	return fn(tx)
}

// tournamentLocks hands out one mutex per tournament id. Entries are dropped
// once nobody holds or waits for them.
type tournamentLocks struct {
	mu    sync.Mutex
	locks map[int]*tournamentLock
}

type tournamentLock struct {
	mu   sync.Mutex
	refs int
}

func newTournamentLocks() *tournamentLocks {
	return &tournamentLocks{locks: make(map[int]*tournamentLock)}
}

// Lock blocks until the tournament is free and returns the unlock func.
func (l *tournamentLocks) Lock(tournamentID int) func() {
	l.mu.Lock()
	entry, ok := l.locks[tournamentID]
	if !ok {
		entry = &tournamentLock{}
		l.locks[tournamentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, tournamentID)
		}
		l.mu.Unlock()
	}
}

func (l *tournamentLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// --- Представления для ответов ---

type PlayerView struct {
	ParticipantID int                      `json:"participant_id"`
	Alias         string                   `json:"alias"`
	Status        models.ParticipantStatus `json:"status"`
}

type MatchView struct {
	MatchID int               `json:"match_id"`
	Round   models.MatchRound `json:"round"`
	Player1 PlayerView        `json:"player1"`
	Player2 PlayerView        `json:"player2"`
}

func newPlayerView(p *models.Participant) PlayerView {
	return PlayerView{ParticipantID: p.ID, Alias: p.TournamentAlias, Status: p.Status}
}

func participantsToValues(slice []*models.Participant) []models.Participant {
	result := make([]models.Participant, 0, len(slice))
	for _, p := range slice {
		if p != nil {
			result = append(result, *p)
		}
	}
	return result
}

func matchesToValues(slice []*models.Match) []models.Match {
	result := make([]models.Match, 0, len(slice))
	for _, m := range slice {
		if m != nil {
			result = append(result, *m)
		}
	}
	return result
}
