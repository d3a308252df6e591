package models

import "time"

// TournamentStatus представляет статусы турнира. Переходы только вперёд:
// pending -> started -> finished.
type TournamentStatus string

const (
	TournamentStatusPending  TournamentStatus = "pending"
	TournamentStatusStarted  TournamentStatus = "started"
	TournamentStatusFinished TournamentStatus = "finished"
)

// Tournament представляет турнир.
type Tournament struct {
	ID           int              `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	CreatedBy    int              `json:"created_by" db:"created_by"`
	CreatorAlias string           `json:"creator_alias" db:"creator_alias"` // holds the champion's alias once finished
	MinPlayers   int              `json:"min_players" db:"min_players"`
	MaxPlayers   int              `json:"max_players" db:"max_players"`
	Status       TournamentStatus `json:"status" db:"status"`
	WinnerAlias  *string          `json:"winner_alias,omitempty" db:"winner_alias"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	FinishedAt   *time.Time       `json:"finished_at,omitempty" db:"finished_at"`

	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}

func (t *Tournament) IsPending() bool  { return t.Status == TournamentStatusPending }
func (t *Tournament) IsFinished() bool { return t.Status == TournamentStatusFinished }
