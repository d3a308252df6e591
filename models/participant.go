package models

import "time"

type ParticipantStatus string

const (
	ParticipantStatusJoined ParticipantStatus = "joined"
	ParticipantStatusWinner ParticipantStatus = "winner"
)

// Participant is a row of tournament_players: a per-tournament alias, not an account.
type Participant struct {
	ID              int               `json:"id" db:"id"`
	TournamentID    int               `json:"tournament_id" db:"tournament_id"`
	TournamentAlias string            `json:"tournament_alias" db:"tournament_alias"`
	Status          ParticipantStatus `json:"status" db:"status"`
	JoinedAt        time.Time         `json:"joined_at" db:"joined_at"`
}
