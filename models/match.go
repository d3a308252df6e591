package models

import (
	"strings"
	"time"
)

// MatchResult is stored in game_history.result. Everything except pending is terminal.
type MatchResult string

const (
	MatchResultPending           MatchResult = "pending"
	MatchResultFinished          MatchResult = "FINISHED"
	MatchResultWin               MatchResult = "WIN"
	MatchResultLoss              MatchResult = "LOSS"
	MatchResultDraw              MatchResult = "DRAW"
	MatchResultDidNotParticipate MatchResult = "DID_NOT_PARTICIPATE"
)

type MatchRound string

const (
	RoundSemifinal MatchRound = "semifinal"
	RoundFinal     MatchRound = "final"
)

// Match is the tournament subset of a game_history row.
//
// UserID is set only when the tournament creator played this pairing while
// logged in; OpponentID is always nil because guests have no account.
// Player1ID/Player2ID reference tournament_players; OpponentName keeps the
// "A vs B" display string.
type Match struct {
	ID            int         `json:"id" db:"id"`
	UserID        *int        `json:"user_id" db:"user_id"`
	OpponentID    *int        `json:"opponent_id" db:"opponent_id"`
	UserScore     int         `json:"user_score" db:"user_score"`
	OpponentScore int         `json:"opponent_score" db:"opponent_score"`
	Result        MatchResult `json:"result" db:"result"`
	Round         MatchRound  `json:"round" db:"round"`
	TournamentID  int         `json:"tournament_id" db:"tournament_id"`
	Player1ID     *int        `json:"player1_id,omitempty" db:"player1_id"`
	Player2ID     *int        `json:"player2_id,omitempty" db:"player2_id"`
	OpponentName  string      `json:"opponent_name" db:"opponent_name"`
	PlayedAt      *time.Time  `json:"played_at,omitempty" db:"played_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

func (m *Match) IsTerminal() bool {
	return m.Result != MatchResultPending
}

const (
	matchupSeparator = " vs "
	winnerMarker     = " | Winner: "
)

// FormatMatchup builds the opponent_name value for a new pairing.
func FormatMatchup(alias1, alias2 string) string {
	return alias1 + matchupSeparator + alias2
}

// ParseMatchup splits an opponent_name back into the two aliases. A winner
// annotation is ignored. Aliases that themselves contain " vs " cannot be
// recovered; rows with player references never need this.
func ParseMatchup(opponentName string) (alias1, alias2 string, ok bool) {
	if i := strings.Index(opponentName, winnerMarker); i >= 0 {
		opponentName = opponentName[:i]
	}
	parts := strings.Split(opponentName, matchupSeparator)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// AnnotateWinner appends the winner marker to an opponent_name.
func AnnotateWinner(opponentName, winnerAlias string) string {
	return opponentName + winnerMarker + winnerAlias
}
