package brackets

import (
	"context"
	"errors"

	"github.com/Dosada05/pong-tournament/models"
)

var (
	ErrNotEnoughPlayers = errors.New("not enough players to generate a bracket (minimum 2)")
	ErrOddPlayerCount   = errors.New("cannot pair an odd number of players")
)

type GenerateBracketParams struct {
	Round   models.MatchRound
	Players []*models.Participant
	// Shuffle reorders Players before pairing. When false the given order is
	// kept, which lets a caller shuffle a larger pool once and split it.
	Shuffle bool
}

// Pairing is one match-to-be: Player1 and Player2 meet in Round.
type Pairing struct {
	Round        models.MatchRound
	OrderInRound int
	Player1      *models.Participant
	Player2      *models.Participant
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*Pairing, error)

	GetName() string
}
