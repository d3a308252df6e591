package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/pong-tournament/models"
)

// KnockoutGenerator pairs consecutive players for a single round:
// (0,1), (2,3) and so on.
type KnockoutGenerator struct {
	shuffler *Shuffler
}

func NewKnockoutGenerator(shuffler *Shuffler) BracketGenerator {
	if shuffler == nil {
		shuffler = NewShuffler(nil)
	}
	return &KnockoutGenerator{shuffler: shuffler}
}

func (g *KnockoutGenerator) GetName() string {
	return "Knockout"
}

func (g *KnockoutGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*Pairing, error) {
	n := len(params.Players)
	if n < 2 {
		return nil, ErrNotEnoughPlayers
	}
	if n%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOddPlayerCount, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	players := make([]*models.Participant, n)
	copy(players, params.Players)
	if params.Shuffle {
		g.shuffler.ShuffleParticipants(players)
	}

	pairings := make([]*Pairing, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		pairings = append(pairings, &Pairing{
			Round:        params.Round,
			OrderInRound: i/2 + 1,
			Player1:      players[i],
			Player2:      players[i+1],
		})
	}
	return pairings, nil
}
