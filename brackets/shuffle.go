package brackets

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Dosada05/pong-tournament/models"
)

// Shuffler performs Fisher–Yates shuffles over an injectable random source.
// *rand.Rand is not safe for concurrent use, so access is serialised.
type Shuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewShuffler wraps rng. A nil rng gets a source seeded from the clock.
func NewShuffler(rng *rand.Rand) *Shuffler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Shuffler{rng: rng}
}

// Shuffle permutes n elements in place through swap: for i from n-1 down to
// 1, j is drawn uniformly from [0, i] and elements i and j are exchanged.
func (s *Shuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := n - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		swap(i, j)
	}
}

// ShuffleParticipants shuffles players in place.
func (s *Shuffler) ShuffleParticipants(players []*models.Participant) {
	s.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
}
