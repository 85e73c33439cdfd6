// Package agent supplies decisions for non-interactive players: how many
// tokens to invest given the game state so far. Providers never mutate game
// state; the service threads their answers through the normal move path.
package agent

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
)

// Provider produces an investment decision for one player and round.
type Provider interface {
	Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error)
}

// RandomProvider draws a uniform investment over [0, tokensPerRound].
// It is the scripted baseline and the fallback for every other provider.
type RandomProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomProvider creates a provider around the given source; a nil rng
// gets a time-seeded one.
func NewRandomProvider(rng *rand.Rand) *RandomProvider {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomProvider{rng: rng}
}

func (p *RandomProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(game.Config.TokensPerRound + 1), nil
}
