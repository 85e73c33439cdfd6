package agent

import (
	"context"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/archive"
	"github.com/econlab/econ-services/internal/econsvc/models"
	log "github.com/sirupsen/logrus"
)

const DefaultDecisionTimeout = 45 * time.Second

// FallbackProvider wraps a primary provider with a bounded wait and a
// scripted fallback. A failed, malformed or slow primary answer degrades to
// a random decision with a warning; it never aborts a round. Cancellation
// of the parent context abandons the decision instead of falling back.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
	timeout  time.Duration
	archive  *archive.Store
}

func NewFallbackProvider(primary Provider, fallback Provider, timeout time.Duration, arch *archive.Store) *FallbackProvider {
	if fallback == nil {
		fallback = NewRandomProvider(nil)
	}
	if timeout <= 0 {
		timeout = DefaultDecisionTimeout
	}
	return &FallbackProvider{primary: primary, fallback: fallback, timeout: timeout, archive: arch}
}

func (f *FallbackProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	if f.primary == nil {
		return f.fallback.Decide(ctx, game, player, roundNumber, history)
	}

	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type answer struct {
		tokens int
		err    error
	}
	ch := make(chan answer, 1)
	go func() {
		tokens, err := f.primary.Decide(cctx, game, player, roundNumber, history)
		ch <- answer{tokens, err}
	}()

	select {
	case a := <-ch:
		if a.err == nil {
			return a.tokens, nil
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Warnf("decision provider failed for player %s round %d, falling back to random: %v",
			player.ID, roundNumber, a.err)
	case <-cctx.Done():
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		log.Warnf("decision provider timed out for player %s round %d after %s, falling back to random",
			player.ID, roundNumber, f.timeout)
	}

	tokens, err := f.fallback.Decide(ctx, game, player, roundNumber, history)
	if err != nil {
		return 0, err
	}
	f.archive.Save(ctx, archive.Record{
		GameID:      game.ID,
		PlayerID:    player.ID,
		RoundNumber: roundNumber,
		Model:       player.DecisionSource,
		Decision:    tokens,
		FellBack:    true,
	})
	return tokens, nil
}
