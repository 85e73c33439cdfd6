package service

import (
	"context"
	"sync"
	"testing"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/econlab/econ-services/internal/econsvc/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider invests a fixed amount for every decision and records
// the history it was shown.
type scriptedProvider struct {
	tokens int

	mu        sync.Mutex
	decisions int
	lastSeen  []comm.RoundSummary
}

func (p *scriptedProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.decisions++
	p.lastSeen = history
	p.mu.Unlock()
	return p.tokens, nil
}

func newAutomatedGame(t *testing.T, decider *scriptedProvider) (*GameService, *models.Game) {
	t.Helper()
	st := memory.NewStore()
	svc := NewGameService(st, st, st, st, st, decider, nil)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 3, nil)
	require.NoError(t, err)
	for i := 0; i < game.Config.GroupSize; i++ {
		_, err := svc.AddPlayer(ctx, game.ID, "Bot", models.DecisionSourceRandom)
		require.NoError(t, err)
	}
	return svc, game
}

func TestRunAutomatedRoundSettles(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 3}
	svc, game := newAutomatedGame(t, decider)

	out, err := svc.RunAutomatedRound(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRoundComplete, out.Status)
	assert.Equal(t, 1, out.NextRound)
	require.NotNil(t, out.Round)
	assert.Equal(t, 12, out.Round.TotalInvested)
	assert.Equal(t, 4, decider.decisions)
}

func TestRunAutomatedRoundOnlyFillsMissingSeats(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 0}
	svc, game := newAutomatedGame(t, decider)
	ctx := context.Background()

	status, err := svc.GameStatus(ctx, game.ID)
	require.NoError(t, err)
	// Two seats move up front; the runner covers the remaining two.
	for _, p := range status.Players[:2] {
		_, err := svc.SubmitMove(ctx, game.ID, p.ID, 0, 1)
		require.NoError(t, err)
	}

	out, err := svc.RunAutomatedRound(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRoundComplete, out.Status)
	assert.Equal(t, 2, decider.decisions)
	assert.Equal(t, 2, out.Round.TotalInvested)
}

func TestRunAutomatedRoundNothingPending(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 0}
	st := memory.NewStore()
	svc := NewGameService(st, st, st, st, st, decider, nil)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 3, nil)
	require.NoError(t, err)
	for i := 0; i < game.Config.GroupSize; i++ {
		_, err := svc.AddPlayer(ctx, game.ID, "Human", models.DecisionSourceHuman)
		require.NoError(t, err)
	}

	_, err = svc.RunAutomatedRound(ctx, game.ID)
	assert.True(t, IsValidation(err))
}

func TestRunFullGame(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 5}
	svc, game := newAutomatedGame(t, decider)

	run, err := svc.RunFullGame(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, run.GameID)
	assert.Len(t, run.GameHistory, 3)
	require.Len(t, run.FinalResults, 4)

	// Full investment every round: 3 rounds × 20 tokens pooled × $0.10 each
	// way. Each player nets 3 × (0.50 + 2.00) = $7.50.
	for _, r := range run.FinalResults {
		assert.True(t, r.FinalEarnings.Equal(decimal.NewFromFloat(7.50)), "earnings = %s", r.FinalEarnings)
		assert.True(t, r.CooperationRate.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, 15, r.TotalInvestment)
	}

	status, err := svc.GameStatus(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Game.Status)

	// The provider saw the growing history: rounds 2 and 3 had prior context.
	assert.Len(t, decider.lastSeen, 2)
}

func TestRunFullGameRejectsInteractivePlayers(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 1}
	st := memory.NewStore()
	svc := NewGameService(st, st, st, st, st, decider, nil)
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 3, nil)
	require.NoError(t, err)
	_, err = svc.AddPlayer(ctx, game.ID, "Human", models.DecisionSourceHuman)
	require.NoError(t, err)
	for i := 1; i < game.Config.GroupSize; i++ {
		_, err := svc.AddPlayer(ctx, game.ID, "Bot", models.DecisionSourceRandom)
		require.NoError(t, err)
	}

	_, err = svc.RunFullGame(ctx, game.ID)
	assert.True(t, IsValidation(err))
}

func TestRunFullGameCancelledContext(t *testing.T) {
	t.Parallel()

	decider := &scriptedProvider{tokens: 1}
	svc, game := newAutomatedGame(t, decider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.RunFullGame(ctx, game.ID)
	assert.ErrorIs(t, err, context.Canceled)
}
