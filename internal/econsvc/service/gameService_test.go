package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/econlab/econ-services/internal/econsvc/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*GameService, *memory.Store) {
	st := memory.NewStore()
	return NewGameService(st, st, st, st, st, nil, nil), st
}

func createActiveGame(t *testing.T, svc *GameService) (*models.Game, []*models.Player) {
	t.Helper()
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 15, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusWaiting, game.Status)

	players := make([]*models.Player, 0, game.Config.GroupSize)
	for i := 0; i < game.Config.GroupSize; i++ {
		p, err := svc.AddPlayer(ctx, game.ID, fmt.Sprintf("Agent %d", i+1), models.DecisionSourceRandom)
		require.NoError(t, err)
		assert.Equal(t, i, p.Position)
		players = append(players, p)
	}

	status, err := svc.GameStatus(ctx, game.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, status.Game.Status)
	require.NotNil(t, status.Game.StartedAt)
	return status.Game, players
}

func TestCreateGameValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateGame(ctx, "dictator", 15, nil)
	assert.True(t, IsValidation(err))

	_, err = svc.CreateGame(ctx, models.GameTypePublicGoods, 0, nil)
	assert.True(t, IsValidation(err))

	bad := models.DefaultPublicGoodsConfig()
	bad.KeepValue = decimal.NewFromFloat(-0.10)
	_, err = svc.CreateGame(ctx, models.GameTypePublicGoods, 15, &bad)
	assert.True(t, IsValidation(err))
}

func TestAddPlayerFillsSeatsAndActivates(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	game, _ := createActiveGame(t, svc)

	// A fifth seat does not exist.
	_, err := svc.AddPlayer(context.Background(), game.ID, "Latecomer", models.DecisionSourceRandom)
	assert.True(t, IsValidation(err))
}

func TestAddPlayerUnknownGame(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	_, err := svc.AddPlayer(context.Background(), "nope", "Agent", models.DecisionSourceRandom)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestSubmitMoveRejections(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	game, players := createActiveGame(t, svc)

	// Unknown game and player.
	_, err := svc.SubmitMove(ctx, "nope", players[0].ID, 0, 2)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = svc.SubmitMove(ctx, game.ID, "nope", 0, 2)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	// Player from another game.
	_, otherPlayers := createActiveGame(t, svc)
	_, err = svc.SubmitMove(ctx, game.ID, otherPlayers[0].ID, 0, 2)
	assert.True(t, IsValidation(err))

	// Round not open yet.
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 1, 2)
	assert.True(t, IsValidation(err))

	// Out of range.
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, game.Config.TokensPerRound+1)
	assert.True(t, IsValidation(err))
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, -1)
	assert.True(t, IsValidation(err))

	// Duplicate.
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, 2)
	require.NoError(t, err)
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, 3)
	assert.True(t, IsValidation(err))
}

func TestSubmitMoveRejectedBeforeGameStarts(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	game, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 15, nil)
	require.NoError(t, err)
	p, err := svc.AddPlayer(ctx, game.ID, "Agent 1", models.DecisionSourceRandom)
	require.NoError(t, err)

	_, err = svc.SubmitMove(ctx, game.ID, p.ID, 0, 2)
	assert.True(t, IsValidation(err))
}

func TestRoundSettlesWhenLastSeatMoves(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	game, players := createActiveGame(t, svc)

	investments := []int{0, 5, 5, 0}
	for i := 0; i < 3; i++ {
		out, err := svc.SubmitMove(ctx, game.ID, players[i].ID, 0, investments[i])
		require.NoError(t, err)
		assert.Equal(t, StatusMoveAccepted, out.Status)
		assert.Equal(t, 3-i, out.WaitingFor)
	}

	out, err := svc.SubmitMove(ctx, game.ID, players[3].ID, 0, investments[3])
	require.NoError(t, err)
	assert.Equal(t, StatusRoundComplete, out.Status)
	assert.Equal(t, 1, out.NextRound)
	require.NotNil(t, out.Round)
	assert.Equal(t, 10, out.Round.TotalInvested)

	// Earnings per the payoff rule: keeper 2.00, investor 1.50.
	byPlayer := map[string]decimal.Decimal{}
	for _, m := range out.Round.Moves {
		require.True(t, m.Earnings.Valid)
		byPlayer[m.PlayerID] = m.Earnings.Decimal
	}
	assert.True(t, byPlayer[players[0].ID].Equal(decimal.NewFromFloat(2.00)))
	assert.True(t, byPlayer[players[1].ID].Equal(decimal.NewFromFloat(1.50)))

	// Settled round no longer accepts moves, even from a seat that never moved there.
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, 1)
	assert.True(t, IsValidation(err))

	// Player earnings accumulated.
	status, err := svc.GameStatus(ctx, game.ID)
	require.NoError(t, err)
	for _, p := range status.Players {
		assert.True(t, p.TotalEarnings.IsPositive())
	}
	require.Len(t, status.Rounds, 1)
	assert.True(t, status.Rounds[0].Completed)
}

func TestFullGameFinalizesOnce(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	game, players := createActiveGame(t, svc)

	maxRounds := game.MaxRounds
	for round := 0; round < maxRounds; round++ {
		for i, p := range players {
			out, err := svc.SubmitMove(ctx, game.ID, p.ID, round, 0)
			require.NoError(t, err)
			if i == len(players)-1 {
				if round == maxRounds-1 {
					assert.Equal(t, StatusGameComplete, out.Status)
				} else {
					assert.Equal(t, StatusRoundComplete, out.Status)
					assert.Equal(t, round+1, out.NextRound)
				}
			} else {
				assert.Equal(t, StatusMoveAccepted, out.Status)
			}
		}
	}

	// Everyone kept everything: 15 rounds × 5 tokens × $0.20 = $15.00 each.
	results, err := svc.FinalResults(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, results, 4)

	ranks := map[int]bool{}
	for _, r := range results {
		assert.True(t, r.FinalEarnings.Equal(decimal.NewFromFloat(15.00)), "earnings = %s", r.FinalEarnings)
		assert.True(t, r.CooperationRate.Equal(decimal.Zero))
		assert.Equal(t, 0, r.TotalInvestment)
		ranks[r.PerformanceRank] = true
	}
	for want := 1; want <= 4; want++ {
		assert.True(t, ranks[want], "missing rank %d", want)
	}
	// Tied earnings rank by seat position.
	for i, r := range results {
		assert.Equal(t, i, r.Position)
	}

	// Completed game accepts nothing further.
	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, maxRounds-1, 1)
	assert.True(t, IsValidation(err))

	history, err := svc.History(ctx, game.ID)
	require.NoError(t, err)
	require.Len(t, history, maxRounds)
	for i, r := range history {
		assert.Equal(t, i, r.RoundNumber)
		assert.Len(t, r.Moves, 4)
	}
}

func TestConcurrentLastSeatsSettleOnce(t *testing.T) {
	t.Parallel()

	// The race from the concurrency contract: the last two outstanding
	// seats submit at the same time; exactly one settlement must happen.
	for iter := 0; iter < 20; iter++ {
		svc, _ := newTestService()
		ctx := context.Background()
		game, players := createActiveGame(t, svc)

		for i := 0; i < 2; i++ {
			_, err := svc.SubmitMove(ctx, game.ID, players[i].ID, 0, 2)
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		outcomes := make([]*MoveOutcome, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i], errs[i] = svc.SubmitMove(ctx, game.ID, players[2+i].ID, 0, 2)
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		settled := 0
		for _, out := range outcomes {
			if out.Status == StatusRoundComplete {
				settled++
			}
		}
		assert.Equal(t, 1, settled, "exactly one submission settles the round")

		status, err := svc.GameStatus(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Game.CurrentRound)
	}
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	game, players := createActiveGame(t, svc)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, 1)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			assert.True(t, IsValidation(err), "unexpected error kind: %v", err)
		}
	}
	assert.Equal(t, 1, accepted, "exactly one duplicate submission may land")
}

func TestCancelGame(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()
	game, players := createActiveGame(t, svc)

	cancelled, err := svc.CancelGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = svc.SubmitMove(ctx, game.ID, players[0].ID, 0, 2)
	assert.True(t, IsValidation(err))

	// Cancelling again is a no-op, cancelling a completed game is not allowed.
	again, err := svc.CancelGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, again.Status)
}

func TestFinalResultsRequireCompletion(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	game, _ := createActiveGame(t, svc)

	_, err := svc.FinalResults(context.Background(), game.ID)
	assert.True(t, IsValidation(err))
}

func TestSummaryStats(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateGame(ctx, models.GameTypePublicGoods, 15, nil)
	require.NoError(t, err)
	createActiveGame(t, svc)

	stats, err := svc.SummaryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[models.StatusWaiting])
	assert.Equal(t, 1, stats[models.StatusActive])
	assert.Equal(t, 2, stats["total"])
}
