package engine

import (
	"fmt"
	"testing"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() models.GameConfig {
	return models.GameConfig{
		GroupSize:      4,
		TokensPerRound: 5,
		KeepValue:      decimal.NewFromFloat(0.20),
		InvestValue:    decimal.NewFromFloat(0.10),
		SocialValue:    decimal.NewFromFloat(0.10),
	}
}

func movesFor(investments []int, tokensPerRound int) []*models.Move {
	moves := make([]*models.Move, len(investments))
	for i, inv := range investments {
		moves[i] = &models.Move{
			ID:             fmt.Sprintf("move-%d", i),
			PlayerID:       fmt.Sprintf("player-%d", i),
			TokensInvested: inv,
			TokensKept:     tokensPerRound - inv,
		}
	}
	return moves
}

func TestValidateMove(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	eng := PublicGoods{}

	for inv := 0; inv <= cfg.TokensPerRound; inv++ {
		assert.NoError(t, eng.ValidateMove(cfg, inv), "investment %d should be valid", inv)
	}
	assert.Error(t, eng.ValidateMove(cfg, -1))
	assert.Error(t, eng.ValidateMove(cfg, cfg.TokensPerRound+1))
}

func TestSettleRoundMixedInvestments(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	moves := movesFor([]int{0, 5, 5, 0}, cfg.TokensPerRound)

	s, err := PublicGoods{}.SettleRound(cfg, moves)
	require.NoError(t, err)

	assert.Equal(t, 10, s.TotalInvested)
	assert.True(t, s.AverageInvestment.Equal(decimal.NewFromFloat(2.5)),
		"average investment = %s", s.AverageInvestment)

	// Keeper: 5×0.20 + 0×0.10 + 10×0.10 = 2.00
	assert.True(t, s.Earnings["move-0"].Equal(decimal.NewFromFloat(2.00)),
		"keeper earnings = %s", s.Earnings["move-0"])
	// Investor: 0×0.20 + 5×0.10 + 10×0.10 = 1.50
	assert.True(t, s.Earnings["move-1"].Equal(decimal.NewFromFloat(1.50)),
		"investor earnings = %s", s.Earnings["move-1"])
}

func TestSettleRoundConservation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cases := [][]int{
		{0, 0, 0, 0},
		{5, 5, 5, 5},
		{1, 2, 3, 4},
		{0, 5, 2, 3},
	}

	for _, investments := range cases {
		moves := movesFor(investments, cfg.TokensPerRound)
		s, err := PublicGoods{}.SettleRound(cfg, moves)
		require.NoError(t, err)

		totalKept, totalInvested := 0, 0
		sum := decimal.Zero
		for _, m := range moves {
			totalKept += m.TokensKept
			totalInvested += m.TokensInvested
			sum = sum.Add(s.Earnings[m.ID])
		}

		// Σ earnings == keepValue×Σ kept + investValue×Σ invested + socialValue×G×totalInvested
		want := cfg.KeepValue.Mul(decimal.NewFromInt(int64(totalKept))).
			Add(cfg.InvestValue.Mul(decimal.NewFromInt(int64(totalInvested)))).
			Add(cfg.SocialValue.Mul(decimal.NewFromInt(int64(cfg.GroupSize * totalInvested))))
		assert.True(t, sum.Equal(want), "investments %v: sum %s want %s", investments, sum, want)
	}
}

func TestSettleRoundRequiresFullGroup(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	_, err := PublicGoods{}.SettleRound(cfg, movesFor([]int{0, 5}, cfg.TokensPerRound))
	assert.Error(t, err)
}

func TestFinalizeRanksAndStats(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	maxRounds := 15

	players := []*models.Player{
		{ID: "a", Position: 0, TotalEarnings: decimal.NewFromFloat(15.00)},
		{ID: "b", Position: 1, TotalEarnings: decimal.NewFromFloat(22.50)},
		{ID: "c", Position: 2, TotalEarnings: decimal.NewFromFloat(18.00)},
		{ID: "d", Position: 3, TotalEarnings: decimal.NewFromFloat(12.75)},
	}

	movesByPlayer := map[string][]*models.Move{}
	for _, p := range players {
		for i := 0; i < maxRounds; i++ {
			movesByPlayer[p.ID] = append(movesByPlayer[p.ID], &models.Move{
				PlayerID:       p.ID,
				TokensInvested: 2,
				TokensKept:     3,
			})
		}
	}

	standings := PublicGoods{}.Finalize(cfg, maxRounds, players, movesByPlayer)
	require.Len(t, standings, 4)

	assert.Equal(t, "b", standings[0].PlayerID)
	assert.Equal(t, "c", standings[1].PlayerID)
	assert.Equal(t, "a", standings[2].PlayerID)
	assert.Equal(t, "d", standings[3].PlayerID)

	seen := map[int]bool{}
	for i, s := range standings {
		assert.Equal(t, i+1, s.PerformanceRank)
		assert.False(t, seen[s.PerformanceRank], "duplicate rank %d", s.PerformanceRank)
		seen[s.PerformanceRank] = true

		assert.Equal(t, 30, s.TotalInvestment)
		assert.True(t, s.AvgInvestmentPerRound.Equal(decimal.NewFromInt(2)))
		// 30 / (15×5) × 100 = 40%
		assert.True(t, s.CooperationRate.Equal(decimal.NewFromInt(40)),
			"cooperation rate = %s", s.CooperationRate)
	}
}

func TestFinalizeTieBreaksOnPosition(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	same := decimal.NewFromFloat(15.00)
	players := []*models.Player{
		{ID: "late", Position: 3, TotalEarnings: same},
		{ID: "early", Position: 0, TotalEarnings: same},
		{ID: "mid", Position: 1, TotalEarnings: same},
		{ID: "other", Position: 2, TotalEarnings: same},
	}

	standings := PublicGoods{}.Finalize(cfg, 15, players, map[string][]*models.Move{})
	require.Len(t, standings, 4)

	assert.Equal(t, []string{"early", "mid", "other", "late"}, []string{
		standings[0].PlayerID, standings[1].PlayerID, standings[2].PlayerID, standings[3].PlayerID,
	})
}

func TestFinalizeCooperationBounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	players := []*models.Player{
		{ID: "none", Position: 0},
		{ID: "all", Position: 1},
	}
	movesByPlayer := map[string][]*models.Move{}
	for i := 0; i < 15; i++ {
		movesByPlayer["none"] = append(movesByPlayer["none"], &models.Move{TokensInvested: 0, TokensKept: 5})
		movesByPlayer["all"] = append(movesByPlayer["all"], &models.Move{TokensInvested: 5, TokensKept: 0})
	}

	standings := PublicGoods{}.Finalize(cfg, 15, players, movesByPlayer)
	for _, s := range standings {
		assert.True(t, s.CooperationRate.GreaterThanOrEqual(decimal.Zero))
		assert.True(t, s.CooperationRate.LessThanOrEqual(decimal.NewFromInt(100)))
	}
	assert.True(t, standings[0].CooperationRate.Equal(decimal.NewFromInt(100)) ||
		standings[1].CooperationRate.Equal(decimal.NewFromInt(100)))
}

func TestForType(t *testing.T) {
	t.Parallel()

	eng, err := ForType(models.GameTypePublicGoods)
	require.NoError(t, err)
	assert.Equal(t, models.GameTypePublicGoods, eng.Type())

	_, err = ForType("dictator")
	assert.Error(t, err)
}
