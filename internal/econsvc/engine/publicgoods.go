package engine

import (
	"fmt"
	"sort"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
)

// PublicGoods implements the linear public goods game: each token kept pays
// KeepValue to its owner, each token invested pays InvestValue to its owner
// plus SocialValue to every member of the group, the investor included.
type PublicGoods struct{}

func (PublicGoods) Type() string { return models.GameTypePublicGoods }

func (PublicGoods) ValidateMove(cfg models.GameConfig, tokensInvested int) error {
	if tokensInvested < 0 || tokensInvested > cfg.TokensPerRound {
		return fmt.Errorf("invalid investment: must be between 0 and %d", cfg.TokensPerRound)
	}
	return nil
}

func (PublicGoods) SettleRound(cfg models.GameConfig, moves []*models.Move) (*Settlement, error) {
	if len(moves) != cfg.GroupSize {
		return nil, fmt.Errorf("settlement requires %d moves, got %d", cfg.GroupSize, len(moves))
	}

	totalInvested := 0
	for _, m := range moves {
		totalInvested += m.TokensInvested
	}
	socialReturn := decimal.NewFromInt(int64(totalInvested)).Mul(cfg.SocialValue)

	earnings := make(map[string]decimal.Decimal, len(moves))
	for _, m := range moves {
		kept := decimal.NewFromInt(int64(m.TokensKept)).Mul(cfg.KeepValue)
		invested := decimal.NewFromInt(int64(m.TokensInvested)).Mul(cfg.InvestValue)
		earnings[m.ID] = kept.Add(invested).Add(socialReturn)
	}

	return &Settlement{
		TotalInvested:     totalInvested,
		AverageInvestment: decimal.NewFromInt(int64(totalInvested)).Div(decimal.NewFromInt(int64(cfg.GroupSize))),
		Earnings:          earnings,
	}, nil
}

func (PublicGoods) Finalize(cfg models.GameConfig, maxRounds int, players []*models.Player, movesByPlayer map[string][]*models.Move) []Standing {
	standings := make([]Standing, 0, len(players))
	maxPossible := decimal.NewFromInt(int64(maxRounds * cfg.TokensPerRound))

	for _, p := range players {
		moves := movesByPlayer[p.ID]
		totalInvestment := 0
		for _, m := range moves {
			totalInvestment += m.TokensInvested
		}

		avg := decimal.Zero
		if len(moves) > 0 {
			avg = decimal.NewFromInt(int64(totalInvestment)).Div(decimal.NewFromInt(int64(len(moves))))
		}
		cooperation := decimal.Zero
		if maxPossible.IsPositive() {
			cooperation = decimal.NewFromInt(int64(totalInvestment)).Div(maxPossible).Mul(decimal.NewFromInt(100))
		}

		standings = append(standings, Standing{
			PlayerID:              p.ID,
			FinalEarnings:         p.TotalEarnings,
			TotalInvestment:       totalInvestment,
			AvgInvestmentPerRound: avg,
			CooperationRate:       cooperation,
		})
	}

	// Rank by earnings, highest first. Ties break on seat position so the
	// ordering is deterministic rather than an accident of sort stability.
	positions := make(map[string]int, len(players))
	for _, p := range players {
		positions[p.ID] = p.Position
	}
	sort.Slice(standings, func(i, j int) bool {
		if !standings[i].FinalEarnings.Equal(standings[j].FinalEarnings) {
			return standings[i].FinalEarnings.GreaterThan(standings[j].FinalEarnings)
		}
		return positions[standings[i].PlayerID] < positions[standings[j].PlayerID]
	})
	for i := range standings {
		standings[i].PerformanceRank = i + 1
	}

	return standings
}
