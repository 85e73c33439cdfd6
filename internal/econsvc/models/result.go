package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result is written once per (game, player) at finalization.
type Result struct {
	ID                    string          `json:"id"`        // UUID primary key
	GameID                string          `json:"game_id"`   // FK to games(id)
	PlayerID              string          `json:"player_id"` // FK to players(id)
	FinalEarnings         decimal.Decimal `json:"final_earnings"`
	TotalInvestment       int             `json:"total_investment"`
	AvgInvestmentPerRound decimal.Decimal `json:"avg_investment_per_round"`
	CooperationRate       decimal.Decimal `json:"cooperation_rate"` // percent, 0..100
	PerformanceRank       int             `json:"performance_rank"` // 1 = highest earnings
	CreatedAt             time.Time       `json:"created_at"`
}
