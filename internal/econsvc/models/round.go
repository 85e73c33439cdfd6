package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Round struct {
	ID          string     `json:"id"`           // UUID primary key
	GameID      string     `json:"game_id"`      // FK to games(id)
	RoundNumber int        `json:"round_number"` // 0-based, unique per game
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"` // settlement guard, set exactly once

	// Aggregate stats, stamped at settlement time.
	TotalInvested     int             `json:"total_invested"`
	AverageInvestment decimal.Decimal `json:"average_investment"`
}

// Settled reports whether the round's move set is closed.
func (r *Round) Settled() bool {
	return r.CompletedAt != nil
}
