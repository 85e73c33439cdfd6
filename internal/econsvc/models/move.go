package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Move records a single player's investment decision for one round.
// At most one move may exist per (round, player) pair.
type Move struct {
	ID             string              `json:"id"`        // UUID primary key
	RoundID        string              `json:"round_id"`  // FK to rounds(id)
	PlayerID       string              `json:"player_id"` // FK to players(id)
	TokensInvested int                 `json:"tokens_invested"`
	TokensKept     int                 `json:"tokens_kept"`
	Earnings       decimal.NullDecimal `json:"earnings"` // null until the round settles
	SubmittedAt    time.Time           `json:"submitted_at"`
}
