package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game statuses. A game never leaves StatusCompleted or StatusCancelled.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const GameTypePublicGoods = "public-goods"

// DefaultMaxRounds is the session length used when a caller does not ask
// for one.
const DefaultMaxRounds = 15

type Game struct {
	ID           string     `json:"id"`            // UUID primary key
	GameType     string     `json:"game_type"`     // e.g. 'public-goods'
	Status       string     `json:"status"`        // 'waiting', 'active', 'completed', 'cancelled'
	CurrentRound int        `json:"current_round"` // 0-based, only ever increments
	MaxRounds    int        `json:"max_rounds"`
	Config       GameConfig `json:"config"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GameConfig is fixed at creation time and never mutated afterwards.
// Monetary rates are per-token dollar amounts.
type GameConfig struct {
	GroupSize      int             `json:"group_size"`
	TokensPerRound int             `json:"tokens_per_round"`
	KeepValue      decimal.Decimal `json:"keep_value"`
	InvestValue    decimal.Decimal `json:"invest_value"`
	SocialValue    decimal.Decimal `json:"social_value"`
}

// DefaultPublicGoodsConfig mirrors the classic 4-player, 15-round session:
// 5 tokens per round, $0.20 kept, $0.10 invested, $0.10 social return.
func DefaultPublicGoodsConfig() GameConfig {
	return GameConfig{
		GroupSize:      4,
		TokensPerRound: 5,
		KeepValue:      decimal.NewFromFloat(0.20),
		InvestValue:    decimal.NewFromFloat(0.10),
		SocialValue:    decimal.NewFromFloat(0.10),
	}
}
