package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DecisionSourceHuman marks a seat driven by an interactive caller.
// Any other value names an automated source: 'random' or a model identifier.
const (
	DecisionSourceHuman  = "human"
	DecisionSourceRandom = "random"
)

type Player struct {
	ID             string          `json:"id"`              // UUID primary key
	GameID         string          `json:"game_id"`         // FK to games(id)
	Name           string          `json:"name"`
	DecisionSource string          `json:"decision_source"` // 'human', 'random' or model name
	Position       int             `json:"position"`        // 0-based seat, stable for the game
	TotalEarnings  decimal.Decimal `json:"total_earnings"`  // accumulates as rounds settle
	JoinedAt       time.Time       `json:"joined_at"`
}

// Automated reports whether the seat is decided by a decision provider
// rather than an interactive caller.
func (p *Player) Automated() bool {
	return p.DecisionSource != DecisionSourceHuman
}
