// Package engine holds the per-game-type rules: move validation, round
// settlement and final ranking. Engines are pure computations over the
// domain models; persistence and serialization live with the caller.
package engine

import (
	"fmt"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
)

// Settlement is the outcome of settling one completed round.
type Settlement struct {
	TotalInvested     int
	AverageInvestment decimal.Decimal
	Earnings          map[string]decimal.Decimal // keyed by move ID
}

// Standing is one player's final line, produced at finalization.
type Standing struct {
	PlayerID              string
	FinalEarnings         decimal.Decimal
	TotalInvestment       int
	AvgInvestmentPerRound decimal.Decimal
	CooperationRate       decimal.Decimal
	PerformanceRank       int
}

// Engine is the closed operation set every game type implements.
type Engine interface {
	Type() string

	// ValidateMove checks a proposed decision against the game rules.
	// It is a pure bounds/shape check; referential checks are the caller's.
	ValidateMove(cfg models.GameConfig, tokensInvested int) error

	// SettleRound computes earnings for a completed round. The caller
	// guarantees exactly cfg.GroupSize moves and at-most-once invocation.
	SettleRound(cfg models.GameConfig, moves []*models.Move) (*Settlement, error)

	// Finalize ranks players and computes their final statistics once the
	// last round has settled. movesByPlayer holds every settled move of the
	// game, keyed by player ID.
	Finalize(cfg models.GameConfig, maxRounds int, players []*models.Player, movesByPlayer map[string][]*models.Move) []Standing
}

// ForType resolves a game type to its engine. The set of game types is
// closed; adding one means adding a case here.
func ForType(gameType string) (Engine, error) {
	switch gameType {
	case models.GameTypePublicGoods:
		return PublicGoods{}, nil
	default:
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
}
