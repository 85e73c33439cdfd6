package service

import (
	"context"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
)

// Store capabilities the orchestrator needs. The Postgres implementations
// live in the store package; tests run against the in-memory ones.

type GameStore interface {
	CreateGame(ctx context.Context, g *models.Game) error
	GetGameByID(ctx context.Context, id string) (*models.Game, error)
	UpdateGame(ctx context.Context, g *models.Game) error
	ListGamesByStatus(ctx context.Context, status string) ([]*models.Game, error)
	CountGamesByStatus(ctx context.Context, status string) (int, error)
}

type PlayerStore interface {
	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayerByID(ctx context.Context, id string) (*models.Player, error)
	ListPlayersByGameID(ctx context.Context, gameID string) ([]*models.Player, error)
	AddEarnings(ctx context.Context, playerID string, amount decimal.Decimal) error
}

type RoundStore interface {
	CreateRound(ctx context.Context, r *models.Round) error
	GetRound(ctx context.Context, gameID string, roundNumber int) (*models.Round, error)
	ListRoundsByGameID(ctx context.Context, gameID string) ([]*models.Round, error)

	// CompleteRound stamps completedAt and the aggregate stats iff the round
	// is still open. It reports false when the round was already settled;
	// this check-and-set is the settlement guard.
	CompleteRound(ctx context.Context, roundID string, totalInvested int, avgInvestment decimal.Decimal, completedAt time.Time) (bool, error)
}

type MoveStore interface {
	// CreateMove inserts a move, returning models.ErrDuplicateMove if one
	// already exists for the (round, player) pair.
	CreateMove(ctx context.Context, m *models.Move) error
	ListMovesByRoundID(ctx context.Context, roundID string) ([]*models.Move, error)
	SetEarnings(ctx context.Context, moveID string, earnings decimal.Decimal) error
}

type ResultStore interface {
	// CreateResults persists the final results of a game in one shot.
	CreateResults(ctx context.Context, results []*models.Result) error
	ListResultsByGameID(ctx context.Context, gameID string) ([]*models.Result, error)
}

// EventPublisher pushes lifecycle events to external observers. A nil
// publisher is valid; the orchestrator works without one.
type EventPublisher interface {
	PublishGameEvent(eventType string, ev comm.GameEvent)
	PublishRoundSettled(gameID string, summary comm.RoundSummary)
}
