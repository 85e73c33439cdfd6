package comm

import (
	"encoding/json"
	"time"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
)

// Topics used on the NATS backbone.
const (
	TopicEvents = "econ.events"
)

// Event types carried on TopicEvents.
const (
	EventGameCreated   = "game-created"
	EventPlayerJoined  = "player-joined"
	EventGameStarted   = "game-started"
	EventMoveAccepted  = "move-accepted"
	EventRoundSettled  = "round-settled"
	EventGameCompleted = "game-completed"
	EventGameCancelled = "game-cancelled"
)

// EventMessage is the envelope for every message published to the backbone.
type EventMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// GameEvent is the payload for game lifecycle events.
type GameEvent struct {
	GameID      string `json:"game_id"`
	GameType    string `json:"game_type"`
	Status      string `json:"status"`
	RoundNumber int    `json:"round_number"`
	PlayerID    string `json:"player_id,omitempty"`
}

// MoveSummary is one player's decision inside a settled round.
type MoveSummary struct {
	PlayerID       string              `json:"player_id"`
	PlayerName     string              `json:"player_name"`
	Position       int                 `json:"position"`
	TokensInvested int                 `json:"tokens_invested"`
	TokensKept     int                 `json:"tokens_kept"`
	Earnings       decimal.NullDecimal `json:"earnings"`
}

// RoundSummary describes one settled round; a slice of these is the game
// history handed to decision providers and returned by the run endpoint.
type RoundSummary struct {
	RoundNumber       int             `json:"round_number"`
	Moves             []MoveSummary   `json:"moves"`
	TotalInvested     int             `json:"total_invested"`
	AverageInvestment decimal.Decimal `json:"average_investment"`
}

// RoundFlag exposes per-round completion for the status endpoint.
type RoundFlag struct {
	RoundNumber int        `json:"round_number"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GameStatus is the query payload consumed by UI and CLI collaborators.
type GameStatus struct {
	Game    *models.Game     `json:"game"`
	Players []*models.Player `json:"players"`
	Rounds  []RoundFlag      `json:"rounds"`
}

// FinalResult joins a Result row with its player for display.
type FinalResult struct {
	PlayerID              string          `json:"player_id"`
	PlayerName            string          `json:"player_name"`
	DecisionSource        string          `json:"decision_source"`
	Position              int             `json:"position"`
	FinalEarnings         decimal.Decimal `json:"final_earnings"`
	TotalInvestment       int             `json:"total_investment"`
	AvgInvestmentPerRound decimal.Decimal `json:"avg_investment_per_round"`
	CooperationRate       decimal.Decimal `json:"cooperation_rate"`
	PerformanceRank       int             `json:"performance_rank"`
}

// GameRun is the full record of an automated end-to-end game.
type GameRun struct {
	GameID       string         `json:"game_id"`
	TotalRounds  int            `json:"total_rounds"`
	GameHistory  []RoundSummary `json:"game_history"`
	FinalResults []FinalResult  `json:"final_results"`
}
