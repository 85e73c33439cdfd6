package store

import (
	"context"
	"fmt"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResultStore struct {
	db *pgxpool.Pool
}

func NewResultStore(db *pgxpool.Pool) *ResultStore {
	return &ResultStore{db: db}
}

// CreateResults writes the whole final summary in one transaction so a game
// is never half-finalized.
func (s *ResultStore) CreateResults(ctx context.Context, results []*models.Result) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO results (id, game_id, player_id, final_earnings, total_investment,
			avg_investment_per_round, cooperation_rate, performance_rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, r := range results {
		_, err := tx.Exec(ctx, query,
			r.ID, r.GameID, r.PlayerID, r.FinalEarnings, r.TotalInvestment,
			r.AvgInvestmentPerRound, r.CooperationRate, r.PerformanceRank, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create result: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *ResultStore) ListResultsByGameID(ctx context.Context, gameID string) ([]*models.Result, error) {
	query := `
		SELECT id, game_id, player_id, final_earnings, total_investment,
			avg_investment_per_round, cooperation_rate, performance_rank, created_at
		FROM results
		WHERE game_id = $1
		ORDER BY performance_rank
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*models.Result
	for rows.Next() {
		r := &models.Result{}
		err := rows.Scan(
			&r.ID,
			&r.GameID,
			&r.PlayerID,
			&r.FinalEarnings,
			&r.TotalInvestment,
			&r.AvgInvestmentPerRound,
			&r.CooperationRate,
			&r.PerformanceRank,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}
