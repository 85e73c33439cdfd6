package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

func (s *RoundStore) CreateRound(ctx context.Context, r *models.Round) error {
	query := `
		INSERT INTO rounds (id, game_id, round_number, started_at, total_invested, average_investment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		r.ID, r.GameID, r.RoundNumber, r.StartedAt, r.TotalInvested, r.AverageInvestment)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "unique_game_round" {
			return models.ErrRoundExists
		}
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

func (s *RoundStore) GetRound(ctx context.Context, gameID string, roundNumber int) (*models.Round, error) {
	query := `
		SELECT id, game_id, round_number, started_at, completed_at, total_invested, average_investment
		FROM rounds
		WHERE game_id = $1 AND round_number = $2
	`

	r := &models.Round{}
	err := s.db.QueryRow(ctx, query, gameID, roundNumber).Scan(
		&r.ID,
		&r.GameID,
		&r.RoundNumber,
		&r.StartedAt,
		&r.CompletedAt,
		&r.TotalInvested,
		&r.AverageInvestment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // round not created yet
		}
		return nil, fmt.Errorf("failed to get round: %w", err)
	}

	return r, nil
}

func (s *RoundStore) ListRoundsByGameID(ctx context.Context, gameID string) ([]*models.Round, error) {
	query := `
		SELECT id, game_id, round_number, started_at, completed_at, total_invested, average_investment
		FROM rounds
		WHERE game_id = $1
		ORDER BY round_number
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		r := &models.Round{}
		err := rows.Scan(
			&r.ID,
			&r.GameID,
			&r.RoundNumber,
			&r.StartedAt,
			&r.CompletedAt,
			&r.TotalInvested,
			&r.AverageInvestment,
		)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}

	return rounds, rows.Err()
}

// CompleteRound is the settlement guard: it stamps the round iff it is
// still open, so exactly one caller ever observes success.
func (s *RoundStore) CompleteRound(ctx context.Context, roundID string, totalInvested int, avgInvestment decimal.Decimal, completedAt time.Time) (bool, error) {
	query := `
		UPDATE rounds
		SET completed_at = $2, total_invested = $3, average_investment = $4
		WHERE id = $1 AND completed_at IS NULL
	`
	tag, err := s.db.Exec(ctx, query, roundID, completedAt, totalInvested, avgInvestment)
	if err != nil {
		return false, fmt.Errorf("failed to complete round: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
