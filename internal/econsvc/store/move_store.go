package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type MoveStore struct {
	db *pgxpool.Pool
}

func NewMoveStore(db *pgxpool.Pool) *MoveStore {
	return &MoveStore{db: db}
}

// CreateMove inserts a move. The unique_round_player constraint backs the
// at-most-one-move-per-seat invariant across processes.
func (s *MoveStore) CreateMove(ctx context.Context, m *models.Move) error {
	query := `
		INSERT INTO moves (id, round_id, player_id, tokens_invested, tokens_kept, earnings, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		m.ID, m.RoundID, m.PlayerID, m.TokensInvested, m.TokensKept, m.Earnings, m.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "unique_round_player" {
			return models.ErrDuplicateMove
		}
		return fmt.Errorf("failed to create move: %w", err)
	}
	return nil
}

func (s *MoveStore) ListMovesByRoundID(ctx context.Context, roundID string) ([]*models.Move, error) {
	query := `
		SELECT id, round_id, player_id, tokens_invested, tokens_kept, earnings, submitted_at
		FROM moves
		WHERE round_id = $1
		ORDER BY submitted_at
	`

	rows, err := s.db.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list moves: %w", err)
	}
	defer rows.Close()

	var moves []*models.Move
	for rows.Next() {
		m := &models.Move{}
		err := rows.Scan(
			&m.ID,
			&m.RoundID,
			&m.PlayerID,
			&m.TokensInvested,
			&m.TokensKept,
			&m.Earnings,
			&m.SubmittedAt,
		)
		if err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}

	return moves, rows.Err()
}

func (s *MoveStore) SetEarnings(ctx context.Context, moveID string, earnings decimal.Decimal) error {
	query := `
		UPDATE moves
		SET earnings = $2
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, moveID, earnings)
	if err != nil {
		return fmt.Errorf("failed to set earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("move %s not found", moveID)
	}
	return nil
}
