package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type PlayerStore struct {
	db *pgxpool.Pool
}

func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

func (s *PlayerStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	query := `
		INSERT INTO players (id, game_id, name, decision_source, position, total_earnings, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		p.ID, p.GameID, p.Name, p.DecisionSource, p.Position, p.TotalEarnings, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (s *PlayerStore) GetPlayerByID(ctx context.Context, id string) (*models.Player, error) {
	query := `
		SELECT id, game_id, name, decision_source, position, total_earnings, joined_at
		FROM players
		WHERE id = $1
	`

	p := &models.Player{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.GameID,
		&p.Name,
		&p.DecisionSource,
		&p.Position,
		&p.TotalEarnings,
		&p.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // player not found
		}
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	return p, nil
}

func (s *PlayerStore) ListPlayersByGameID(ctx context.Context, gameID string) ([]*models.Player, error) {
	query := `
		SELECT id, game_id, name, decision_source, position, total_earnings, joined_at
		FROM players
		WHERE game_id = $1
		ORDER BY position
	`

	rows, err := s.db.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*models.Player
	for rows.Next() {
		p := &models.Player{}
		err := rows.Scan(
			&p.ID,
			&p.GameID,
			&p.Name,
			&p.DecisionSource,
			&p.Position,
			&p.TotalEarnings,
			&p.JoinedAt,
		)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}

	return players, rows.Err()
}

func (s *PlayerStore) AddEarnings(ctx context.Context, playerID string, amount decimal.Decimal) error {
	query := `
		UPDATE players
		SET total_earnings = total_earnings + $2
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, playerID, amount)
	if err != nil {
		return fmt.Errorf("failed to add earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("player %s not found", playerID)
	}
	return nil
}
