package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

func (s *GameStore) CreateGame(ctx context.Context, g *models.Game) error {
	cfg, err := json.Marshal(g.Config)
	if err != nil {
		return fmt.Errorf("failed to encode game config: %w", err)
	}

	query := `
		INSERT INTO games (id, game_type, status, current_round, max_rounds, config, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.Exec(ctx, query,
		g.ID, g.GameType, g.Status, g.CurrentRound, g.MaxRounds, cfg, g.CreatedAt, g.StartedAt, g.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (s *GameStore) GetGameByID(ctx context.Context, id string) (*models.Game, error) {
	query := `
		SELECT id, game_type, status, current_round, max_rounds, config, created_at, started_at, completed_at
		FROM games
		WHERE id = $1
	`

	game := &models.Game{}
	var cfg []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&game.ID,
		&game.GameType,
		&game.Status,
		&game.CurrentRound,
		&game.MaxRounds,
		&cfg,
		&game.CreatedAt,
		&game.StartedAt,
		&game.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // game not found
		}
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}
	if err := json.Unmarshal(cfg, &game.Config); err != nil {
		return nil, fmt.Errorf("failed to decode game config: %w", err)
	}

	return game, nil
}

func (s *GameStore) UpdateGame(ctx context.Context, g *models.Game) error {
	query := `
		UPDATE games
		SET status = $2, current_round = $3, started_at = $4, completed_at = $5
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, g.ID, g.Status, g.CurrentRound, g.StartedAt, g.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game %s not found", g.ID)
	}
	return nil
}

func (s *GameStore) ListGamesByStatus(ctx context.Context, status string) ([]*models.Game, error) {
	query := `
		SELECT id, game_type, status, current_round, max_rounds, config, created_at, started_at, completed_at
		FROM games
		WHERE status = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		game := &models.Game{}
		var cfg []byte
		err := rows.Scan(
			&game.ID,
			&game.GameType,
			&game.Status,
			&game.CurrentRound,
			&game.MaxRounds,
			&cfg,
			&game.CreatedAt,
			&game.StartedAt,
			&game.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cfg, &game.Config); err != nil {
			return nil, fmt.Errorf("failed to decode game config: %w", err)
		}
		games = append(games, game)
	}

	return games, rows.Err()
}

func (s *GameStore) CountGamesByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM games WHERE status = $1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}
