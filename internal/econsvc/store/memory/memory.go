// Package memory is a map-backed implementation of the store capabilities,
// used by tests and by offline runs that have no Postgres around. It keeps
// the same invariants as the SQL schema: unique (game, round_number) rounds,
// unique (round, player) moves and a check-and-set settlement guard.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu      sync.Mutex
	games   map[string]*models.Game
	players map[string]*models.Player
	rounds  map[string]*models.Round
	moves   map[string]*models.Move
	results map[string]*models.Result
}

func NewStore() *Store {
	return &Store{
		games:   map[string]*models.Game{},
		players: map[string]*models.Player{},
		rounds:  map[string]*models.Round{},
		moves:   map[string]*models.Move{},
		results: map[string]*models.Result{},
	}
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	return &c
}

func clonePlayer(p *models.Player) *models.Player {
	c := *p
	return &c
}

func cloneRound(r *models.Round) *models.Round {
	c := *r
	return &c
}

func cloneMove(m *models.Move) *models.Move {
	c := *m
	return &c
}

func cloneResult(r *models.Result) *models.Result {
	c := *r
	return &c
}

func (s *Store) CreateGame(ctx context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = cloneGame(g)
	return nil
}

func (s *Store) GetGameByID(ctx context.Context, id string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (s *Store) UpdateGame(ctx context.Context, g *models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = cloneGame(g)
	return nil
}

func (s *Store) ListGamesByStatus(ctx context.Context, status string) ([]*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Game
	for _, g := range s.games {
		if g.Status == status {
			out = append(out, cloneGame(g))
		}
	}
	return out, nil
}

func (s *Store) CountGamesByStatus(ctx context.Context, status string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.games {
		if g.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.ID] = clonePlayer(p)
	return nil
}

func (s *Store) GetPlayerByID(ctx context.Context, id string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	return clonePlayer(p), nil
}

func (s *Store) ListPlayersByGameID(ctx context.Context, gameID string) ([]*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			out = append(out, clonePlayer(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) AddEarnings(ctx context.Context, playerID string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return nil
	}
	p.TotalEarnings = p.TotalEarnings.Add(amount)
	return nil
}

func (s *Store) CreateRound(ctx context.Context, r *models.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rounds {
		if existing.GameID == r.GameID && existing.RoundNumber == r.RoundNumber {
			return models.ErrRoundExists
		}
	}
	s.rounds[r.ID] = cloneRound(r)
	return nil
}

func (s *Store) GetRound(ctx context.Context, gameID string, roundNumber int) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GameID == gameID && r.RoundNumber == roundNumber {
			return cloneRound(r), nil
		}
	}
	return nil, nil
}

func (s *Store) ListRoundsByGameID(ctx context.Context, gameID string) ([]*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Round
	for _, r := range s.rounds {
		if r.GameID == gameID {
			out = append(out, cloneRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (s *Store) CompleteRound(ctx context.Context, roundID string, totalInvested int, avgInvestment decimal.Decimal, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[roundID]
	if !ok || r.CompletedAt != nil {
		return false, nil
	}
	t := completedAt
	r.CompletedAt = &t
	r.TotalInvested = totalInvested
	r.AverageInvestment = avgInvestment
	return true, nil
}

func (s *Store) CreateMove(ctx context.Context, m *models.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.moves {
		if existing.RoundID == m.RoundID && existing.PlayerID == m.PlayerID {
			return models.ErrDuplicateMove
		}
	}
	s.moves[m.ID] = cloneMove(m)
	return nil
}

func (s *Store) ListMovesByRoundID(ctx context.Context, roundID string) ([]*models.Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Move
	for _, m := range s.moves {
		if m.RoundID == roundID {
			out = append(out, cloneMove(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (s *Store) SetEarnings(ctx context.Context, moveID string, earnings decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.moves[moveID]; ok {
		m.Earnings = decimal.NewNullDecimal(earnings)
	}
	return nil
}

func (s *Store) CreateResults(ctx context.Context, results []*models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.results[r.ID] = cloneResult(r)
	}
	return nil
}

func (s *Store) ListResultsByGameID(ctx context.Context, gameID string) ([]*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Result
	for _, r := range s.results {
		if r.GameID == gameID {
			out = append(out, cloneResult(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PerformanceRank < out[j].PerformanceRank })
	return out, nil
}
