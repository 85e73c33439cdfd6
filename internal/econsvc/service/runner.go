package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunAutomatedRound obtains a decision for every automated player that has
// not yet moved in the current round and submits them through the normal
// SubmitMove path, so automated and interactive play settle identically.
// Decisions are gathered concurrently and without holding the game lock;
// only after all are in do the submissions run.
func (s *GameService) RunAutomatedRound(ctx context.Context, gameID string) (*MoveOutcome, error) {
	if s.decider == nil {
		return nil, fmt.Errorf("no decision provider configured")
	}

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != models.StatusActive {
		return nil, NewValidationError("game is not active, status is %s", game.Status)
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	history, err := s.History(ctx, gameID)
	if err != nil {
		return nil, err
	}

	roundNumber := game.CurrentRound
	moved := map[string]bool{}
	if round, err := s.rounds.GetRound(ctx, gameID, roundNumber); err != nil {
		return nil, err
	} else if round != nil {
		roundMoves, err := s.moves.ListMovesByRoundID(ctx, round.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range roundMoves {
			moved[m.PlayerID] = true
		}
	}

	var pending []*models.Player
	for _, p := range players {
		if p.Automated() && !moved[p.ID] {
			pending = append(pending, p)
		}
	}
	if len(pending) == 0 {
		return nil, NewValidationError("no automated moves pending for round %d", roundNumber)
	}

	decisions := make([]int, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			tokens, err := s.decider.Decide(gctx, game, p, roundNumber, history)
			if err != nil {
				return fmt.Errorf("decide for player %s: %w", p.ID, err)
			}
			decisions[i] = tokens
			return nil
		})
	}
	// The fallback policy absorbs provider failures, so an error here means
	// cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var outcome *MoveOutcome
	for i, p := range pending {
		out, err := s.SubmitMove(ctx, gameID, p.ID, roundNumber, decisions[i])
		if err != nil {
			if IsValidation(err) {
				// Raced with an interactive submission; nothing lost.
				log.Warnf("automated move for player %s rejected: %v", p.ID, err)
				continue
			}
			return nil, err
		}
		outcome = out
	}
	if outcome == nil {
		return nil, NewValidationError("all automated moves for round %d were rejected", roundNumber)
	}
	return outcome, nil
}

// RunFullGame plays a fully automated game to completion and returns the
// round-by-round history plus the final ranking. Every player must be
// automated; the game must be active.
func (s *GameService) RunFullGame(ctx context.Context, gameID string) (*comm.GameRun, error) {
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != models.StatusActive {
		return nil, NewValidationError("game is not active, status is %s", game.Status)
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if !p.Automated() {
			return nil, NewValidationError("player %s is interactive; a full run requires automated players only", p.Name)
		}
	}

	for i := 0; i < game.MaxRounds; i++ {
		out, err := s.RunAutomatedRound(ctx, gameID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("automated round %d: %w", i, err)
		}
		if out.Status == StatusGameComplete {
			break
		}
		if out.Status != StatusRoundComplete {
			return nil, &ConsistencyError{Reason: fmt.Sprintf(
				"automated round %d ended with status %s instead of settling", i, out.Status)}
		}
	}

	history, err := s.History(ctx, gameID)
	if err != nil {
		return nil, err
	}
	results, err := s.FinalResults(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &comm.GameRun{
		GameID:       gameID,
		TotalRounds:  game.MaxRounds,
		GameHistory:  history,
		FinalResults: results,
	}, nil
}
