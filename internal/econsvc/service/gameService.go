package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/agent"
	"github.com/econlab/econ-services/internal/econsvc/engine"
	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Move submission outcomes. Rejections travel as errors; these cover the
// accepted cases only.
type MoveStatus string

const (
	StatusMoveAccepted  MoveStatus = "move_accepted"  // recorded, waiting for others
	StatusRoundComplete MoveStatus = "round_complete" // round settled, game continues
	StatusGameComplete  MoveStatus = "game_complete"  // round settled, game finalized
)

type MoveOutcome struct {
	Status      MoveStatus         `json:"status"`
	RoundNumber int                `json:"round_number"`
	NextRound   int                `json:"next_round,omitempty"`
	WaitingFor  int                `json:"waiting_for,omitempty"`
	Round       *comm.RoundSummary `json:"round,omitempty"`
}

// GameService is the orchestrator for every game it touches: it owns the
// record-move / completeness / settle / advance sequence and is the single
// source of truth for whether a round is closed. All mutation of one game
// is serialized by a per-game mutex; the store's check-and-set guards back
// the same invariants across processes.
type GameService struct {
	games   GameStore
	players PlayerStore
	rounds  RoundStore
	moves   MoveStore
	results ResultStore
	decider agent.Provider // nil when no automated play is wired
	events  EventPublisher // nil when no observers are wired

	locks sync.Map // game ID -> *sync.Mutex
}

func NewGameService(games GameStore, players PlayerStore, rounds RoundStore,
	moves MoveStore, results ResultStore, decider agent.Provider, events EventPublisher) *GameService {
	return &GameService{
		games:   games,
		players: players,
		rounds:  rounds,
		moves:   moves,
		results: results,
		decider: decider,
		events:  events,
	}
}

func (s *GameService) gameLock(gameID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(gameID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CreateGame registers a new game in waiting status. A nil cfg gets the
// game type's defaults.
func (s *GameService) CreateGame(ctx context.Context, gameType string, maxRounds int, cfg *models.GameConfig) (*models.Game, error) {
	if _, err := engine.ForType(gameType); err != nil {
		return nil, NewValidationError("%v", err)
	}
	if cfg == nil {
		def := models.DefaultPublicGoodsConfig()
		cfg = &def
	}
	if maxRounds <= 0 {
		return nil, NewValidationError("max rounds must be positive, got %d", maxRounds)
	}
	if cfg.GroupSize <= 0 || cfg.TokensPerRound <= 0 {
		return nil, NewValidationError("group size and tokens per round must be positive")
	}
	if cfg.KeepValue.IsNegative() || cfg.InvestValue.IsNegative() || cfg.SocialValue.IsNegative() {
		return nil, NewValidationError("monetary rates must be non-negative")
	}

	game := &models.Game{
		ID:        uuid.NewString(),
		GameType:  gameType,
		Status:    models.StatusWaiting,
		MaxRounds: maxRounds,
		Config:    *cfg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.games.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	s.publishGameEvent(comm.EventGameCreated, game, "")
	return game, nil
}

// AddPlayer seats a player in a waiting game. The game becomes active the
// moment the last seat fills.
func (s *GameService) AddPlayer(ctx context.Context, gameID, name, decisionSource string) (*models.Player, error) {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != models.StatusWaiting {
		return nil, NewValidationError("players can only join while the game is waiting, status is %s", game.Status)
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if len(players) >= game.Config.GroupSize {
		return nil, NewValidationError("game already has %d players", game.Config.GroupSize)
	}

	if decisionSource == "" {
		decisionSource = models.DecisionSourceRandom
	}
	player := &models.Player{
		ID:             uuid.NewString(),
		GameID:         gameID,
		Name:           name,
		DecisionSource: decisionSource,
		Position:       len(players),
		TotalEarnings:  decimal.Zero,
		JoinedAt:       time.Now().UTC(),
	}
	if err := s.players.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}

	if len(players)+1 == game.Config.GroupSize {
		now := time.Now().UTC()
		game.Status = models.StatusActive
		game.StartedAt = &now
		if err := s.games.UpdateGame(ctx, game); err != nil {
			return nil, fmt.Errorf("activate game: %w", err)
		}
		s.publishGameEvent(comm.EventGameStarted, game, player.ID)
	} else {
		s.publishGameEvent(comm.EventPlayerJoined, game, player.ID)
	}

	return player, nil
}

// SubmitMove validates and records a decision, settles the round when the
// last seat reports in, and finalizes the game after the last round. Every
// move, interactive or automated, goes through here.
func (s *GameService) SubmitMove(ctx context.Context, gameID, playerID string, roundNumber, tokensInvested int) (*MoveOutcome, error) {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	eng, err := engine.ForType(game.GameType)
	if err != nil {
		return nil, err
	}

	player, err := s.players.GetPlayerByID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, ErrPlayerNotFound
	}
	if player.GameID != game.ID {
		return nil, NewValidationError("player does not belong to this game")
	}

	if game.Status != models.StatusActive {
		return nil, NewValidationError("game is not accepting moves, status is %s", game.Status)
	}
	if roundNumber < game.CurrentRound {
		return nil, NewValidationError("round %d is already closed", roundNumber)
	}
	if roundNumber > game.CurrentRound {
		return nil, NewValidationError("round %d is not open yet, current round is %d", roundNumber, game.CurrentRound)
	}

	round, err := s.getOrCreateRound(ctx, gameID, roundNumber)
	if err != nil {
		return nil, err
	}
	if round.Settled() {
		return nil, NewValidationError("round %d is already closed", roundNumber)
	}

	roundMoves, err := s.moves.ListMovesByRoundID(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range roundMoves {
		if m.PlayerID == playerID {
			return nil, NewValidationError("player has already made a move this round")
		}
	}

	if err := eng.ValidateMove(game.Config, tokensInvested); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	move := &models.Move{
		ID:             uuid.NewString(),
		RoundID:        round.ID,
		PlayerID:       playerID,
		TokensInvested: tokensInvested,
		TokensKept:     game.Config.TokensPerRound - tokensInvested,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.moves.CreateMove(ctx, move); err != nil {
		if errors.Is(err, models.ErrDuplicateMove) {
			// The per-game lock should make this unreachable.
			return nil, &ConsistencyError{Reason: fmt.Sprintf(
				"duplicate move for player %s in round %d slipped past serialization", playerID, roundNumber)}
		}
		return nil, fmt.Errorf("record move: %w", err)
	}
	roundMoves = append(roundMoves, move)
	s.publishGameEvent(comm.EventMoveAccepted, game, playerID)

	if len(roundMoves) < game.Config.GroupSize {
		return &MoveOutcome{
			Status:      StatusMoveAccepted,
			RoundNumber: roundNumber,
			WaitingFor:  game.Config.GroupSize - len(roundMoves),
		}, nil
	}

	summary, err := s.settleRound(ctx, eng, game, round, roundMoves)
	if err != nil {
		return nil, err
	}

	if roundNumber == game.MaxRounds-1 {
		if err := s.finalizeGame(ctx, eng, game); err != nil {
			return nil, err
		}
		return &MoveOutcome{Status: StatusGameComplete, RoundNumber: roundNumber, Round: summary}, nil
	}

	game.CurrentRound++
	if err := s.games.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("advance round: %w", err)
	}
	return &MoveOutcome{
		Status:      StatusRoundComplete,
		RoundNumber: roundNumber,
		NextRound:   game.CurrentRound,
		Round:       summary,
	}, nil
}

func (s *GameService) getOrCreateRound(ctx context.Context, gameID string, roundNumber int) (*models.Round, error) {
	round, err := s.rounds.GetRound(ctx, gameID, roundNumber)
	if err != nil {
		return nil, err
	}
	if round != nil {
		return round, nil
	}

	round = &models.Round{
		ID:          uuid.NewString(),
		GameID:      gameID,
		RoundNumber: roundNumber,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.rounds.CreateRound(ctx, round); err != nil {
		if errors.Is(err, models.ErrRoundExists) {
			// Another process created it between our read and write.
			return s.rounds.GetRound(ctx, gameID, roundNumber)
		}
		return nil, fmt.Errorf("create round: %w", err)
	}
	return round, nil
}

// settleRound computes earnings for a full round and writes them out. The
// store's check-and-set on completedAt enforces at-most-one settlement; a
// lost race is a consistency violation, not a silent retry.
func (s *GameService) settleRound(ctx context.Context, eng engine.Engine, game *models.Game, round *models.Round, roundMoves []*models.Move) (*comm.RoundSummary, error) {
	settlement, err := eng.SettleRound(game.Config, roundMoves)
	if err != nil {
		return nil, &ConsistencyError{Reason: err.Error()}
	}

	now := time.Now().UTC()
	ok, err := s.rounds.CompleteRound(ctx, round.ID, settlement.TotalInvested, settlement.AverageInvestment, now)
	if err != nil {
		return nil, fmt.Errorf("complete round: %w", err)
	}
	if !ok {
		return nil, &ConsistencyError{Reason: fmt.Sprintf("round %d of game %s was settled twice", round.RoundNumber, game.ID)}
	}
	round.CompletedAt = &now
	round.TotalInvested = settlement.TotalInvested
	round.AverageInvestment = settlement.AverageInvestment

	for _, m := range roundMoves {
		earnings := settlement.Earnings[m.ID]
		if err := s.moves.SetEarnings(ctx, m.ID, earnings); err != nil {
			return nil, fmt.Errorf("write earnings: %w", err)
		}
		if err := s.players.AddEarnings(ctx, m.PlayerID, earnings); err != nil {
			return nil, fmt.Errorf("credit player earnings: %w", err)
		}
		m.Earnings = decimal.NewNullDecimal(earnings)
	}

	players, err := s.players.ListPlayersByGameID(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	summary := buildRoundSummary(round, roundMoves, players)
	if s.events != nil {
		s.events.PublishRoundSettled(game.ID, *summary)
	}
	return summary, nil
}

// finalizeGame ranks players, persists one result per player and moves the
// game to completed. It runs exactly once per game: only the settlement of
// the last round can reach it, and that settlement is itself guarded.
func (s *GameService) finalizeGame(ctx context.Context, eng engine.Engine, game *models.Game) error {
	players, err := s.players.ListPlayersByGameID(ctx, game.ID)
	if err != nil {
		return err
	}

	movesByPlayer := map[string][]*models.Move{}
	rounds, err := s.rounds.ListRoundsByGameID(ctx, game.ID)
	if err != nil {
		return err
	}
	for _, r := range rounds {
		roundMoves, err := s.moves.ListMovesByRoundID(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, m := range roundMoves {
			movesByPlayer[m.PlayerID] = append(movesByPlayer[m.PlayerID], m)
		}
	}

	standings := eng.Finalize(game.Config, game.MaxRounds, players, movesByPlayer)
	now := time.Now().UTC()
	results := make([]*models.Result, 0, len(standings))
	for _, st := range standings {
		results = append(results, &models.Result{
			ID:                    uuid.NewString(),
			GameID:                game.ID,
			PlayerID:              st.PlayerID,
			FinalEarnings:         st.FinalEarnings,
			TotalInvestment:       st.TotalInvestment,
			AvgInvestmentPerRound: st.AvgInvestmentPerRound,
			CooperationRate:       st.CooperationRate,
			PerformanceRank:       st.PerformanceRank,
			CreatedAt:             now,
		})
	}
	if err := s.results.CreateResults(ctx, results); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}

	game.Status = models.StatusCompleted
	game.CompletedAt = &now
	if err := s.games.UpdateGame(ctx, game); err != nil {
		return fmt.Errorf("complete game: %w", err)
	}

	s.publishGameEvent(comm.EventGameCompleted, game, "")
	return nil
}

// CancelGame aborts a game that has not completed. In-flight automated
// decisions observe the cancellation through their context.
func (s *GameService) CancelGame(ctx context.Context, gameID string) (*models.Game, error) {
	mu := s.gameLock(gameID)
	mu.Lock()
	defer mu.Unlock()

	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status == models.StatusCompleted {
		return nil, NewValidationError("game is already completed")
	}
	if game.Status == models.StatusCancelled {
		return game, nil
	}

	now := time.Now().UTC()
	game.Status = models.StatusCancelled
	game.CompletedAt = &now
	if err := s.games.UpdateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("cancel game: %w", err)
	}
	s.publishGameEvent(comm.EventGameCancelled, game, "")
	return game, nil
}

// GameStatus reports the game, its players and per-round completion flags.
func (s *GameService) GameStatus(ctx context.Context, gameID string) (*comm.GameStatus, error) {
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.rounds.ListRoundsByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber < rounds[j].RoundNumber })

	flags := make([]comm.RoundFlag, 0, len(rounds))
	for _, r := range rounds {
		flags = append(flags, comm.RoundFlag{
			RoundNumber: r.RoundNumber,
			Completed:   r.Settled(),
			CompletedAt: r.CompletedAt,
		})
	}
	return &comm.GameStatus{Game: game, Players: players, Rounds: flags}, nil
}

// History returns summaries of every settled round in order. Moves of the
// open round stay hidden until it settles.
func (s *GameService) History(ctx context.Context, gameID string) ([]comm.RoundSummary, error) {
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.rounds.ListRoundsByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].RoundNumber < rounds[j].RoundNumber })

	history := make([]comm.RoundSummary, 0, len(rounds))
	for _, r := range rounds {
		if !r.Settled() {
			continue
		}
		roundMoves, err := s.moves.ListMovesByRoundID(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		history = append(history, *buildRoundSummary(r, roundMoves, players))
	}
	return history, nil
}

// FinalResults returns the ranked results of a completed game.
func (s *GameService) FinalResults(ctx context.Context, gameID string) ([]comm.FinalResult, error) {
	game, err := s.games.GetGameByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != models.StatusCompleted {
		return nil, NewValidationError("game is not completed, status is %s", game.Status)
	}

	players, err := s.players.ListPlayersByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	results, err := s.results.ListResultsByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].PerformanceRank < results[j].PerformanceRank })

	out := make([]comm.FinalResult, 0, len(results))
	for _, r := range results {
		fr := comm.FinalResult{
			PlayerID:              r.PlayerID,
			FinalEarnings:         r.FinalEarnings,
			TotalInvestment:       r.TotalInvestment,
			AvgInvestmentPerRound: r.AvgInvestmentPerRound,
			CooperationRate:       r.CooperationRate,
			PerformanceRank:       r.PerformanceRank,
		}
		if p := byID[r.PlayerID]; p != nil {
			fr.PlayerName = p.Name
			fr.DecisionSource = p.DecisionSource
			fr.Position = p.Position
		}
		out = append(out, fr)
	}
	return out, nil
}

// ListGames returns games filtered by status ("" means all known statuses).
func (s *GameService) ListGames(ctx context.Context, status string) ([]*models.Game, error) {
	if status != "" {
		return s.games.ListGamesByStatus(ctx, status)
	}
	var all []*models.Game
	for _, st := range []string{models.StatusWaiting, models.StatusActive, models.StatusCompleted, models.StatusCancelled} {
		games, err := s.games.ListGamesByStatus(ctx, st)
		if err != nil {
			return nil, err
		}
		all = append(all, games...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// SummaryStats counts games by status for the admin surface.
func (s *GameService) SummaryStats(ctx context.Context) (map[string]int, error) {
	stats := map[string]int{}
	total := 0
	for _, st := range []string{models.StatusWaiting, models.StatusActive, models.StatusCompleted, models.StatusCancelled} {
		n, err := s.games.CountGamesByStatus(ctx, st)
		if err != nil {
			return nil, err
		}
		stats[st] = n
		total += n
	}
	stats["total"] = total
	return stats, nil
}

func (s *GameService) publishGameEvent(eventType string, game *models.Game, playerID string) {
	if s.events == nil {
		return
	}
	s.events.PublishGameEvent(eventType, comm.GameEvent{
		GameID:      game.ID,
		GameType:    game.GameType,
		Status:      game.Status,
		RoundNumber: game.CurrentRound,
		PlayerID:    playerID,
	})
}

func buildRoundSummary(round *models.Round, roundMoves []*models.Move, players []*models.Player) *comm.RoundSummary {
	byID := make(map[string]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	sorted := make([]*models.Move, len(roundMoves))
	copy(sorted, roundMoves)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := byID[sorted[i].PlayerID], byID[sorted[j].PlayerID]
		if pi == nil || pj == nil {
			return sorted[i].PlayerID < sorted[j].PlayerID
		}
		return pi.Position < pj.Position
	})

	summaries := make([]comm.MoveSummary, 0, len(sorted))
	for _, m := range sorted {
		ms := comm.MoveSummary{
			PlayerID:       m.PlayerID,
			TokensInvested: m.TokensInvested,
			TokensKept:     m.TokensKept,
			Earnings:       m.Earnings,
		}
		if p := byID[m.PlayerID]; p != nil {
			ms.PlayerName = p.Name
			ms.Position = p.Position
		}
		summaries = append(summaries, ms)
	}

	return &comm.RoundSummary{
		RoundNumber:       round.RoundNumber,
		Moves:             summaries,
		TotalInvested:     round.TotalInvested,
		AverageInvestment: round.AverageInvestment,
	}
}
