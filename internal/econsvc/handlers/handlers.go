package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/econlab/econ-services/internal/econsvc/service"
)

type Handler struct {
	tokenAuth   *jwtauth.JWTAuth
	gameService *service.GameService
}

func NewHandler(gameService *service.GameService) *Handler {
	return &Handler{gameService: gameService}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// errorResponse maps domain errors onto HTTP codes: rejected input is 400,
// unknown entities are 404, broken invariants are 500.
func (rs *Handler) errorResponse(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case service.IsValidation(err):
		code = http.StatusBadRequest
	case errors.Is(err, service.ErrGameNotFound), errors.Is(err, service.ErrPlayerNotFound):
		code = http.StatusNotFound
	case service.IsConsistency(err):
		log.Errorf("consistency violation: %v", err)
	default:
		log.Errorf("internal error: %v", err)
	}

	rs.CreateResponse(w, Response{Code: code, Error: err.Error()})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "econ service is running at port " + os.Getenv("ECON_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GameType  string             `json:"game_type"`
		MaxRounds int                `json:"max_rounds"`
		Config    *models.GameConfig `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid request body"})
		return
	}
	if req.GameType == "" {
		req.GameType = models.GameTypePublicGoods
	}
	if req.MaxRounds == 0 {
		req.MaxRounds = models.DefaultMaxRounds
	}

	game, err := h.gameService.CreateGame(r.Context(), req.GameType, req.MaxRounds, req.Config)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "game created", Code: http.StatusCreated, Data: game})
}

func (h *Handler) AddPlayerHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	var req struct {
		Name           string `json:"name"`
		DecisionSource string `json:"decision_source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "player name is required"})
		return
	}

	player, err := h.gameService.AddPlayer(r.Context(), gameID, req.Name, req.DecisionSource)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "player joined", Code: http.StatusCreated, Data: player})
}

func (h *Handler) SubmitMoveHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	var req struct {
		PlayerID       string `json:"player_id"`
		RoundNumber    int    `json:"round_number"`
		TokensInvested int    `json:"tokens_invested"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: "invalid request body"})
		return
	}

	outcome, err := h.gameService.SubmitMove(r.Context(), gameID, req.PlayerID, req.RoundNumber, req.TokensInvested)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: string(outcome.Status), Code: http.StatusOK, Data: outcome})
}

func (h *Handler) GameStatusHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	status, err := h.gameService.GameStatus(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: status})
}

func (h *Handler) GameHistoryHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	history, err := h.gameService.History(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: history})
}

func (h *Handler) GameResultsHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	results, err := h.gameService.FinalResults(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: results})
}

func (h *Handler) CancelGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	game, err := h.gameService.CancelGame(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "game cancelled", Code: http.StatusOK, Data: game})
}

func (h *Handler) ListGamesHandler(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	games, err := h.gameService.ListGames(r.Context(), status)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: games})
}

func (h *Handler) SummaryStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gameService.SummaryStats(r.Context())
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: stats})
}

func (h *Handler) RunRoundHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	outcome, err := h.gameService.RunAutomatedRound(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: string(outcome.Status), Code: http.StatusOK, Data: outcome})
}

func (h *Handler) RunGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	run, err := h.gameService.RunFullGame(r.Context(), gameID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	h.CreateResponse(w, Response{Message: "game completed", Code: http.StatusOK, Data: run})
}
