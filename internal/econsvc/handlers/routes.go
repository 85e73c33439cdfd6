package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Route("/games", func(r chi.Router) {
				r.Get("/", h.ListGamesHandler)
				r.Post("/", h.CreateGameHandler)
				r.Get("/stats", h.SummaryStatsHandler)

				r.Route("/{gameId}", func(r chi.Router) {
					r.Get("/status", h.GameStatusHandler)
					r.Get("/history", h.GameHistoryHandler)
					r.Get("/results", h.GameResultsHandler)
					r.Post("/players", h.AddPlayerHandler)
					r.Post("/moves", h.SubmitMoveHandler)
					r.Post("/cancel", h.CancelGameHandler)
					r.Post("/rounds/run", h.RunRoundHandler)
					r.Post("/run", h.RunGameHandler)
				})
			})
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
