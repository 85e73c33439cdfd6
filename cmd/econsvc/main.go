package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/econlab/econ-services/configs"
	"github.com/econlab/econ-services/internal/econsvc/agent"
	"github.com/econlab/econ-services/internal/econsvc/archive"
	"github.com/econlab/econ-services/internal/econsvc/broker"
	"github.com/econlab/econ-services/internal/econsvc/db"
	handlers "github.com/econlab/econ-services/internal/econsvc/handlers"
	"github.com/econlab/econ-services/internal/econsvc/service"
	"github.com/econlab/econ-services/internal/econsvc/store"
	nats "github.com/econlab/econ-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "econ"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {

	// pg connection
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	gameStore := store.NewGameStore(dbpool)
	playerStore := store.NewPlayerStore(dbpool)
	roundStore := store.NewRoundStore(dbpool)
	moveStore := store.NewMoveStore(dbpool)
	resultStore := store.NewResultStore(dbpool)

	// decision transcript archive, optional
	var arch *archive.Store
	if mongoURI := os.Getenv("MONGO_URL"); mongoURI != "" {
		arch, err = archive.Connect(context.Background(), mongoURI, 30*24*time.Hour)
		if err != nil {
			log.Errorf("Error: unable to connect to archive, transcripts disabled %v", err)
			arch = nil
		} else {
			log.Printf("archive connection established successfully")
		}
	}

	// model-backed decisions when an API key is configured, random otherwise
	var primary agent.Provider
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		primary = agent.NewModelProvider(os.Getenv("OPENAI_BASE_URL"), apiKey, os.Getenv("OPENAI_MODEL"), arch)
	}
	decider := agent.NewFallbackProvider(primary, nil, 0, arch)

	// Connect to NATS
	n, err := nats.Connect()
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}

	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	events := broker.NewBroker(n.Conn)

	gameService := service.NewGameService(gameStore, playerStore, roundStore, moveStore, resultStore, decider, events)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(gameService)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("ECON_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
