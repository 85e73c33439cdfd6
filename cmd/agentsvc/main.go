package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	config "github.com/econlab/econ-services/configs"
	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/agent"
	"github.com/econlab/econ-services/internal/econsvc/archive"
	"github.com/econlab/econ-services/internal/econsvc/broker"
	"github.com/econlab/econ-services/internal/econsvc/db"
	"github.com/econlab/econ-services/internal/econsvc/service"
	"github.com/econlab/econ-services/internal/econsvc/store"
	natscli "github.com/econlab/econ-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "agent"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	log.Printf("Starting Agent Service...")

	// pg connection (same pattern as the econ service)
	dbpool, err := db.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	nc, err := natscli.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Conn.Close()
	log.Infof("NATS connected at %s", nc.Url)

	var arch *archive.Store
	if mongoURI := os.Getenv("MONGO_URL"); mongoURI != "" {
		arch, err = archive.Connect(context.Background(), mongoURI, 30*24*time.Hour)
		if err != nil {
			log.Errorf("Failed to connect to archive, transcripts disabled: %v", err)
			arch = nil
		}
	}

	var primary agent.Provider
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		primary = agent.NewModelProvider(os.Getenv("OPENAI_BASE_URL"), apiKey, os.Getenv("OPENAI_MODEL"), arch)
	}
	decider := agent.NewFallbackProvider(primary, nil, 0, arch)

	events := broker.NewBroker(nc.Conn)

	gameService := service.NewGameService(
		store.NewGameStore(dbpool),
		store.NewPlayerStore(dbpool),
		store.NewRoundStore(dbpool),
		store.NewMoveStore(dbpool),
		store.NewResultStore(dbpool),
		decider,
		events,
	)

	ctx := context.Background()

	// React to lifecycle events; the queue group keeps multiple agent
	// instances from double-playing a round.
	_, err = events.QueueSubscribeEvents("agents", func(msg *comm.EventMessage) {
		handleEvent(ctx, gameService, msg)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", comm.TopicEvents, err)
	}
	log.Printf("Subscribed to %s", comm.TopicEvents)

	// Polling sweep picks up games whose events were missed.
	go startGameSweep(ctx, gameService)

	log.Printf("Agent Service fully operational!")

	// Keep service running
	select {}
}

// handleEvent plays the automated seats of a game whenever it starts or a
// round settles.
func handleEvent(ctx context.Context, gameService *service.GameService, msg *comm.EventMessage) {
	switch msg.Type {
	case comm.EventGameStarted:
		var ev comm.GameEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Errorf("Failed to unmarshal GameEvent: %v", err)
			return
		}
		playAutomatedRound(ctx, gameService, ev.GameID)
	case comm.EventRoundSettled:
		var settled struct {
			GameID string `json:"game_id"`
		}
		if err := json.Unmarshal(msg.Data, &settled); err != nil {
			log.Errorf("Failed to unmarshal round settlement: %v", err)
			return
		}
		playAutomatedRound(ctx, gameService, settled.GameID)
	}
}

func playAutomatedRound(ctx context.Context, gameService *service.GameService, gameID string) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := gameService.RunAutomatedRound(cctx, gameID)
	if err != nil {
		// Nothing pending is the common case: the game has interactive seats
		// still to move, or another instance got there first.
		if service.IsValidation(err) {
			return
		}
		log.Errorf("Automated round for game %s failed: %v", gameID, err)
		return
	}

	log.Printf("Played automated moves for game %s: %s (round %d)", gameID, out.Status, out.RoundNumber)
}

// startGameSweep checks active games every 5 seconds and plays any pending
// automated seats.
func startGameSweep(ctx context.Context, gameService *service.GameService) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	log.Printf("Game sweep started - checking every 5 seconds")

	for range ticker.C {
		games, err := gameService.ListGames(ctx, "active")
		if err != nil {
			log.Errorf("Error listing active games: %v", err)
			continue
		}

		for _, game := range games {
			playAutomatedRound(ctx, gameService, game.ID)
		}
	}
}
