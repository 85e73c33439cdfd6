// econctl drives the econ service API from the command line: set up a
// game, seat players, watch rounds settle and print the final ranking.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
)

type cli struct {
	Addr  string `help:"Base URL of the econ service." default:"http://localhost:8090" env:"ECON_ADDR"`
	Token string `help:"Bearer token for the service API." env:"ECON_TOKEN"`

	Create  createCmd  `cmd:"" help:"Create a new game."`
	Join    joinCmd    `cmd:"" help:"Seat a player in a waiting game."`
	Move    moveCmd    `cmd:"" help:"Submit an investment decision."`
	Status  statusCmd  `cmd:"" help:"Show a game's status."`
	Results resultsCmd `cmd:"" help:"Show the final ranking of a completed game."`
	Run     runCmd     `cmd:"" help:"Create a fully automated game and play it to completion."`
	List    listCmd    `cmd:"" help:"List games."`
	Cancel  cancelCmd  `cmd:"" help:"Cancel a game."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("econctl"),
		kong.Description("Control plane for the econ game service."),
		kong.UsageOnError(),
	)
	client := &apiClient{
		addr:  strings.TrimSuffix(c.Addr, "/"),
		token: c.Token,
		http:  &http.Client{Timeout: 10 * time.Minute},
	}
	ctx.FatalIfErrorf(ctx.Run(client))
}

type apiClient struct {
	addr  string
	token string
	http  *http.Client
}

type apiResponse struct {
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *apiClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.addr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if envelope.Error != "" {
		return fmt.Errorf("%s", envelope.Error)
	}
	if out != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

type createCmd struct {
	GameType  string `help:"Game type." default:"public-goods"`
	MaxRounds int    `help:"Number of rounds." default:"15"`
}

func (cmd *createCmd) Run(client *apiClient) error {
	var game models.Game
	err := client.post("/v1/games", map[string]interface{}{
		"game_type":  cmd.GameType,
		"max_rounds": cmd.MaxRounds,
	}, &game)
	if err != nil {
		return err
	}
	fmt.Printf("created %s game %s (%d rounds, %d seats)\n",
		game.GameType, game.ID, game.MaxRounds, game.Config.GroupSize)
	return nil
}

type joinCmd struct {
	GameID string `arg:"" help:"Game to join."`
	Name   string `help:"Player name." required:""`
	Source string `help:"Decision source: human, random or a model name." default:"random"`
}

func (cmd *joinCmd) Run(client *apiClient) error {
	var player models.Player
	err := client.post("/v1/games/"+cmd.GameID+"/players", map[string]interface{}{
		"name":            cmd.Name,
		"decision_source": cmd.Source,
	}, &player)
	if err != nil {
		return err
	}
	fmt.Printf("seated %s at position %d (player %s)\n", player.Name, player.Position, player.ID)
	return nil
}

type moveCmd struct {
	GameID   string `arg:"" help:"Game."`
	PlayerID string `help:"Player making the move." required:""`
	Round    int    `help:"Round number (0-based)." required:""`
	Tokens   int    `help:"Tokens to invest." required:""`
}

func (cmd *moveCmd) Run(client *apiClient) error {
	var outcome struct {
		Status     string             `json:"status"`
		WaitingFor int                `json:"waiting_for"`
		NextRound  int                `json:"next_round"`
		Round      *comm.RoundSummary `json:"round"`
	}
	err := client.post("/v1/games/"+cmd.GameID+"/moves", map[string]interface{}{
		"player_id":       cmd.PlayerID,
		"round_number":    cmd.Round,
		"tokens_invested": cmd.Tokens,
	}, &outcome)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case "move_accepted":
		fmt.Printf("move accepted, waiting for %d more\n", outcome.WaitingFor)
	case "round_complete":
		fmt.Printf("round %d settled, next round is %d\n", cmd.Round, outcome.NextRound)
		if outcome.Round != nil {
			printRound(*outcome.Round)
		}
	case "game_complete":
		fmt.Println("game complete")
		if outcome.Round != nil {
			printRound(*outcome.Round)
		}
	}
	return nil
}

type statusCmd struct {
	GameID string `arg:"" help:"Game."`
}

func (cmd *statusCmd) Run(client *apiClient) error {
	var status comm.GameStatus
	if err := client.get("/v1/games/"+cmd.GameID+"/status", &status); err != nil {
		return err
	}

	g := status.Game
	fmt.Printf("game %s: %s, round %d/%d\n", g.ID, g.Status, g.CurrentRound+1, g.MaxRounds)
	for _, p := range status.Players {
		fmt.Printf("  #%d %-20s %-12s $%s\n", p.Position, p.Name, p.DecisionSource, p.TotalEarnings.StringFixed(2))
	}
	settled := 0
	for _, r := range status.Rounds {
		if r.Completed {
			settled++
		}
	}
	fmt.Printf("  %d of %d rounds settled\n", settled, g.MaxRounds)
	return nil
}

type resultsCmd struct {
	GameID string `arg:"" help:"Game."`
}

func (cmd *resultsCmd) Run(client *apiClient) error {
	var results []comm.FinalResult
	if err := client.get("/v1/games/"+cmd.GameID+"/results", &results); err != nil {
		return err
	}
	printResults(results)
	return nil
}

type runCmd struct {
	Players   []string `help:"Decision source per seat; repeat to fill the group." default:"random,random,random,random"`
	MaxRounds int      `help:"Number of rounds." default:"15"`
}

func (cmd *runCmd) Run(client *apiClient) error {
	var game models.Game
	err := client.post("/v1/games", map[string]interface{}{
		"game_type":  models.GameTypePublicGoods,
		"max_rounds": cmd.MaxRounds,
	}, &game)
	if err != nil {
		return err
	}
	fmt.Printf("created game %s\n", game.ID)

	for i, source := range cmd.Players {
		if i >= game.Config.GroupSize {
			break
		}
		var player models.Player
		err := client.post("/v1/games/"+game.ID+"/players", map[string]interface{}{
			"name":            fmt.Sprintf("Agent %d", i+1),
			"decision_source": source,
		}, &player)
		if err != nil {
			return err
		}
		fmt.Printf("seated %s (%s)\n", player.Name, player.DecisionSource)
	}

	fmt.Println("playing...")
	var run comm.GameRun
	if err := client.post("/v1/games/"+game.ID+"/run", nil, &run); err != nil {
		return err
	}

	for _, round := range run.GameHistory {
		printRound(round)
	}
	printResults(run.FinalResults)
	return nil
}

type listCmd struct {
	Status string `help:"Filter by status (waiting, active, completed, cancelled)."`
}

func (cmd *listCmd) Run(client *apiClient) error {
	path := "/v1/games"
	if cmd.Status != "" {
		path += "?status=" + cmd.Status
	}
	var games []models.Game
	if err := client.get(path, &games); err != nil {
		return err
	}
	for _, g := range games {
		fmt.Printf("%s  %-10s round %2d/%2d  created %s\n",
			g.ID, g.Status, g.CurrentRound+1, g.MaxRounds, g.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

type cancelCmd struct {
	GameID string `arg:"" help:"Game to cancel."`
}

func (cmd *cancelCmd) Run(client *apiClient) error {
	var game models.Game
	if err := client.post("/v1/games/"+cmd.GameID+"/cancel", nil, &game); err != nil {
		return err
	}
	fmt.Printf("game %s is now %s\n", game.ID, game.Status)
	return nil
}

func printRound(r comm.RoundSummary) {
	fmt.Printf("round %d: %d tokens pooled (avg %s)\n",
		r.RoundNumber+1, r.TotalInvested, r.AverageInvestment.StringFixed(2))
	for _, m := range r.Moves {
		earnings := "-"
		if m.Earnings.Valid {
			earnings = "$" + m.Earnings.Decimal.StringFixed(2)
		}
		fmt.Printf("  #%d %-20s invested %d, kept %d, earned %s\n",
			m.Position, m.PlayerName, m.TokensInvested, m.TokensKept, earnings)
	}
}

func printResults(results []comm.FinalResult) {
	fmt.Println("final ranking:")
	for _, r := range results {
		fmt.Printf("  %d. %-20s $%s  invested %d total  cooperation %s%%\n",
			r.PerformanceRank, r.PlayerName, r.FinalEarnings.StringFixed(2),
			r.TotalInvestment, r.CooperationRate.StringFixed(1))
	}
}
