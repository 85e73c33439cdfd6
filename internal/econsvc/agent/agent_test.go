package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGame() *models.Game {
	return &models.Game{
		ID:        "game-1",
		GameType:  models.GameTypePublicGoods,
		Status:    models.StatusActive,
		MaxRounds: 15,
		Config:    models.DefaultPublicGoodsConfig(),
	}
}

func testPlayer(source string) *models.Player {
	return &models.Player{ID: "player-1", GameID: "game-1", Name: "Agent A", DecisionSource: source}
}

func TestRandomProviderStaysInRange(t *testing.T) {
	t.Parallel()

	p := NewRandomProvider(rand.New(rand.NewSource(1)))
	game := testGame()
	for i := 0; i < 200; i++ {
		tokens, err := p.Decide(context.Background(), game, testPlayer("random"), 0, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tokens, 0)
		assert.LessOrEqual(t, tokens, game.Config.TokensPerRound)
	}
}

func TestRandomProviderHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRandomProvider(nil).Decide(ctx, testGame(), testPlayer("random"), 0, nil)
	assert.Error(t, err)
}

func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Model)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestModelProviderParsesTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		reply string
		want  int
	}{
		{"bare object", `{"tokens": 3}`, 3},
		{"object inside prose", `After weighing cooperation I choose {"tokens": 5} this round.`, 5},
		{"extra fields", `{"reasoning": "free ride", "tokens": 0}`, 0},
		{"clamped above endowment", `{"tokens": 99}`, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, tc.reply)
			defer srv.Close()

			p := NewModelProvider(srv.URL, "test-key", "gpt-4o-mini", nil)
			tokens, err := p.Decide(context.Background(), testGame(), testPlayer("gpt-4o-mini"), 2, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, tokens)
		})
	}
}

func TestModelProviderRejectsUnparseableReply(t *testing.T) {
	t.Parallel()

	srv := chatServer(t, "I will invest a moderate amount this round.")
	defer srv.Close()

	p := NewModelProvider(srv.URL, "test-key", "gpt-4o-mini", nil)
	_, err := p.Decide(context.Background(), testGame(), testPlayer("gpt-4o-mini"), 2, nil)
	assert.Error(t, err)
}

func TestModelProviderSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewModelProvider(srv.URL, "test-key", "gpt-4o-mini", nil)
	_, err := p.Decide(context.Background(), testGame(), testPlayer("gpt-4o-mini"), 0, nil)
	assert.Error(t, err)
}

type erroringProvider struct{}

func (erroringProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	return 0, errors.New("model unavailable")
}

type stalledProvider struct{}

func (stalledProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type fixedProvider int

func (f fixedProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	return int(f), nil
}

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	f := NewFallbackProvider(fixedProvider(4), NewRandomProvider(nil), time.Second, nil)
	tokens, err := f.Decide(context.Background(), testGame(), testPlayer("gpt-4o-mini"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, tokens)
}

func TestFallbackOnPrimaryError(t *testing.T) {
	t.Parallel()

	game := testGame()
	f := NewFallbackProvider(erroringProvider{}, NewRandomProvider(rand.New(rand.NewSource(7))), time.Second, nil)
	tokens, err := f.Decide(context.Background(), game, testPlayer("gpt-4o-mini"), 3, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, tokens, 0)
	assert.LessOrEqual(t, tokens, game.Config.TokensPerRound)
}

func TestFallbackOnTimeout(t *testing.T) {
	t.Parallel()

	game := testGame()
	f := NewFallbackProvider(stalledProvider{}, NewRandomProvider(rand.New(rand.NewSource(7))), 50*time.Millisecond, nil)

	start := time.Now()
	tokens, err := f.Decide(context.Background(), game, testPlayer("gpt-4o-mini"), 3, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, tokens, 0)
	assert.LessOrEqual(t, tokens, game.Config.TokensPerRound)
}

func TestFallbackAbandonsOnParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	f := NewFallbackProvider(stalledProvider{}, NewRandomProvider(nil), time.Minute, nil)
	_, err := f.Decide(ctx, testGame(), testPlayer("gpt-4o-mini"), 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildInvestmentPromptMentionsHistory(t *testing.T) {
	t.Parallel()

	game := testGame()
	player := testPlayer("gpt-4o-mini")
	history := []comm.RoundSummary{
		{
			RoundNumber:   0,
			TotalInvested: 12,
			Moves: []comm.MoveSummary{
				{PlayerID: player.ID, TokensInvested: 3},
			},
		},
	}

	prompt := buildInvestmentPrompt(game, player, 1, history)
	assert.Contains(t, prompt, "round 2")
	assert.Contains(t, prompt, "you invested 3")
	assert.Contains(t, prompt, fmt.Sprintf(`{"tokens": N}`))
}
