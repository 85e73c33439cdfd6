package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/econlab/econ-services/internal/comm"
	"github.com/econlab/econ-services/internal/econsvc/archive"
	"github.com/econlab/econ-services/internal/econsvc/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Models answer in free text; the decision is the first {"tokens": N}
// object found in the reply.
var tokensPattern = regexp.MustCompile(`(?s)\{.*?"tokens"\s*:\s*(\d+).*?\}`)

// ModelProvider asks an OpenAI-compatible chat completion endpoint for a
// decision. The player's decision source names the model to use; errors and
// unparseable replies surface to the caller, which applies fallback policy.
type ModelProvider struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
	archive      *archive.Store
}

func NewModelProvider(baseURL, apiKey, defaultModel string, arch *archive.Store) *ModelProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ModelProvider{
		client:       &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		defaultModel: defaultModel,
		archive:      arch,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *ModelProvider) Decide(ctx context.Context, game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) (int, error) {
	model := player.DecisionSource
	if model == models.DecisionSourceHuman || model == models.DecisionSourceRandom || model == "" {
		model = p.defaultModel
	}

	prompt := buildInvestmentPrompt(game, player, roundNumber, history)
	reply, err := p.chat(ctx, model, prompt)
	if err != nil {
		return 0, err
	}

	match := tokensPattern.FindStringSubmatch(reply)
	if match == nil {
		return 0, fmt.Errorf("no tokens object in model reply")
	}
	tokens, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("parse tokens %q: %w", match[1], err)
	}

	// Clamp rather than reject: a model asking for more than the endowment
	// still made a directional choice.
	if tokens < 0 {
		tokens = 0
	}
	if tokens > game.Config.TokensPerRound {
		tokens = game.Config.TokensPerRound
	}

	p.archive.Save(ctx, archive.Record{
		GameID:      game.ID,
		PlayerID:    player.ID,
		RoundNumber: roundNumber,
		Model:       model,
		Prompt:      prompt,
		Response:    reply,
		Decision:    tokens,
	})

	return tokens, nil
}

func (p *ModelProvider) chat(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a participant in an economics experiment. Answer with a single JSON object."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func buildInvestmentPrompt(game *models.Game, player *models.Player, roundNumber int, history []comm.RoundSummary) string {
	cfg := game.Config
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, one of %d participants in a repeated public goods game lasting %d rounds.\n",
		player.Name, cfg.GroupSize, game.MaxRounds)
	fmt.Fprintf(&b, "Each round you receive %d tokens. You earn $%s per token kept, $%s per token you invest, and $%s for every token invested by anyone in the group, yourself included.\n",
		cfg.TokensPerRound, cfg.KeepValue.StringFixed(2), cfg.InvestValue.StringFixed(2), cfg.SocialValue.StringFixed(2))

	if len(history) > 0 {
		b.WriteString("\nResults so far:\n")
		for _, r := range history {
			var own int
			for _, m := range r.Moves {
				if m.PlayerID == player.ID {
					own = m.TokensInvested
				}
			}
			fmt.Fprintf(&b, "- round %d: you invested %d, the group invested %d in total\n",
				r.RoundNumber+1, own, r.TotalInvested)
		}
	}

	fmt.Fprintf(&b, "\nIt is now round %d. How many tokens do you invest? Reply with exactly one JSON object of the form {\"tokens\": N} where N is an integer between 0 and %d.\n",
		roundNumber+1, cfg.TokensPerRound)
	return b.String()
}
