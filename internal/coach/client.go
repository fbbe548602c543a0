// Package coach talks to the external text-generation collaborator that
// turns a numeric status snapshot into human commentary. The engine never
// depends on these calls succeeding; callers treat every error here as
// non-fatal.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/skrivenk/runcoach/internal/domain"
)

// ErrDisabled is returned when no coach collaborator is configured.
var ErrDisabled = errors.New("coach collaborator disabled")

// Request carries the snapshot numerics and plan metadata the collaborator
// sees. No workout history leaves the engine.
type Request struct {
	PlanName        string          `json:"plan_name"`
	GoalType        domain.GoalType `json:"goal_type"`
	WeekNumber      int             `json:"week_number"`
	Attainability   float64         `json:"attainability"`
	StatusLabel     string          `json:"status_label"`
	ActualWeeklyKm  float64         `json:"actual_weekly_km"`
	TargetWeeklyKm  float64         `json:"target_weekly_km"`
	ActualLoad      float64         `json:"actual_load"`
	TargetLoad      float64         `json:"target_load"`
}

// Commentary is the free text the collaborator produced.
type Commentary struct {
	Notes           string `json:"notes"`
	Recommendations string `json:"recommendations"`
}

// Usage reports token consumption of a single call for the metering log.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Client produces coaching commentary for a snapshot.
type Client interface {
	Commentary(ctx context.Context, req Request) (Commentary, Usage, error)
}

// Disabled is a Client that always reports ErrDisabled.
type Disabled struct{}

func (Disabled) Commentary(ctx context.Context, req Request) (Commentary, Usage, error) {
	return Commentary{}, Usage{}, ErrDisabled
}

// Rough per-1M-token pricing used for cost estimates in the usage log.
var modelPricing = map[string]struct{ input, output float64 }{
	"gpt-4o-mini":  {input: 0.15, output: 0.60},
	"gpt-4.1-mini": {input: 0.30, output: 1.20},
}

func estimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := modelPricing[strings.ToLower(model)]
	if !ok {
		return 0
	}
	return (float64(promptTokens)*p.input + float64(completionTokens)*p.output) / 1_000_000
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a coach client. baseURL defaults to the public
// OpenAI endpoint when empty.
func NewOpenAIClient(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
	}
}

const systemPrompt = "You are an experienced running coach. Given a numeric " +
	"training status report, reply with STRICT JSON containing two string " +
	"keys: notes (2-3 sentences on how the week went) and recommendations " +
	"(1-2 concrete, gentle suggestions). Prefer encouraging, practical advice."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Commentary sends the snapshot numerics and parses the strict-JSON reply.
func (c *OpenAIClient) Commentary(ctx context.Context, req Request) (Commentary, Usage, error) {
	userPayload, err := json.Marshal(req)
	if err != nil {
		return Commentary{}, Usage{}, err
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userPayload)},
		},
	}
	body.ResponseFormat.Type = "json_object"

	buf, err := json.Marshal(body)
	if err != nil {
		return Commentary{}, Usage{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return Commentary{}, Usage{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Commentary{}, Usage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Commentary{}, Usage{}, fmt.Errorf("coach collaborator returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Commentary{}, Usage{}, err
	}
	if len(parsed.Choices) == 0 {
		return Commentary{}, Usage{}, errors.New("coach collaborator returned no choices")
	}

	var commentary Commentary
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &commentary); err != nil {
		return Commentary{}, Usage{}, fmt.Errorf("parse commentary: %w", err)
	}

	usage := Usage{
		Model:            c.model,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}
	usage.CostUSD = estimateCost(c.model, usage.PromptTokens, usage.CompletionTokens)
	return commentary, usage, nil
}
