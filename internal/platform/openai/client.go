package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

// Client is the thin chat-completion surface the stage services build on.
// Every call reports its dollar cost alongside the payload so pipelines can
// account for spend even when a stage produces nothing usable.
type Client interface {
	// GenerateJSON runs a JSON-mode completion and decodes the object.
	GenerateJSON(ctx context.Context, system, user string) (map[string]any, float64, error)
	// GenerateGroundedJSON is GenerateJSON with the web search tool enabled.
	GenerateGroundedJSON(ctx context.Context, system, user string) (map[string]any, float64, error)
	// GenerateText runs a plain completion and returns the raw text.
	GenerateText(ctx context.Context, system, user string) (string, float64, error)
}

type client struct {
	log         *logger.Logger
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	inPerTok    float64
	outPerTok   float64
	maxAttempts int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	inPrice, _ := strconv.ParseFloat(envutil.Str("OPENAI_INPUT_PRICE_PER_1M", "2.50"), 64)
	outPrice, _ := strconv.ParseFloat(envutil.Str("OPENAI_OUTPUT_PRICE_PER_1M", "10.00"), 64)
	return &client{
		log:         log.With("client", "OpenAIClient"),
		httpClient:  &http.Client{Timeout: 180 * time.Second},
		baseURL:     envutil.Str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		apiKey:      apiKey,
		model:       envutil.Str("OPENAI_MODEL", "gpt-4o"),
		inPerTok:    inPrice / 1_000_000,
		outPerTok:   outPrice / 1_000_000,
		maxAttempts: envutil.Int("OPENAI_MAX_ATTEMPTS", 3),
	}, nil
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	Tools          []map[string]any `json:"tools,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
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
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) GenerateJSON(ctx context.Context, system, user string) (map[string]any, float64, error) {
	return c.generateJSON(ctx, system, user, false)
}

func (c *client) GenerateGroundedJSON(ctx context.Context, system, user string) (map[string]any, float64, error) {
	return c.generateJSON(ctx, system, user, true)
}

func (c *client) generateJSON(ctx context.Context, system, user string, grounded bool) (map[string]any, float64, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	}
	if grounded {
		req.Tools = []map[string]any{{"type": "web_search"}}
	}
	text, cost, err := c.complete(ctx, req)
	if err != nil {
		return nil, cost, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, cost, fmt.Errorf("decode model JSON: %w", err)
	}
	return obj, cost, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, float64, error) {
	return c.complete(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
}

func (c *client) complete(ctx context.Context, req chatRequest) (string, float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", 0, err
	}

	var lastErr error
	totalCost := 0.0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		text, cost, retryable, err := c.completeOnce(ctx, body)
		totalCost += cost
		if err == nil {
			return text, totalCost, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		select {
		case <-ctx.Done():
			return "", totalCost, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return "", totalCost, lastErr
}

func (c *client) completeOnce(ctx context.Context, body []byte) (string, float64, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, false, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, true, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, true, fmt.Errorf("openai read body: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, false, fmt.Errorf("openai decode: %w", err)
	}
	cost := float64(out.Usage.PromptTokens)*c.inPerTok + float64(out.Usage.CompletionTokens)*c.outPerTok

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", cost, true, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if out.Error != nil {
		return "", cost, false, fmt.Errorf("openai: %s", out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", cost, false, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", cost, false, fmt.Errorf("openai: empty choices")
	}
	return out.Choices[0].Message.Content, cost, false, nil
}
