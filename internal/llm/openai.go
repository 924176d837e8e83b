package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"finrag/internal/domain"
)

// OpenAIConfig configures the OpenAI-compatible completion and
// embedding clients. BaseURL may point at any compatible server.
type OpenAIConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

func (cfg *OpenAIConfig) applyDefaults() error {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if os.Getenv(cfg.APIKeyEnv) == "" {
		return fmt.Errorf("%w: missing API key in env %s", domain.ErrConfiguration, cfg.APIKeyEnv)
	}
	return nil
}

// OpenAIClient implements domain.TextGenerator over the chat
// completions API.
type OpenAIClient struct {
	cfg     OpenAIConfig
	apiKey  string
	client  *http.Client
	breaker *Breaker
}

// NewOpenAIClient creates a completion client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &OpenAIClient{
		cfg:     cfg,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(BreakerConfig{Name: "openai-completions"}),
	}, nil
}

func (c *OpenAIClient) Model() string { return c.cfg.Model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
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
}

// Complete sends a single-turn completion and returns the response text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.breaker.Execute(ctx, func() (any, error) {
		return c.complete(ctx, prompt)
	})
	if err != nil {
		return "", classifyErr("openai completion", err)
	}
	return out.(string), nil
}

func (c *OpenAIClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai completions: %s", resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return parsed.Choices[0].Message.Content, nil
}

// OpenAIEmbedder implements domain.Embedder over the embeddings API.
// Requests are throttled proactively so corpus-sized ingestion does not
// trip provider rate limits; there is no reactive retry here.
type OpenAIEmbedder struct {
	cfg       OpenAIConfig
	apiKey    string
	client    *http.Client
	breaker   *Breaker
	limiter   *rate.Limiter
	dimension atomic.Int64
}

// NewOpenAIEmbedder creates an embedding client. ratePerSec bounds the
// request rate; zero disables throttling.
func NewOpenAIEmbedder(cfg OpenAIConfig, ratePerSec float64) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &OpenAIEmbedder{
		cfg:     cfg,
		apiKey:  os.Getenv(cfg.APIKeyEnv),
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(BreakerConfig{Name: "openai-embeddings"}),
		limiter: limiter,
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.cfg.Model }

// Dimension reports the vector dimensionality, learned from the first
// successful embedding. Zero before any call.
func (e *OpenAIEmbedder) Dimension() int { return int(e.dimension.Load()) }

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, classifyErr("openai embedding", err)
	}
	out, err := e.breaker.Execute(ctx, func() (any, error) {
		return e.embed(ctx, text)
	})
	if err != nil {
		return nil, classifyErr("openai embedding", err)
	}
	vec := out.([]float64)
	e.dimension.CompareAndSwap(0, int64(len(vec)))
	return vec, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embeddings: %s", resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return parsed.Data[0].Embedding, nil
}

// classifyErr maps provider transport failures onto the engine's error
// taxonomy. Deadline overruns become ErrTimeout so callers can discard
// partial work uniformly.
func classifyErr(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%s: %w", op, domain.ErrTimeout)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}
