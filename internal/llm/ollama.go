package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// OllamaConfig configures a local Ollama endpoint for completions and
// embeddings.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (cfg *OllamaConfig) applyDefaults() {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
}

// OllamaClient implements domain.TextGenerator and domain.Embedder
// against a local Ollama server.
type OllamaClient struct {
	cfg       OllamaConfig
	client    *http.Client
	breaker   *Breaker
	dimension atomic.Int64
}

// NewOllamaClient creates a client for the given endpoint and model.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	cfg.applyDefaults()
	return &OllamaClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: NewBreaker(BreakerConfig{Name: "ollama"}),
	}
}

func (c *OllamaClient) Model() string { return c.cfg.Model }

// Dimension reports the vector dimensionality, learned from the first
// successful embedding. Zero before any call.
func (c *OllamaClient) Dimension() int { return int(c.dimension.Load()) }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Complete sends a single-turn completion to /api/generate.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := c.breaker.Execute(ctx, func() (any, error) {
		var parsed ollamaGenerateResponse
		err := c.post(ctx, "/api/generate", ollamaGenerateRequest{
			Model:  c.cfg.Model,
			Prompt: prompt,
			Stream: false,
		}, &parsed)
		if err != nil {
			return nil, err
		}
		return parsed.Response, nil
	})
	if err != nil {
		return "", classifyErr("ollama completion", err)
	}
	return out.(string), nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed returns the embedding vector for text via /api/embed.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	out, err := c.breaker.Execute(ctx, func() (any, error) {
		var parsed ollamaEmbedResponse
		err := c.post(ctx, "/api/embed", ollamaEmbedRequest{Model: c.cfg.Model, Input: text}, &parsed)
		if err != nil {
			return nil, err
		}
		if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
			return nil, errors.New("no embedding returned")
		}
		return parsed.Embeddings[0], nil
	})
	if err != nil {
		return nil, classifyErr("ollama embedding", err)
	}
	vec := out.([]float64)
	c.dimension.CompareAndSwap(0, int64(len(vec)))
	return vec, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, reqBody, respBody any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama %s: %s", path, resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
