package llm

import (
	"fmt"
	"time"

	"finrag/internal/config"
	"finrag/internal/domain"
)

// NewTextGenerator builds the completion provider selected by cfg.
func NewTextGenerator(cfg config.LLMConfig) (domain.TextGenerator, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		})
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}

// NewEmbedder builds the embedding provider selected by cfg.
func NewEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		}, cfg.RatePerSec)
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		}), nil
	case "hashing":
		return NewHashingEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedder provider %q", domain.ErrConfiguration, cfg.Provider)
	}
}
