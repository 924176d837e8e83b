package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LLMConfig selects and configures the text completion provider.
type LLMConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	APIKeyEnv   string  `yaml:"api_key_env,omitempty"`
	Dimension   int     `yaml:"dimension,omitempty"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSizeTokens int    `yaml:"chunk_size_tokens"`
	OverlapTokens   int    `yaml:"overlap_tokens"`
	TokenizerModel  string `yaml:"tokenizer_model"`
}

// IndexConfig configures index persistence and memory residency.
type IndexConfig struct {
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

// RetrievalConfig configures similarity search and context assembly.
type RetrievalConfig struct {
	TopK              int `yaml:"top_k"`
	ContextTokenLimit int `yaml:"context_token_limit"`
}

// AgentConfig bounds the orchestrator loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// DocumentsConfig locates the raw document store.
type DocumentsConfig struct {
	Root string `yaml:"root"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Agent     AgentConfig     `yaml:"agent"`
	Documents DocumentsConfig `yaml:"documents"`
	LogLevel  string          `yaml:"log_level"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/finrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/finrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "finrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2000
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "openai"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.Provider == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 512
	}
	if cfg.Chunker.ChunkSizeTokens == 0 {
		cfg.Chunker.ChunkSizeTokens = 1000
	}
	if cfg.Chunker.OverlapTokens == 0 {
		cfg.Chunker.OverlapTokens = 200
	}
	if cfg.Chunker.TokenizerModel == "" {
		cfg.Chunker.TokenizerModel = "gpt-4o"
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = "./data/index.db"
	}
	if cfg.Index.CacheSize == 0 {
		cfg.Index.CacheSize = 8
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextTokenLimit == 0 {
		cfg.Retrieval.ContextTokenLimit = 6000
	}
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 8
	}
	if cfg.Documents.Root == "" {
		cfg.Documents.Root = "./data/filings"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
