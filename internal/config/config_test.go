package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSizeTokens)
	assert.Equal(t, 200, cfg.Chunker.OverlapTokens)
	assert.Equal(t, "./data/index.db", cfg.Index.Path)
	assert.Equal(t, 8, cfg.Index.CacheSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 6000, cfg.Retrieval.ContextTokenLimit)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, "./data/filings", cfg.Documents.Root)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadAppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: ollama
  model: llama3
retrieval:
  top_k: 12
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 12, cfg.Retrieval.TopK)
	// Omitted sections still get defaults.
	assert.Equal(t, 1000, cfg.Chunker.ChunkSizeTokens)
	assert.Equal(t, 6000, cfg.Retrieval.ContextTokenLimit)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not, a, mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := defaultConfig()
	cfg.Embedder.Provider = "hashing"
	cfg.Embedder.Dimension = 256
	cfg.LogLevel = "debug"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestHashingEmbedderDefaultDimension(t *testing.T) {
	cfg := &AppConfig{}
	cfg.Embedder.Provider = "hashing"
	applyConfigDefaults(cfg)
	assert.Equal(t, 512, cfg.Embedder.Dimension)
}
