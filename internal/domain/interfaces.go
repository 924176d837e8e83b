package domain

import "context"

// Chunker splits raw document text into token-bounded overlapping chunks.
type Chunker interface {
	Split(text string) ([]Chunk, error)
}

// Embedder converts free text into a fixed-dimension numeric vector.
// Implementations must be deterministic for identical (text, model) pairs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
	Model() string
}

// TextGenerator is the external LLM completion collaborator.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// DocumentStore is the external raw document collaborator. The engine
// never parses file formats itself; the store hands back plain text.
type DocumentStore interface {
	GetRawText(ctx context.Context, key EntityKey) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
