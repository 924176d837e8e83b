// Package answer composes retrieval with one LLM completion into a
// cited natural-language answer. The prompt context is bounded by a
// token budget; the reported sources are exactly the chunks that made
// it into the prompt.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/retriever"
)

const qaPrompt = `You are a financial analyst assistant. Answer the question based only on the provided context from financial documents.

Context:
%s

Question: %s

Provide a clear, concise answer based solely on the context. If the answer is not in the context, say "I cannot find this information in the provided documents."`

// Answer is a grounded response with exact source attribution.
type Answer struct {
	Text    string
	Sources []domain.ChunkRef
}

// Answerer answers questions about one entity from its indexed chunks.
type Answerer struct {
	retr              *retriever.Retriever
	gen               domain.TextGenerator
	topK              int
	contextTokenLimit int
	log               *zap.Logger
}

// New creates an answerer. contextTokenLimit bounds the concatenated
// chunk context sent to the provider.
func New(retr *retriever.Retriever, gen domain.TextGenerator, topK, contextTokenLimit int, log *zap.Logger) (*Answerer, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfiguration, topK)
	}
	if contextTokenLimit <= 0 {
		return nil, fmt.Errorf("%w: context token limit must be positive, got %d", domain.ErrConfiguration, contextTokenLimit)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Answerer{retr: retr, gen: gen, topK: topK, contextTokenLimit: contextTokenLimit, log: log}, nil
}

// Ask retrieves the chunks most relevant to question, assembles a
// token-budgeted context dropping the lowest-ranked chunks first, and
// issues one completion. An entity with no built index fails with
// domain.ErrNotFound before any provider call.
func (a *Answerer) Ask(ctx context.Context, key domain.EntityKey, question string) (*Answer, error) {
	res, err := a.retr.Query(ctx, key, question, a.topK)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	var sources []domain.ChunkRef
	budget := a.contextTokenLimit
	for _, sc := range res.Chunks {
		if sc.Chunk.TokenCount > budget {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(sc.Chunk.Text)
		sources = append(sources, sc.Chunk.Ref())
		budget -= sc.Chunk.TokenCount
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no retrieved chunk fits the %d-token context budget", domain.ErrInvalidArgument, a.contextTokenLimit)
	}
	if len(sources) < len(res.Chunks) {
		a.log.Debug("context truncated",
			zap.String("entity", key.String()),
			zap.Int("included", len(sources)),
			zap.Int("retrieved", len(res.Chunks)))
	}

	out, err := a.gen.Complete(ctx, fmt.Sprintf(qaPrompt, b.String(), question))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: strings.TrimSpace(out), Sources: sources}, nil
}
