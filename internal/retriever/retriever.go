// Package retriever performs similarity search over one entity's vector
// index. Search never crosses entity keys: the query is answered from
// exactly the index owned by the requested key.
package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/index"
)

// Retriever embeds query text and ranks an entity's chunks by cosine
// similarity.
type Retriever struct {
	store    *index.Store
	embedder domain.Embedder
	log      *zap.Logger
}

// New creates a retriever over store using embedder for query vectors.
func New(store *index.Store, embedder domain.Embedder, log *zap.Logger) *Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, log: log}
}

// Query returns up to topK chunks of key's index ranked by descending
// cosine similarity to queryText, ties broken by ascending chunk
// position. topK beyond the index size is clamped; topK <= 0 is an
// error; a key with no built index is domain.ErrNotFound.
func (r *Retriever) Query(ctx context.Context, key domain.EntityKey, queryText string, topK int) (domain.RetrievalResult, error) {
	if topK <= 0 {
		return domain.RetrievalResult{}, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	ix, err := r.store.Load(ctx, key)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return domain.RetrievalResult{}, err
	}
	if len(vec) != ix.Dimension() {
		return domain.RetrievalResult{}, fmt.Errorf("%w: query vector has dimension %d, index %s has %d",
			domain.ErrDimensionMismatch, len(vec), key, ix.Dimension())
	}

	scored := make([]domain.ScoredChunk, ix.ChunkCount())
	for i := 0; i < ix.ChunkCount(); i++ {
		scored[i] = domain.ScoredChunk{
			Chunk: ix.Chunk(i),
			Score: cosine(vec, ix.Vector(i)),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Position < scored[j].Chunk.Position
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	r.log.Debug("retrieval complete",
		zap.String("entity", key.String()),
		zap.Int("top_k", topK),
		zap.Int("index_chunks", ix.ChunkCount()))

	return domain.RetrievalResult{Key: key, Query: queryText, Chunks: scored[:topK]}, nil
}

// cosine computes cosine similarity in [-1, 1]. A zero vector on either
// side scores 0.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
