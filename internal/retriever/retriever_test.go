package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/index"
)

// vectorEmbedder returns a fixed vector for every query, so tests
// control similarity exactly.
type vectorEmbedder struct {
	vec []float64
}

func (e vectorEmbedder) Embed(context.Context, string) ([]float64, error) { return e.vec, nil }
func (e vectorEmbedder) Dimension() int                                   { return len(e.vec) }
func (e vectorEmbedder) Model() string                                    { return "fixed" }

func buildStore(t *testing.T, key domain.EntityKey, texts []string, vectors [][]float64) *index.Store {
	t.Helper()
	store, err := index.NewStore(4, nil, zap.NewNop())
	require.NoError(t, err)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{Text: text, TokenCount: 4, Position: i}
	}
	_, err = store.Build(context.Background(), key, chunks, vectors, index.ModeReplace, "fixed")
	require.NoError(t, err)
	return store
}

func TestQueryRanksByCosine(t *testing.T) {
	key := domain.EntityKey{Ticker: "AAPL", FilingType: "10-K", Year: 2023}
	store := buildStore(t, key,
		[]string{"orthogonal", "aligned", "opposite", "diagonal"},
		[][]float64{
			{0, 1},  // cosine 0 against (1,0)
			{2, 0},  // cosine 1
			{-1, 0}, // cosine -1
			{1, 1},  // cosine ~0.707
		})
	r := New(store, vectorEmbedder{vec: []float64{1, 0}}, zap.NewNop())

	res, err := r.Query(context.Background(), key, "growth outlook", 4)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 4)
	assert.Equal(t, "aligned", res.Chunks[0].Chunk.Text)
	assert.Equal(t, "diagonal", res.Chunks[1].Chunk.Text)
	assert.Equal(t, "orthogonal", res.Chunks[2].Chunk.Text)
	assert.Equal(t, "opposite", res.Chunks[3].Chunk.Text)
	assert.Equal(t, key, res.Key)
	assert.Equal(t, "growth outlook", res.Query)
}

func TestQueryTiesBreakByPosition(t *testing.T) {
	key := domain.EntityKey{Ticker: "MSFT", FilingType: "10-K", Year: 2023}
	// Three identical vectors: all score the same.
	store := buildStore(t, key,
		[]string{"first", "second", "third"},
		[][]float64{{3, 4}, {3, 4}, {3, 4}})
	r := New(store, vectorEmbedder{vec: []float64{3, 4}}, zap.NewNop())

	res, err := r.Query(context.Background(), key, "q", 3)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 3)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, res.Chunks[i].Chunk.Text)
		assert.Equal(t, i, res.Chunks[i].Chunk.Position)
	}
}

func TestQueryClampsTopK(t *testing.T) {
	key := domain.EntityKey{Ticker: "NVDA", FilingType: "10-K", Year: 2024}
	store := buildStore(t, key,
		[]string{"a", "b"},
		[][]float64{{1, 0}, {0, 1}})
	r := New(store, vectorEmbedder{vec: []float64{1, 0}}, zap.NewNop())

	res, err := r.Query(context.Background(), key, "q", 50)
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 2)
}

func TestQueryInvalidTopK(t *testing.T) {
	key := domain.EntityKey{Ticker: "NVDA", FilingType: "10-K", Year: 2024}
	store := buildStore(t, key, []string{"a"}, [][]float64{{1, 0}})
	r := New(store, vectorEmbedder{vec: []float64{1, 0}}, zap.NewNop())

	for _, k := range []int{0, -3} {
		_, err := r.Query(context.Background(), key, "q", k)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	}
}

func TestQueryUnknownKey(t *testing.T) {
	store, err := index.NewStore(4, nil, zap.NewNop())
	require.NoError(t, err)
	r := New(store, vectorEmbedder{vec: []float64{1, 0}}, zap.NewNop())

	_, err = r.Query(context.Background(), domain.EntityKey{Ticker: "NONE", FilingType: "10-K", Year: 2020}, "q", 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueryDimensionMismatch(t *testing.T) {
	key := domain.EntityKey{Ticker: "AMZN", FilingType: "10-K", Year: 2022}
	store := buildStore(t, key, []string{"a"}, [][]float64{{1, 0}})
	r := New(store, vectorEmbedder{vec: []float64{1, 0, 0}}, zap.NewNop())

	_, err := r.Query(context.Background(), key, "q", 5)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestQueryStaysWithinEntity(t *testing.T) {
	a := domain.EntityKey{Ticker: "AAPL", FilingType: "10-K", Year: 2023}
	b := domain.EntityKey{Ticker: "AAPL", FilingType: "10-K", Year: 2024}
	store, err := index.NewStore(4, nil, zap.NewNop())
	require.NoError(t, err)

	build := func(key domain.EntityKey, text string) {
		_, err := store.Build(context.Background(), key,
			[]domain.Chunk{{Text: text, TokenCount: 2, Position: 0}},
			[][]float64{{1, 0}}, index.ModeReplace, "fixed")
		require.NoError(t, err)
	}
	build(a, "from 2023 filing")
	build(b, "from 2024 filing")

	r := New(store, vectorEmbedder{vec: []float64{1, 0}}, zap.NewNop())
	res, err := r.Query(context.Background(), a, "q", 10)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "from 2023 filing", res.Chunks[0].Chunk.Text)
	assert.Equal(t, a, res.Chunks[0].Chunk.Key)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, cosine([]float64{2, 0}, []float64{5, 0}), 1e-12)
	assert.InDelta(t, -1, cosine([]float64{1, 0}, []float64{-3, 0}), 1e-12)
	assert.InDelta(t, 0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Zero(t, cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, cosine([]float64{1, 1}, []float64{0, 0}))
}
