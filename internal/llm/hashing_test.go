package llm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finrag/internal/domain"
)

func TestNewHashingEmbedderValidation(t *testing.T) {
	for _, dim := range []int{0, -8} {
		_, err := NewHashingEmbedder(dim)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
	}
}

func TestHashingEmbedderDeterministic(t *testing.T) {
	e, err := NewHashingEmbedder(64)
	require.NoError(t, err)
	ctx := context.Background()

	text := "Revenue grew twelve percent driven by services and wearables."
	a, err := e.Embed(ctx, text)
	require.NoError(t, err)
	b, err := e.Embed(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, e.Dimension())
}

func TestHashingEmbedderNormalized(t *testing.T) {
	e, err := NewHashingEmbedder(32)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "operating margin expanded on cost discipline")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestHashingEmbedderSimilarTextsScoreCloser(t *testing.T) {
	e, err := NewHashingEmbedder(256)
	require.NoError(t, err)
	ctx := context.Background()

	base, err := e.Embed(ctx, "revenue increased due to strong iphone sales")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "iphone sales drove the revenue increase")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "litigation regarding patent disputes continues in europe")
	require.NoError(t, err)

	dot := func(a, b []float64) float64 {
		var d float64
		for i := range a {
			d += a[i] * b[i]
		}
		return d
	}
	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestHashingEmbedderStopwordsOnly(t *testing.T) {
	e, err := NewHashingEmbedder(16)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "the and of to")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}
