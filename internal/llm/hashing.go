package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"finrag/internal/domain"
)

// HashingEmbedder is a deterministic offline embedder: term frequencies
// hashed into a fixed-dimension vector, stopwords filtered, L2
// normalized. It needs no network and no corpus preparation, which makes
// retrieval ordering reproducible in tests and air-gapped setups. It is
// far weaker semantically than a learned embedding model.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashingEmbedder creates an embedder with the given fixed dimension.
func NewHashingEmbedder(dimension int) (*HashingEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: hashing embedder dimension must be positive, got %d", domain.ErrConfiguration, dimension)
	}
	return &HashingEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}, nil
}

func (e *HashingEmbedder) Model() string { return "hashing" }

func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed maps text to a fixed-dimension term-frequency vector. The same
// text always produces the same vector.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		if _, isStop := e.stopwords[tok]; isStop {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		idx := int(h.Sum32()) % e.dimension
		if idx < 0 {
			idx += e.dimension
		}
		// Signed hashing reduces collision bias.
		if h.Sum32()&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of",
		"in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been",
		"being", "it", "this", "that", "these", "those", "from", "up", "down", "over",
		"under", "again", "further", "than", "so", "such", "into", "about", "between",
		"through", "during", "before", "after", "above", "below", "out", "off", "own",
		"same", "too", "very", "can", "will", "just", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
