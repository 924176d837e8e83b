package chunker

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finrag/internal/domain"
)

// Tokenizer converts text to model tokens and back. The production
// implementation wraps tiktoken; tests substitute deterministic fakes.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// TokenChunker splits text into token-bounded chunks with overlap.
// When the tokenizer fails it degrades to approximate character-window
// chunking, which is logged and may split mid-token.
type TokenChunker struct {
	chunkSize        int
	overlap          int
	avgCharsPerToken int
	tok              Tokenizer
	log              *zap.Logger
}

// DefaultAvgCharsPerToken approximates English subword tokenization and
// sizes the character window in degraded mode.
const DefaultAvgCharsPerToken = 4

// New creates a token chunker. overlap must be smaller than chunkSize.
// tok may be nil, in which case every Split runs in character fallback.
func New(chunkSize, overlap int, tok Tokenizer, log *zap.Logger) (*TokenChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)", domain.ErrConfiguration, overlap, chunkSize)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenChunker{
		chunkSize:        chunkSize,
		overlap:          overlap,
		avgCharsPerToken: DefaultAvgCharsPerToken,
		tok:              tok,
		log:              log,
	}, nil
}

// Split produces the ordered chunk sequence for text. Chunks are
// non-empty, token counts never exceed the configured chunk size, and
// consecutive chunks share the configured overlap. The same text and
// configuration always yield the same chunks.
func (c *TokenChunker) Split(text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidArgument)
	}
	if c.tok == nil {
		c.log.Warn("tokenizer unavailable, using character chunking (degraded)")
		return c.splitByCharacters(text)
	}
	tokens, err := c.tok.Encode(text)
	if err != nil {
		c.log.Warn("tokenization failed, using character chunking (degraded)", zap.Error(err))
		return c.splitByCharacters(text)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: text produced no tokens", domain.ErrInvalidArgument)
	}

	stride := c.chunkSize - c.overlap
	var chunks []domain.Chunk
	for start, pos := 0, 0; start < len(tokens); start, pos = start+stride, pos+1 {
		end := start + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		piece, err := c.tok.Decode(tokens[start:end])
		if err != nil {
			return nil, fmt.Errorf("decode chunk at token %d: %w", start, err)
		}
		chunks = append(chunks, domain.Chunk{
			Text:       piece,
			TokenCount: end - start,
			Position:   pos,
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}

// splitByCharacters approximates token windows with character windows of
// chunkSize * avgCharsPerToken runes. Boundaries may fall mid-token; the
// reported token counts are estimates.
func (c *TokenChunker) splitByCharacters(text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	window := c.chunkSize * c.avgCharsPerToken
	overlap := c.overlap * c.avgCharsPerToken
	stride := window - overlap

	var chunks []domain.Chunk
	for start, pos := 0, 0; start < len(runes); start, pos = start+stride, pos+1 {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		chunks = append(chunks, domain.Chunk{
			Text:       piece,
			TokenCount: estimateTokens(piece, c.avgCharsPerToken),
			Position:   pos,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

func estimateTokens(text string, avgCharsPerToken int) int {
	n := (len([]rune(text)) + avgCharsPerToken - 1) / avgCharsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateTokens approximates the token count of text without a
// tokenizer, for provider context budgeting.
func EstimateTokens(text string) int {
	return estimateTokens(text, DefaultAvgCharsPerToken)
}
