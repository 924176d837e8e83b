// Package service wires the ingestion pipeline: raw text in, chunked
// and embedded index out.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finrag/internal/domain"
	"finrag/internal/index"
)

// embedConcurrency bounds in-flight embedding calls per ingestion; the
// provider-side rate limiter throttles further below this.
const embedConcurrency = 4

// IngestReport describes one completed ingestion.
type IngestReport struct {
	DocumentID string
	Key        domain.EntityKey
	ChunkCount int
	Dimension  int
	Persisted  bool
}

// Ingestor runs documents through cleaning, chunking, embedding and
// index construction.
type Ingestor struct {
	docs     domain.DocumentStore
	chunker  domain.Chunker
	embedder domain.Embedder
	store    *index.Store
	log      *zap.Logger
}

// NewIngestor assembles the pipeline.
func NewIngestor(docs domain.DocumentStore, chunker domain.Chunker, embedder domain.Embedder, store *index.Store, log *zap.Logger) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{docs: docs, chunker: chunker, embedder: embedder, store: store, log: log}
}

// IngestEntity pulls key's raw text from the document store and indexes
// it.
func (s *Ingestor) IngestEntity(ctx context.Context, key domain.EntityKey, mode index.Mode) (*IngestReport, error) {
	text, err := s.docs.GetRawText(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.IngestText(ctx, key, text, mode)
}

// IngestText indexes raw text under key. With index.ModeReplace a prior
// index for the key is superseded; with index.ModeAppend the new chunks
// extend it. A report with Persisted=false and a nil error never
// occurs: persistence failures surface as domain.ErrPersistence
// alongside the report for the still-valid in-memory index.
func (s *Ingestor) IngestText(ctx context.Context, key domain.EntityKey, text string, mode index.Mode) (*IngestReport, error) {
	if key.IsZero() {
		return nil, fmt.Errorf("%w: empty entity key", domain.ErrInvalidArgument)
	}
	docID := uuid.NewString()
	cleaned := CleanText(text)

	chunks, err := s.chunker.Split(cleaned)
	if err != nil {
		return nil, err
	}
	s.log.Info("document chunked",
		zap.String("entity", key.String()),
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunks)))

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{
		DocumentID: docID,
		Key:        key,
		ChunkCount: len(chunks),
		Dimension:  len(vectors[0]),
	}
	ix, err := s.store.Build(ctx, key, chunks, vectors, mode, s.embedder.Model())
	if err != nil {
		if ix != nil && errors.Is(err, domain.ErrPersistence) {
			report.ChunkCount = ix.ChunkCount()
			return report, err
		}
		return nil, err
	}
	report.ChunkCount = ix.ChunkCount()
	report.Persisted = true
	return report, nil
}

// embedChunks embeds every chunk, preserving chunk order regardless of
// completion order.
func (s *Ingestor) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float64, error) {
	vectors := make([][]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", chunks[i].Position, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nulRe        = regexp.MustCompile(`\x00`)
)

// CleanText collapses whitespace runs and strips NUL bytes left behind
// by upstream text extraction.
func CleanText(text string) string {
	text = nulRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
