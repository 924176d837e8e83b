package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"finrag/internal/domain"
)

// Persister is the storage backend for built indices. Save replaces any
// prior persisted state for the index's key. Load and LoadMeta return
// domain.ErrNotFound for unknown keys and wrap other failures in
// domain.ErrPersistence.
type Persister interface {
	Save(ctx context.Context, ix *VectorIndex) error
	Load(ctx context.Context, key domain.EntityKey) (*VectorIndex, error)
	LoadMeta(ctx context.Context, key domain.EntityKey) (*Meta, error)
	Delete(ctx context.Context, key domain.EntityKey) error
}

// Store owns the resident index cache and coordinates builds, loads and
// persistence. Residency is bounded by an LRU keyed by entity key;
// eviction never touches the persisted copy, and an evicted index is
// transparently reloaded on the next query.
//
// Builds serialize on one mutex, so a concurrent append never loses the
// result of another build: each append extends whatever build committed
// before it. Concurrent replace builds land in lock order, so the last
// writer wins. Reads are lock-free against the immutable indices.
type Store struct {
	buildMu  sync.Mutex
	resident *lru.Cache[string, *VectorIndex]
	persist  Persister
	now      func() time.Time
	log      *zap.Logger
}

// NewStore creates a store holding at most capacity resident indices.
func NewStore(capacity int, persist Persister, log *zap.Logger) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: resident index capacity must be positive, got %d", domain.ErrConfiguration, capacity)
	}
	if log == nil {
		log = zap.NewNop()
	}
	cache, err := lru.New[string, *VectorIndex](capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return &Store{resident: cache, persist: persist, now: time.Now, log: log}, nil
}

// Build pairs chunks with vectors under key and installs the resulting
// index atomically. With ModeReplace any prior index for the key is
// discarded; with ModeAppend the pairs are appended to the existing
// index, whose dimension the new vectors must match (on mismatch the
// existing index is left untouched).
//
// A successful build whose persistence fails returns the valid resident
// index together with an error wrapping domain.ErrPersistence.
func (s *Store) Build(ctx context.Context, key domain.EntityKey, chunks []domain.Chunk, vectors [][]float64, mode Mode, embeddingModel string) (*VectorIndex, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if key.IsZero() {
		return nil, fmt.Errorf("%w: empty entity key", domain.ErrInvalidArgument)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: cannot build an index with zero chunks", domain.ErrInvalidArgument)
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrInvalidArgument, len(chunks), len(vectors))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimension vector", domain.ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	// Every stored vector carries unambiguous provenance.
	tagged := make([]domain.Chunk, len(chunks))
	copy(tagged, chunks)
	for i := range tagged {
		tagged[i].Key = key
	}
	pairedVectors := make([][]float64, len(vectors))
	copy(pairedVectors, vectors)

	if mode == ModeAppend {
		cur, err := s.Load(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Nothing to extend; append degenerates to a fresh build.
		case err != nil:
			return nil, err
		default:
			if cur.Dimension() != dim {
				return nil, fmt.Errorf("%w: index %s has dimension %d, new vectors have %d",
					domain.ErrDimensionMismatch, key, cur.Dimension(), dim)
			}
			combinedChunks := make([]domain.Chunk, 0, cur.ChunkCount()+len(tagged))
			combinedVectors := make([][]float64, 0, cur.ChunkCount()+len(pairedVectors))
			for i := 0; i < cur.ChunkCount(); i++ {
				combinedChunks = append(combinedChunks, cur.Chunk(i))
				combinedVectors = append(combinedVectors, cur.Vector(i))
			}
			for i := range tagged {
				tagged[i].Position = cur.ChunkCount() + i
			}
			tagged = append(combinedChunks, tagged...)
			pairedVectors = append(combinedVectors, pairedVectors...)
		}
	}

	ix := newVectorIndex(Meta{
		Key:            key,
		CreatedAt:      s.now().UTC(),
		Dimension:      dim,
		EmbeddingModel: embeddingModel,
	}, tagged, pairedVectors)

	s.resident.Add(key.String(), ix)
	s.log.Info("index built",
		zap.String("entity", key.String()),
		zap.String("mode", mode.String()),
		zap.Int("chunks", ix.ChunkCount()),
		zap.Int("dimension", dim))

	if s.persist != nil {
		if err := s.persist.Save(ctx, ix); err != nil {
			s.log.Error("index persistence failed", zap.String("entity", key.String()), zap.Error(err))
			return ix, fmt.Errorf("%w: save index %s: %v", domain.ErrPersistence, key, err)
		}
	}
	return ix, nil
}

// Load returns the index for key, reloading it from persistence when it
// is not memory-resident. Returns domain.ErrNotFound when the key has
// never been built.
func (s *Store) Load(ctx context.Context, key domain.EntityKey) (*VectorIndex, error) {
	if ix, ok := s.resident.Get(key.String()); ok {
		return ix, nil
	}
	if s.persist == nil {
		return nil, fmt.Errorf("%w: no index for %s", domain.ErrNotFound, key)
	}
	ix, err := s.persist.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	s.resident.Add(key.String(), ix)
	s.log.Debug("index reloaded from persistence", zap.String("entity", key.String()))
	return ix, nil
}

// Meta returns index metadata without forcing a full vector load for
// non-resident indices.
func (s *Store) Meta(ctx context.Context, key domain.EntityKey) (*Meta, error) {
	if ix, ok := s.resident.Get(key.String()); ok {
		m := ix.Meta()
		return &m, nil
	}
	if s.persist == nil {
		return nil, fmt.Errorf("%w: no index for %s", domain.ErrNotFound, key)
	}
	return s.persist.LoadMeta(ctx, key)
}

// Exists reports whether an index has been built for key.
func (s *Store) Exists(ctx context.Context, key domain.EntityKey) (bool, error) {
	_, err := s.Meta(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Evict drops the resident copy of key's index. The persisted copy is
// untouched.
func (s *Store) Evict(key domain.EntityKey) {
	s.resident.Remove(key.String())
}

// Resident returns the number of memory-resident indices.
func (s *Store) Resident() int { return s.resident.Len() }
