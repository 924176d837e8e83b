// Package index manages per-entity vector indices: copy-on-write
// construction, memory residency bounded by an LRU, and persistence
// through a pluggable backend. An index is owned by exactly one entity
// key and is immutable once built; rebuilds install a new index rather
// than mutating the resident one, so concurrent readers always observe
// either the fully-old or fully-new contents.
package index

import (
	"time"

	"finrag/internal/domain"
)

// Mode selects how Build treats a pre-existing index for the same key.
type Mode int

const (
	// ModeReplace discards any prior index for the key.
	ModeReplace Mode = iota
	// ModeAppend extends the existing index; the new vectors must match
	// its dimension.
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "replace"
}

// Meta carries the index metadata persisted alongside the vectors and
// readable without deserializing them.
type Meta struct {
	Key            domain.EntityKey
	CreatedAt      time.Time
	ChunkCount     int
	Dimension      int
	EmbeddingModel string
}

// VectorIndex is an immutable ordered set of (chunk, vector) pairs for
// one entity key.
type VectorIndex struct {
	meta    Meta
	chunks  []domain.Chunk
	vectors [][]float64
}

func newVectorIndex(meta Meta, chunks []domain.Chunk, vectors [][]float64) *VectorIndex {
	meta.ChunkCount = len(chunks)
	return &VectorIndex{meta: meta, chunks: chunks, vectors: vectors}
}

// Restore reconstructs an index from persisted parts. Intended for
// Persister implementations; chunks and vectors must already be in
// index order and dimension-consistent.
func Restore(meta Meta, chunks []domain.Chunk, vectors [][]float64) *VectorIndex {
	return newVectorIndex(meta, chunks, vectors)
}

// Meta returns the index metadata.
func (ix *VectorIndex) Meta() Meta { return ix.meta }

// Key returns the owning entity key.
func (ix *VectorIndex) Key() domain.EntityKey { return ix.meta.Key }

// Dimension returns the embedding dimensionality.
func (ix *VectorIndex) Dimension() int { return ix.meta.Dimension }

// ChunkCount returns the number of (chunk, vector) pairs.
func (ix *VectorIndex) ChunkCount() int { return len(ix.chunks) }

// Chunk returns the chunk at position i in index order.
func (ix *VectorIndex) Chunk(i int) domain.Chunk { return ix.chunks[i] }

// Vector returns the embedding vector paired with chunk i. Callers must
// not mutate it.
func (ix *VectorIndex) Vector(i int) []float64 { return ix.vectors[i] }
