// Package sqlite persists vector indices in a single local SQLite
// database: one metadata row and one chunk row per (entity, position).
// Metadata is readable without touching the vector blobs, so existence
// checks never deserialize embeddings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"finrag/internal/domain"
	"finrag/internal/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_meta (
	entity_key      TEXT PRIMARY KEY,
	ticker          TEXT NOT NULL,
	filing_type     TEXT NOT NULL,
	year            INTEGER NOT NULL,
	created_at      TEXT NOT NULL,
	chunk_count     INTEGER NOT NULL,
	dimension       INTEGER NOT NULL,
	embedding_model TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_chunks (
	entity_key  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	source_page INTEGER NOT NULL DEFAULT 0,
	vector      BLOB NOT NULL,
	PRIMARY KEY (entity_key, position)
);
`

// Persister implements index.Persister on a local SQLite file.
type Persister struct {
	db *sql.DB
}

// NewPersister opens (creating if needed) the database at path and
// ensures the schema exists.
func NewPersister(path string) (*Persister, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create index directory: %v", domain.ErrPersistence, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open index database: %v", domain.ErrPersistence, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create index schema: %v", domain.ErrPersistence, err)
	}
	return &Persister{db: db}, nil
}

// Close releases the underlying database handle.
func (p *Persister) Close() error { return p.db.Close() }

// Save writes ix, replacing any previously persisted index for its key.
// The delete and insert run in one transaction so readers never see a
// partially written index.
func (p *Persister) Save(ctx context.Context, ix *index.VectorIndex) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	key := ix.Key()
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_chunks WHERE entity_key = ?`, key.String()); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta WHERE entity_key = ?`, key.String()); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}

	meta := ix.Meta()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (entity_key, ticker, filing_type, year, created_at, chunk_count, dimension, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.String(), key.Ticker, key.FilingType, key.Year,
		meta.CreatedAt.Format(time.RFC3339Nano), meta.ChunkCount, meta.Dimension, meta.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("insert metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_chunks (entity_key, position, text, token_count, source_page, vector)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < ix.ChunkCount(); i++ {
		ch := ix.Chunk(i)
		blob := serializeVector(ix.Vector(i))
		if _, err := stmt.ExecContext(ctx, key.String(), ch.Position, ch.Text, ch.TokenCount, ch.SourcePage, blob); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.Position, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads the full index for key, vectors included.
func (p *Persister) Load(ctx context.Context, key domain.EntityKey) (*index.VectorIndex, error) {
	meta, err := p.LoadMeta(ctx, key)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT position, text, token_count, source_page, vector
		FROM index_chunks WHERE entity_key = ? ORDER BY position ASC`, key.String())
	if err != nil {
		return nil, fmt.Errorf("%w: read chunks for %s: %v", domain.ErrPersistence, key, err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var vectors [][]float64
	for rows.Next() {
		var ch domain.Chunk
		var blob []byte
		if err := rows.Scan(&ch.Position, &ch.Text, &ch.TokenCount, &ch.SourcePage, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan chunk for %s: %v", domain.ErrPersistence, key, err)
		}
		ch.Key = key
		vec, err := deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: decode vector for %s#%d: %v", domain.ErrPersistence, key, ch.Position, err)
		}
		chunks = append(chunks, ch)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks for %s: %v", domain.ErrPersistence, key, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: index %s has metadata but no chunks", domain.ErrPersistence, key)
	}
	return index.Restore(*meta, chunks, vectors), nil
}

// LoadMeta reads only the metadata row for key.
func (p *Persister) LoadMeta(ctx context.Context, key domain.EntityKey) (*index.Meta, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT created_at, chunk_count, dimension, embedding_model
		FROM index_meta WHERE entity_key = ?`, key.String())

	var createdAt string
	meta := index.Meta{Key: key}
	err := row.Scan(&createdAt, &meta.ChunkCount, &meta.Dimension, &meta.EmbeddingModel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no index for %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata for %s: %v", domain.ErrPersistence, key, err)
	}
	meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: parse created_at for %s: %v", domain.ErrPersistence, key, err)
	}
	return &meta, nil
}

// Delete removes the persisted index for key. Deleting an absent key is
// not an error.
func (p *Persister) Delete(ctx context.Context, key domain.EntityKey) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin delete for %s: %v", domain.ErrPersistence, key, err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_chunks WHERE entity_key = ?`, key.String()); err != nil {
		return fmt.Errorf("%w: delete chunks for %s: %v", domain.ErrPersistence, key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta WHERE entity_key = ?`, key.String()); err != nil {
		return fmt.Errorf("%w: delete metadata for %s: %v", domain.ErrPersistence, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete for %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}

// serializeVector encodes a vector as little-endian float64.
func serializeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func deserializeVector(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(blob))
	}
	vec := make([]float64, len(blob)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}
