// Package docstore provides the raw document collaborator. The engine
// receives plain text from here and never parses file formats itself;
// PDF/HTML extraction happens upstream of this directory.
package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finrag/internal/domain"
)

// FS serves raw document text from a directory laid out as one
// TICKER_TYPE_YEAR.txt file per entity key.
type FS struct {
	root string
}

// NewFS creates a store rooted at dir.
func NewFS(dir string) *FS {
	return &FS{root: dir}
}

// Path returns where key's raw text lives.
func (s *FS) Path(key domain.EntityKey) string {
	return filepath.Join(s.root, key.String()+".txt")
}

// GetRawText reads the document owned by key. Missing files map to
// domain.ErrNotFound.
func (s *FS) GetRawText(_ context.Context, key domain.EntityKey) (string, error) {
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: no document for %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("read document for %s: %w", key, err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document for %s is empty", domain.ErrNotFound, key)
	}
	return text, nil
}

// Put writes raw text for key, creating the root directory as needed.
// Re-ingestion under the same key supersedes the previous document.
func (s *FS) Put(_ context.Context, key domain.EntityKey, text string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create document root: %w", err)
	}
	return os.WriteFile(s.Path(key), []byte(text), 0o644)
}
