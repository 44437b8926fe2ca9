// Package store provides the persistence layer for indexed passages:
// the passage store (SQLite), the lexical index (Bleve BM25), and the
// dense vector index (HNSW).
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// State keys for the passage store's key-value state table.
const (
	// StateKeyFingerprint stores the running content fingerprint of the store.
	StateKeyFingerprint = "store_fingerprint"
	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
)

// Passage represents one retrievable unit of text from a source document.
type Passage struct {
	ID        string    // Content-derived identifier, stable across re-ingestion
	Text      string    // Passage text
	Source    string    // Originating document (path or name)
	Page      int       // 1-indexed page number, 0 if unknown
	CreatedAt time.Time // When first ingested
}

// ContentFingerprint returns a short digest of the passage text with
// whitespace collapsed. Used as the content component of the dedup key
// (source, page, fingerprint).
func (p *Passage) ContentFingerprint() string {
	normalized := strings.Join(strings.Fields(p.Text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// DedupKey returns the composite identity used to collapse duplicates
// across recall signals.
func (p *Passage) DedupKey() string {
	return fmt.Sprintf("%s|%d|%s", p.Source, p.Page, p.ContentFingerprint())
}

// PassageStore persists passages and exposes them in insertion order.
type PassageStore interface {
	// Add appends passages, ignoring IDs already present.
	// Returns the passages that were actually inserted.
	Add(ctx context.Context, passages []*Passage) ([]*Passage, error)

	// Get returns a passage by ID, or nil if absent.
	Get(ctx context.Context, id string) (*Passage, error)

	// GetBatch returns passages for the given IDs in the requested order,
	// skipping IDs that are absent.
	GetBatch(ctx context.Context, ids []string) ([]*Passage, error)

	// All returns every passage in insertion order.
	All(ctx context.Context) ([]*Passage, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)

	// Fingerprint returns the running content digest of the store.
	// It changes whenever a passage is inserted, so staleness checks
	// catch same-count content changes too.
	Fingerprint(ctx context.Context) (string, error)

	// State operations (key-value store for index metadata)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// DenseResult represents a single dense (vector) recall hit.
type DenseResult struct {
	ID    string  // Passage ID
	Score float64 // Inner product over unit vectors, higher is better
}

// LexicalResult represents a single lexical (BM25) recall hit.
type LexicalResult struct {
	ID           string  // Passage ID
	Score        float64 // BM25 score, strictly positive
	MatchedTerms []string
}

// VectorIndexConfig configures the dense vector index.
type VectorIndexConfig struct {
	// Dimensions is the embedding vector dimension.
	Dimensions int

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the vector index.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates a vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// DefaultStopWords contains common English words excluded from lexical
// matching. A query consisting only of stop words matches nothing.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then",
	"of", "to", "in", "on", "at", "by", "for", "with", "about", "as",
	"is", "are", "was", "were", "be", "been", "being",
	"it", "its", "this", "that", "these", "those",
	"from", "which", "who", "what", "will", "would",
	"can", "could", "should", "do", "does", "did",
	"not", "no", "so", "than", "too", "very",
	"has", "have", "had", "into", "over", "under",
	"here", "there", "all", "any", "both", "each", "some", "such",
}
