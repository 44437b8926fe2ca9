// Package embed generates vector embeddings for passages and queries.
//
// Three providers are supported: a deterministic hash-based static
// embedder that works offline, an Ollama HTTP provider for local
// models, and an OpenAI-compatible provider for hosted APIs. All
// providers return unit-normalized vectors so cosine similarity
// reduces to an inner product downstream.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// MinBatchSize and MaxBatchSize bound the batch size a provider
	// accepts per request. The upper bound keeps a single ingest batch
	// from holding the whole corpus in flight.
	MinBatchSize = 1
	MaxBatchSize = 256

	// DefaultBatchSize is the batch size used when config leaves it unset.
	DefaultBatchSize = 32

	// DefaultTimeout is the per-request timeout for embedding calls.
	DefaultTimeout = 60 * time.Second

	// DefaultConnectTimeout bounds the initial availability check.
	DefaultConnectTimeout = 5 * time.Second
)

// StaticDimensions is the vector width of the hash-based static embedder.
const StaticDimensions = 256

// Embedder generates vector embeddings for passage and query text.
// Implementations must return unit-normalized vectors of a fixed width;
// providers that detect their width lazily report Dimensions() == 0
// until the first Embed call.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width, or 0 if not yet known.
	Dimensions() int

	// ModelName identifies the model. Indexes record it so a corpus is
	// never mixed across embedding spaces.
	ModelName() string

	// Available reports whether the provider can serve requests now.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector scales v to unit length. Zero vectors pass through
// unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
