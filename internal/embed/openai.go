package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	sifterrors "github.com/docsift/docsift/internal/errors"
)

// Default OpenAI-compatible settings.
const (
	// DefaultOpenAIModel is the default embedding model for the OpenAI provider
	DefaultOpenAIModel = "text-embedding-3-small"
)

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey authenticates against the API
	APIKey string

	// BaseURL overrides the API endpoint for compatible providers
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small)
	Model string

	// Dimensions requests a specific output dimension (0 = model default)
	Dimensions int

	// BatchSize for batch embedding requests (default: 32)
	BatchSize int
}

// OpenAIEmbedder generates embeddings through an OpenAI-compatible API.
// Works with any provider speaking the same embeddings endpoint when
// BaseURL is set.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	batchSize int

	mu     sync.RWMutex
	dims   int
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI-compatible embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, sifterrors.ConfigError("OpenAI API key is required", nil).
			WithSuggestion("set OPENAI_API_KEY or choose another embeddings provider")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     openai.EmbeddingModel(cfg.Model),
		batchSize: cfg.BatchSize,
		dims:      cfg.Dimensions,
	}, nil
}

// Embed generates embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, sifterrors.EmbeddingFailure("no embedding returned", nil)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// The API rejects empty inputs, so blank texts map to zero vectors
	// locally and the rest go over the wire.
	type indexedText struct {
		idx  int
		text string
	}
	var nonEmpty []indexedText
	results := make([][]float32, len(texts))

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.Dimensions())
		} else {
			nonEmpty = append(nonEmpty, indexedText{i, text})
		}
	}

	for start := 0; start < len(nonEmpty); start += e.batchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + e.batchSize
		if end > len(nonEmpty) {
			end = len(nonEmpty)
		}

		batch := nonEmpty[start:end]
		batchTexts := make([]string, len(batch))
		for i, it := range batch {
			batchTexts[i] = it.text
		}

		req := openai.EmbeddingRequest{
			Input:          batchTexts,
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		}
		e.mu.RLock()
		if e.dims > 0 {
			req.Dimensions = e.dims
		}
		e.mu.RUnlock()

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, sifterrors.EmbeddingFailure("openai embedding request failed", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, sifterrors.EmbeddingFailure(
				fmt.Sprintf("openai returned %d embeddings for %d texts", len(resp.Data), len(batch)), nil)
		}

		for i, data := range resp.Data {
			vec := normalizeVector(data.Embedding)
			results[batch[i].idx] = vec
		}
	}

	// Record the dimension observed on the first successful call
	e.mu.Lock()
	if e.dims == 0 {
		for _, r := range results {
			if len(r) > 0 {
				e.dims = len(r)
				break
			}
		}
	}
	e.mu.Unlock()

	// Backfill zero vectors now that the dimension is known
	for i, r := range results {
		if len(r) == 0 {
			results[i] = make([]float32, e.Dimensions())
		}
	}

	return results, nil
}

// Dimensions returns the embedding dimension (0 until first call when
// auto-detected).
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier
func (e *OpenAIEmbedder) ModelName() string {
	return string(e.model)
}

// Available checks API reachability via the models endpoint.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	_, err := e.client.ListModels(checkCtx)
	return err == nil
}

// Close releases resources
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
