package embed

import (
	"context"
	"log/slog"

	"github.com/docsift/docsift/internal/config"
	sifterrors "github.com/docsift/docsift/internal/errors"
)

// Provider names accepted in configuration.
const (
	ProviderStatic = "static"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// New creates an embedder from configuration, wrapped in an LRU cache.
//
// An empty provider auto-detects: Ollama when reachable, otherwise the
// static hash embedder. Named providers fail hard when unavailable so
// a configured setup never silently degrades.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	inner, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	slog.Debug("embedder_created",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderStatic:
		return NewStaticEmbedder(), nil

	case ProviderOllama:
		return NewOllamaEmbedder(ctx, ollamaConfig(cfg))

	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})

	case "":
		// Auto-detect: prefer a local Ollama, fall back to static
		if ollama, err := NewOllamaEmbedder(ctx, ollamaConfig(cfg)); err == nil {
			return ollama, nil
		}
		slog.Debug("embedder_autodetect", slog.String("fallback", ProviderStatic))
		return NewStaticEmbedder(), nil

	default:
		return nil, sifterrors.ConfigError("unknown embeddings provider: "+cfg.Provider, nil).
			WithSuggestion("use one of: static, ollama, openai")
	}
}

func ollamaConfig(cfg config.EmbeddingsConfig) OllamaConfig {
	oc := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		oc.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	if cfg.Dimensions > 0 {
		oc.Dimensions = cfg.Dimensions
	}
	if cfg.BatchSize > 0 {
		oc.BatchSize = cfg.BatchSize
	}
	return oc
}
