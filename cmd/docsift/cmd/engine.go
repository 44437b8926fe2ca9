package cmd

import (
	"context"

	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/search"
)

// engine bundles everything a query-serving command needs.
type engine struct {
	coordinator *index.Coordinator
	pipeline    *search.Pipeline
	embedder    embed.Embedder
}

// openEngine builds the embedder, opens the index directory, and wires
// the search pipeline on top of it.
func openEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	embedder, err := embed.New(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	coordinator, err := index.Open(ctx, index.Config{
		DataDir:   cfg.Paths.DataDir,
		Embedder:  embedder,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	pipeline, err := search.NewPipeline(
		coordinator.Passages(),
		coordinator.Vector(),
		embedder,
		newScorer(cfg),
		searchOptions(cfg),
	)
	if err != nil {
		_ = coordinator.Close()
		_ = embedder.Close()
		return nil, err
	}

	return &engine{
		coordinator: coordinator,
		pipeline:    pipeline,
		embedder:    embedder,
	}, nil
}

func (e *engine) Close() {
	_ = e.pipeline.Close()
	_ = e.coordinator.Close()
	_ = e.embedder.Close()
}

// newScorer selects the pairwise relevance scorer from config.
func newScorer(cfg *config.Config) search.RelevanceScorer {
	if cfg.Reranker.Provider == "ollama" {
		host := cfg.Reranker.OllamaHost
		if host == "" {
			host = embed.DefaultOllamaHost
		}
		return search.NewOllamaScorer(host, cfg.Reranker.Model)
	}
	return &search.LexicalOverlapScorer{}
}

// searchOptions maps config onto pipeline defaults.
func searchOptions(cfg *config.Config) search.Options {
	opts := search.DefaultOptions()
	opts.K = cfg.Search.MaxResults
	opts.RecallK = cfg.Search.RecallK
	opts.LexicalK = cfg.Search.LexicalK
	opts.FusionWeight = cfg.Search.FusionWeight
	opts.RelevanceFloor = cfg.Search.RelevanceFloor
	opts.UseHybrid = cfg.UseHybrid()
	opts.QueryExpansion = cfg.Search.QueryExpansion
	return opts
}
