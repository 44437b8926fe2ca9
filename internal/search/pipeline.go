package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/docsift/docsift/internal/embed"
	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Pipeline orchestrates one search: Recall → Fuse → Rerank →
// Threshold → Select. Queries may run concurrently; the lexical index
// is rebuilt lazily under a single-writer lock whenever the store
// fingerprint moves.
type Pipeline struct {
	passages store.PassageStore
	vector   *store.VectorIndex
	embedder embed.Embedder
	scorer   RelevanceScorer
	defaults Options

	mu       sync.Mutex
	lexical  *store.LexicalIndex
	expander *QueryExpander
}

// NewPipeline creates a search pipeline. All dependencies are required.
func NewPipeline(
	passages store.PassageStore,
	vector *store.VectorIndex,
	embedder embed.Embedder,
	scorer RelevanceScorer,
	defaults Options,
) (*Pipeline, error) {
	if passages == nil {
		return nil, fmt.Errorf("%w: passage store is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: relevance scorer is required", ErrNilDependency)
	}
	return &Pipeline{
		passages: passages,
		vector:   vector,
		embedder: embedder,
		scorer:   scorer,
		defaults: defaults,
	}, nil
}

// Search runs the full pipeline for one query.
//
// An empty corpus is an error before recall even starts, so callers
// can tell "nothing indexed" apart from NoEvidence. Stage failures
// propagate with their original kind; no partial results survive a
// failure, including a cancellation mid-rerank.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) (*Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, sifterrors.New(sifterrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if opts.FusionWeight < 0 || opts.FusionWeight > 1 {
		return nil, sifterrors.ValidationError(
			fmt.Sprintf("fusion weight %v outside [0,1]", opts.FusionWeight), nil)
	}
	opts = p.applyDefaults(opts)

	count, err := p.passages.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, sifterrors.IndexUnavailable("no passages indexed")
	}

	fingerprint, err := p.passages.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.refresh(ctx, fingerprint, opts); err != nil {
		return nil, err
	}

	// Expansion is a recall-only transform, applied identically to
	// both signals; the reranker sees the original query.
	recallQuery := query
	if opts.QueryExpansion {
		p.mu.Lock()
		expander := p.expander
		p.mu.Unlock()
		if expander != nil {
			recallQuery = expander.Expand(query)
			if recallQuery != query {
				slog.Debug("query_expanded",
					slog.String("original", query),
					slog.String("expanded", recallQuery))
			}
		}
	}

	denseHits, lexHits, err := p.recall(ctx, recallQuery, opts)
	if err != nil {
		return nil, err
	}

	weight := opts.FusionWeight
	if !opts.UseHybrid {
		weight = 1.0
	}
	candidates := Fuse(denseHits, lexHits, weight)

	ranked, err := Rerank(ctx, p.scorer, query, candidates)
	if err != nil {
		return nil, err
	}

	if opts.RelevanceFloor != nil {
		kept := ranked[:0]
		for _, r := range ranked {
			if r.Score >= *opts.RelevanceFloor {
				kept = append(kept, r)
			}
		}
		ranked = kept
	}

	slog.Debug("search_completed",
		slog.Int("dense_hits", len(denseHits)),
		slog.Int("lexical_hits", len(lexHits)),
		slog.Int("candidates", len(candidates)),
		slog.Int("survivors", len(ranked)))

	// The corpus is non-empty here, so an empty ranking means the
	// evidence did not clear the bar, never "nothing indexed".
	if len(ranked) == 0 {
		return &Outcome{NoEvidence: true, Sources: []Source{}, Results: []*RankedResult{}}, nil
	}

	if len(ranked) > opts.K {
		ranked = ranked[:opts.K]
	}

	texts := make([]string, len(ranked))
	sources := make([]Source, len(ranked))
	for i, r := range ranked {
		texts[i] = r.Passage.Text
		sources[i] = Source{Source: r.Passage.Source, Page: r.Passage.Page}
	}

	return &Outcome{
		Context: strings.Join(texts, "\n\n"),
		Sources: sources,
		Results: ranked,
	}, nil
}

// recall fetches dense and lexical candidates in parallel. Either
// signal may legitimately return fewer than requested; a failure in
// either aborts the whole search.
func (p *Pipeline) recall(ctx context.Context, query string, opts Options) (denseHits, lexHits []*Hit, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vec, embedErr := p.embedder.Embed(gctx, query)
		if embedErr != nil {
			if sifterrors.GetCode(embedErr) != "" {
				return embedErr
			}
			return sifterrors.EmbeddingFailure("query embedding failed", embedErr)
		}
		if isZeroVector(vec) {
			// Nothing to search with (e.g. stop-words-only query)
			denseHits = []*Hit{}
			return nil
		}

		results, searchErr := p.vector.Search(gctx, vec, opts.RecallK)
		if searchErr != nil {
			return searchErr
		}

		ids := make([]string, len(results))
		scores := make(map[string]float64, len(results))
		for i, r := range results {
			ids[i] = r.ID
			scores[r.ID] = r.Score
		}

		hits, resolveErr := p.resolve(gctx, ids, scores)
		if resolveErr != nil {
			return resolveErr
		}
		denseHits = hits
		return nil
	})

	if opts.UseHybrid {
		g.Go(func() error {
			p.mu.Lock()
			lexical := p.lexical
			p.mu.Unlock()

			results, scoreErr := lexical.Score(gctx, store.QueryTerms(query), opts.LexicalK)
			if scoreErr != nil {
				return sifterrors.Wrap(sifterrors.ErrCodeSearchFailed, scoreErr)
			}

			ids := make([]string, len(results))
			scores := make(map[string]float64, len(results))
			for i, r := range results {
				ids[i] = r.ID
				scores[r.ID] = r.Score
			}

			hits, resolveErr := p.resolve(gctx, ids, scores)
			if resolveErr != nil {
				return resolveErr
			}
			lexHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return denseHits, lexHits, nil
}

// resolve turns ranked ids into Hits, preserving rank order. Ids
// missing from the store are skipped; the indexes hold derived data
// and never decide passage identity.
func (p *Pipeline) resolve(ctx context.Context, ids []string, scores map[string]float64) ([]*Hit, error) {
	if len(ids) == 0 {
		return []*Hit{}, nil
	}

	passages, err := p.passages.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]*Hit, 0, len(passages))
	for _, passage := range passages {
		hits = append(hits, &Hit{Passage: passage, Score: scores[passage.ID]})
	}
	return hits, nil
}

// refresh rebuilds the lexical index (and the query expander when
// expansion is requested) if the store fingerprint moved since the
// last build. Single writer; concurrent queries wait.
func (p *Pipeline) refresh(ctx context.Context, fingerprint string, opts Options) error {
	needLexical := opts.UseHybrid && (p.staleLexical(fingerprint))
	needExpander := opts.QueryExpansion && (p.staleExpander(fingerprint))
	if !needLexical && !needExpander {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-check under the lock: another query may have rebuilt already
	needLexical = opts.UseHybrid && (p.lexical == nil || p.lexical.Stale(fingerprint))
	needExpander = opts.QueryExpansion && (p.expander == nil || p.expander.Stale(fingerprint))
	if !needLexical && !needExpander {
		return nil
	}

	snapshot, err := p.passages.All(ctx)
	if err != nil {
		return err
	}

	if needLexical {
		rebuilt, buildErr := store.BuildLexicalIndex(snapshot, fingerprint)
		if buildErr != nil {
			return sifterrors.Wrap(sifterrors.ErrCodeInternal, buildErr)
		}
		// An in-flight query may still hold the previous snapshot, so
		// the old index is dropped, not closed. It is memory-only; the
		// garbage collector reclaims it once the last reader is done.
		p.lexical = rebuilt
		slog.Debug("lexical_index_rebuilt", slog.Int("passages", len(snapshot)))
	}

	if needExpander {
		p.expander = BuildQueryExpander(snapshot, fingerprint, DefaultExpansionTerms)
	}

	return nil
}

func (p *Pipeline) staleLexical(fingerprint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lexical == nil || p.lexical.Stale(fingerprint)
}

func (p *Pipeline) staleExpander(fingerprint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expander == nil || p.expander.Stale(fingerprint)
}

// applyDefaults fills unset numeric options from the pipeline defaults.
func (p *Pipeline) applyDefaults(opts Options) Options {
	defaults := p.defaults
	if defaults.K <= 0 {
		defaults = DefaultOptions()
	}
	if opts.K <= 0 {
		opts.K = defaults.K
	}
	if opts.RecallK <= 0 {
		opts.RecallK = defaults.RecallK
	}
	if opts.LexicalK <= 0 {
		opts.LexicalK = defaults.LexicalK
	}
	return opts
}

// ScorerName reports the configured relevance scorer, for status output.
func (p *Pipeline) ScorerName() string {
	return p.scorer.Name()
}

// Close releases the lexical index.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lexical != nil {
		err := p.lexical.Close()
		p.lexical = nil
		return err
	}
	return nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
