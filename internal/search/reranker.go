package search

import (
	"context"
	"sort"

	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// Rerank re-sorts candidates strictly by the pairwise scorer's output.
// The fused score is discarded: once invoked, the pairwise model is
// authoritative because it sees full query+passage context that fusion
// could not. Equal scores keep candidate order (stable sort).
//
// Empty input returns empty without invoking the scorer. A scorer
// failure propagates as a rerank error with no partial ranking.
func Rerank(ctx context.Context, scorer RelevanceScorer, query string, candidates []*Candidate) ([]*RankedResult, error) {
	if len(candidates) == 0 {
		return []*RankedResult{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Passage.Text
	}

	scores, err := scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		return nil, sifterrors.RerankFailure("relevance scoring failed", err)
	}
	if len(scores) != len(candidates) {
		return nil, sifterrors.RerankFailure("relevance scorer returned wrong score count", nil)
	}

	results := make([]*RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = &RankedResult{Passage: c.Passage, Score: scores[i]}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// LexicalOverlapScorer is a deterministic local relevance scorer: the
// fraction of query terms present in the passage. No network, no
// model, stable across runs. Useful as a default scorer and in tests.
type LexicalOverlapScorer struct{}

// Verify interface implementation at compile time
var _ RelevanceScorer = (*LexicalOverlapScorer)(nil)

// ScorePairs returns, for each text, |query terms ∩ text terms| / |query terms|.
func (s *LexicalOverlapScorer) ScorePairs(_ context.Context, query string, texts []string) ([]float64, error) {
	queryTerms := store.QueryTerms(query)
	scores := make([]float64, len(texts))
	if len(queryTerms) == 0 {
		return scores, nil
	}

	for i, text := range texts {
		textTerms := make(map[string]struct{})
		for _, t := range store.TokenizeProse(text) {
			textTerms[t] = struct{}{}
		}

		matched := 0
		for _, qt := range queryTerms {
			if _, ok := textTerms[qt]; ok {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(queryTerms))
	}

	return scores, nil
}

// Name identifies the scorer.
func (s *LexicalOverlapScorer) Name() string {
	return "overlap"
}
