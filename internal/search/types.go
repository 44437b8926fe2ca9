// Package search implements the hybrid retrieval pipeline: dense and
// lexical recall run independently, their rankings are fused with
// min-max normalized weighted scores, and a pairwise relevance scorer
// re-sorts the fused candidates before thresholding and selection.
package search

import (
	"context"

	"github.com/docsift/docsift/internal/store"
)

// Options configures a single search.
type Options struct {
	// K is the maximum number of results to return (default: 5).
	K int

	// RecallK is the number of dense candidates fetched before fusion
	// (default: 50).
	RecallK int

	// LexicalK is the number of lexical candidates fetched before
	// fusion (default: 50).
	LexicalK int

	// FusionWeight blends dense vs lexical normalized scores in [0,1].
	// 1.0 is dense-only, 0.0 is lexical-only (default: 0.6).
	FusionWeight float64

	// RelevanceFloor drops results scoring below it after reranking.
	// Nil disables thresholding.
	RelevanceFloor *float64

	// UseHybrid enables lexical recall alongside dense recall.
	// When false only the dense signal is used.
	UseHybrid bool

	// QueryExpansion appends salient corpus terms to the query before
	// both recalls. Off by default: expanded terms can seed lexical
	// false positives.
	QueryExpansion bool
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		K:            5,
		RecallK:      50,
		LexicalK:     50,
		FusionWeight: 0.6,
		UseHybrid:    true,
	}
}

// Hit is one entry of a recall ranking: a resolved passage with the
// signal's raw score.
type Hit struct {
	Passage *store.Passage
	Score   float64
}

// Candidate is a fused recall result. Created during fusion, consumed
// by the reranker, never persisted.
type Candidate struct {
	Passage *store.Passage

	// DenseScore and LexicalScore are the raw signal scores
	// (0 when the signal did not retrieve this passage).
	DenseScore   float64
	LexicalScore float64

	// DenseNorm and LexicalNorm are the min-max normalized scores.
	DenseNorm   float64
	LexicalNorm float64

	// FusedScore = weight*DenseNorm + (1-weight)*LexicalNorm.
	FusedScore float64

	// order is the first-encounter position across both input
	// rankings, used as the final tie break.
	order int
}

// RankedResult is a candidate after pairwise reranking, ordered by
// relevance score descending.
type RankedResult struct {
	Passage *store.Passage
	Score   float64
}

// Source is one (document, page) citation.
type Source struct {
	Source string
	Page   int
}

// Outcome is the terminal result of one search. NoEvidence marks the
// case where the relevance floor emptied the ranking; it is a
// successful outcome, distinguishable from an empty corpus (which is
// an error before recall even starts).
type Outcome struct {
	Context    string
	Sources    []Source
	Results    []*RankedResult
	NoEvidence bool
}

// RelevanceScorer scores (query, passage-text) pairs. Higher is more
// relevant; no fixed range is guaranteed, so relevance floors must be
// calibrated per scorer.
type RelevanceScorer interface {
	// ScorePairs returns one score per text, in input order.
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)

	// Name identifies the scorer for logging and status output.
	Name() string
}
