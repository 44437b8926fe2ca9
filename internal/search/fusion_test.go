package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/store"
)

func passage(id, text, source string, page int) *store.Passage {
	return &store.Passage{ID: id, Text: text, Source: source, Page: page}
}

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{
			name:   "distinct values span zero to one",
			scores: []float64{2, 6, 4},
			want:   []float64{0, 1, 0.5},
		},
		{
			name:   "all equal collapses to zeros",
			scores: []float64{3, 3, 3},
			want:   []float64{0, 0, 0},
		},
		{
			name:   "within tolerance counts as equal",
			scores: []float64{1, 1 + 1e-12},
			want:   []float64{0, 0},
		},
		{
			name:   "single value",
			scores: []float64{7},
			want:   []float64{0},
		},
		{
			name:   "empty",
			scores: []float64{},
			want:   []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := minMaxNormalize(tt.scores)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestFuseWeightedBlend(t *testing.T) {
	dense := []*Hit{
		{Passage: passage("a", "alpha", "doc.pdf", 1), Score: 0.9},
		{Passage: passage("b", "beta", "doc.pdf", 2), Score: 0.5},
	}
	lexical := []*Hit{
		{Passage: passage("b", "beta", "doc.pdf", 2), Score: 4.0},
		{Passage: passage("c", "gamma", "doc.pdf", 3), Score: 1.0},
	}

	fused := Fuse(dense, lexical, 0.6)
	require.Len(t, fused, 3)

	byID := make(map[string]*Candidate)
	for _, c := range fused {
		byID[c.Passage.ID] = c
	}

	// a: dense norm 1.0, no lexical signal
	assert.InDelta(t, 0.6*1.0, byID["a"].FusedScore, 1e-9)
	// b: dense norm 0.0, lexical norm 1.0
	assert.InDelta(t, 0.4*1.0, byID["b"].FusedScore, 1e-9)
	// c: lexical norm 0.0 only
	assert.InDelta(t, 0.0, byID["c"].FusedScore, 1e-9)

	// Missing signal is 0.0, not absent: candidate still ranks
	assert.Equal(t, "a", fused[0].Passage.ID)
	assert.Equal(t, "b", fused[1].Passage.ID)
	assert.Equal(t, "c", fused[2].Passage.ID)
}

func TestFuseDeduplicatesByCompositeKey(t *testing.T) {
	// Same (source, page, content) under different ids collapses
	dense := []*Hit{
		{Passage: passage("a1", "refund policy", "doc.pdf", 1), Score: 0.9},
		{Passage: passage("x", "other", "doc.pdf", 9), Score: 0.2},
	}
	lexical := []*Hit{
		{Passage: passage("a2", "refund  policy", "doc.pdf", 1), Score: 3.0},
		{Passage: passage("y", "another", "doc.pdf", 8), Score: 1.0},
	}

	fused := Fuse(dense, lexical, 0.5)
	require.Len(t, fused, 3)

	var merged *Candidate
	for _, c := range fused {
		if c.Passage.Source == "doc.pdf" && c.Passage.Page == 1 {
			require.Nil(t, merged, "composite key must appear exactly once")
			merged = c
		}
	}
	require.NotNil(t, merged)

	// Both signals present on the merged candidate
	assert.InDelta(t, 1.0, merged.DenseNorm, 1e-9)
	assert.InDelta(t, 1.0, merged.LexicalNorm, 1e-9)
	assert.InDelta(t, 1.0, merged.FusedScore, 1e-9)
}

func TestFuseKeepsMaxPerSignal(t *testing.T) {
	// Duplicate within one ranking keeps MAX, not sum
	dup1 := passage("d1", "same text", "doc.pdf", 4)
	dup2 := passage("d2", "same text", "doc.pdf", 4)
	dense := []*Hit{
		{Passage: dup1, Score: 0.8},
		{Passage: dup2, Score: 0.4},
		{Passage: passage("e", "filler", "doc.pdf", 5), Score: 0.1},
	}

	fused := Fuse(dense, nil, 1.0)
	require.Len(t, fused, 2)

	assert.Equal(t, "d1", fused[0].Passage.ID)
	assert.InDelta(t, 0.8, fused[0].DenseScore, 1e-9)
	assert.InDelta(t, 1.0, fused[0].DenseNorm, 1e-9)
}

func TestFuseTieBreaks(t *testing.T) {
	// Equal fused scores fall back to raw dense score, then order
	dense := []*Hit{
		{Passage: passage("low", "one", "a.pdf", 1), Score: 0.3},
		{Passage: passage("high", "two", "a.pdf", 2), Score: 0.9},
		{Passage: passage("mid", "three", "a.pdf", 3), Score: 0.6},
	}

	// Weight 0: fused scores all 0, raw dense decides
	fused := Fuse(dense, nil, 0.0)
	require.Len(t, fused, 3)
	assert.Equal(t, "high", fused[0].Passage.ID)
	assert.Equal(t, "mid", fused[1].Passage.ID)
	assert.Equal(t, "low", fused[2].Passage.ID)
}

func TestFuseInsertionOrderTieBreak(t *testing.T) {
	lexical := []*Hit{
		{Passage: passage("first", "one", "a.pdf", 1), Score: 2.0},
		{Passage: passage("second", "two", "a.pdf", 2), Score: 2.0},
	}

	// All-equal lexical ranking normalizes to zeros; no dense signal.
	// First-encounter order decides.
	fused := Fuse(nil, lexical, 0.5)
	require.Len(t, fused, 2)
	assert.Equal(t, "first", fused[0].Passage.ID)
	assert.Equal(t, "second", fused[1].Passage.ID)
}

func TestFuseIdempotent(t *testing.T) {
	dense := []*Hit{
		{Passage: passage("a", "alpha", "doc.pdf", 1), Score: 0.9},
		{Passage: passage("b", "beta", "doc.pdf", 2), Score: 0.4},
	}
	lexical := []*Hit{
		{Passage: passage("b", "beta", "doc.pdf", 2), Score: 5.0},
		{Passage: passage("c", "gamma", "doc.pdf", 3), Score: 2.0},
	}

	first := Fuse(dense, lexical, 0.6)
	second := Fuse(dense, lexical, 0.6)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Passage.ID, second[i].Passage.ID)
		assert.InDelta(t, first[i].FusedScore, second[i].FusedScore, 1e-12)
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, 0.6))

	// One empty ranking normalizes to zeros without error
	dense := []*Hit{{Passage: passage("a", "alpha", "doc.pdf", 1), Score: 0.9}}
	fused := Fuse(dense, nil, 0.6)
	require.Len(t, fused, 1)
	assert.InDelta(t, 0.0, fused[0].LexicalNorm, 1e-9)
}
