package search

import (
	"sort"
)

// normTolerance is the numerical tolerance below which a ranking's
// score spread counts as "all equal".
const normTolerance = 1e-9

// minMaxNormalize scales scores to [0,1]. An empty ranking, or one
// whose scores are all equal within tolerance, normalizes to all
// zeros so a degenerate ranking cannot dominate fusion.
func minMaxNormalize(scores []float64) []float64 {
	normalized := make([]float64, len(scores))
	if len(scores) == 0 {
		return normalized
	}

	minScore, maxScore := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	spread := maxScore - minScore
	if spread <= normTolerance {
		return normalized
	}

	for i, s := range scores {
		normalized[i] = (s - minScore) / spread
	}
	return normalized
}

// Fuse merges the dense and lexical rankings into one deduplicated
// candidate list.
//
// Each ranking is min-max normalized independently. Candidates are
// deduplicated by (source, page, content fingerprint), keeping the MAX
// normalized score per signal so a passage retrieved by both signals
// is not double-counted. The fused score is
// weight*dense + (1-weight)*lexical with 0.0 for a missing signal.
//
// Output is sorted by fused score descending, ties broken by raw dense
// score, then by first-encounter order. Downstream stages must not
// re-dedupe.
func Fuse(dense, lexical []*Hit, weight float64) []*Candidate {
	if len(dense) == 0 && len(lexical) == 0 {
		return []*Candidate{}
	}

	denseScores := make([]float64, len(dense))
	for i, h := range dense {
		denseScores[i] = h.Score
	}
	lexScores := make([]float64, len(lexical))
	for i, h := range lexical {
		lexScores[i] = h.Score
	}
	denseNorm := minMaxNormalize(denseScores)
	lexNorm := minMaxNormalize(lexScores)

	byKey := make(map[string]*Candidate, len(dense)+len(lexical))
	var ordered []*Candidate

	upsert := func(h *Hit) *Candidate {
		key := h.Passage.DedupKey()
		if c, ok := byKey[key]; ok {
			return c
		}
		c := &Candidate{Passage: h.Passage, order: len(ordered)}
		byKey[key] = c
		ordered = append(ordered, c)
		return c
	}

	seenDense := make(map[*Candidate]bool, len(dense))
	for i, h := range dense {
		c := upsert(h)
		if !seenDense[c] || h.Score > c.DenseScore {
			c.DenseScore = h.Score
		}
		if denseNorm[i] > c.DenseNorm {
			c.DenseNorm = denseNorm[i]
		}
		seenDense[c] = true
	}

	for i, h := range lexical {
		c := upsert(h)
		if h.Score > c.LexicalScore {
			c.LexicalScore = h.Score
		}
		if lexNorm[i] > c.LexicalNorm {
			c.LexicalNorm = lexNorm[i]
		}
	}

	for _, c := range ordered {
		c.FusedScore = weight*c.DenseNorm + (1-weight)*c.LexicalNorm
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		if a.DenseScore != b.DenseScore {
			return a.DenseScore > b.DenseScore
		}
		return a.order < b.order
	})

	return ordered
}
