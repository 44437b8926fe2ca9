package search

import (
	"sort"
	"strings"

	"github.com/docsift/docsift/internal/store"
)

// DefaultExpansionTerms is the number of corpus terms appended to an
// expanded query.
const DefaultExpansionTerms = 3

// QueryExpander appends salient corpus terms to a query: terms that
// frequently co-occur with the query terms inside passages. A pure
// text transform, built from a passage snapshot, applied identically
// before both recalls.
type QueryExpander struct {
	maxTerms    int
	cooccurs    map[string]map[string]int
	fingerprint string
}

// BuildQueryExpander computes co-occurrence statistics over a passage
// snapshot. fingerprint is the store fingerprint at build time, so the
// expander can be refreshed together with the lexical index.
func BuildQueryExpander(passages []*store.Passage, fingerprint string, maxTerms int) *QueryExpander {
	if maxTerms <= 0 {
		maxTerms = DefaultExpansionTerms
	}

	stop := store.BuildStopWordMap(store.DefaultStopWords)
	cooccurs := make(map[string]map[string]int)

	for _, p := range passages {
		terms := store.FilterStopWords(store.TokenizeProse(p.Text), stop)

		unique := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			unique[t] = struct{}{}
		}

		for a := range unique {
			m := cooccurs[a]
			if m == nil {
				m = make(map[string]int)
				cooccurs[a] = m
			}
			for b := range unique {
				if a != b {
					m[b]++
				}
			}
		}
	}

	return &QueryExpander{
		maxTerms:    maxTerms,
		cooccurs:    cooccurs,
		fingerprint: fingerprint,
	}
}

// Expand returns the query with up to maxTerms co-occurring corpus
// terms appended. A query with no known terms is returned unchanged.
// Deterministic: candidates rank by co-occurrence count, ties
// alphabetically.
func (e *QueryExpander) Expand(query string) string {
	queryTerms := store.QueryTerms(query)
	if len(queryTerms) == 0 {
		return query
	}

	inQuery := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		inQuery[t] = struct{}{}
	}

	counts := make(map[string]int)
	for _, qt := range queryTerms {
		for term, n := range e.cooccurs[qt] {
			if _, ok := inQuery[term]; ok {
				continue
			}
			counts[term] += n
		}
	}
	if len(counts) == 0 {
		return query
	}

	candidates := make([]string, 0, len(counts))
	for term := range counts {
		candidates = append(candidates, term)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) > e.maxTerms {
		candidates = candidates[:e.maxTerms]
	}

	return query + " " + strings.Join(candidates, " ")
}

// Stale reports whether the expander no longer reflects the store.
func (e *QueryExpander) Stale(currentFingerprint string) bool {
	return e.fingerprint != currentFingerprint
}
