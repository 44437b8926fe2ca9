package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/store"
)

func expanderCorpus() []*store.Passage {
	return []*store.Passage{
		{ID: "p1", Text: "refund requests require a receipt and original packaging", Source: "h.pdf", Page: 1},
		{ID: "p2", Text: "refund approval requires a receipt within thirty days", Source: "h.pdf", Page: 2},
		{ID: "p3", Text: "shipping carriers deliver within five business days", Source: "h.pdf", Page: 3},
	}
}

func TestQueryExpanderAppendsCooccurringTerms(t *testing.T) {
	e := BuildQueryExpander(expanderCorpus(), "fp-1", 2)

	expanded := e.Expand("refund")
	require.NotEqual(t, "refund", expanded)
	assert.True(t, strings.HasPrefix(expanded, "refund "), "original query preserved as prefix")

	// "receipt" co-occurs with "refund" in both refund passages
	assert.Contains(t, expanded, "receipt")
	// Terms from the unrelated shipping passage never appear
	assert.NotContains(t, expanded, "shipping")
	assert.NotContains(t, expanded, "carriers")
}

func TestQueryExpanderDeterministic(t *testing.T) {
	e := BuildQueryExpander(expanderCorpus(), "fp-1", 3)

	first := e.Expand("refund receipt")
	second := e.Expand("refund receipt")
	assert.Equal(t, first, second)
}

func TestQueryExpanderUnknownTerms(t *testing.T) {
	e := BuildQueryExpander(expanderCorpus(), "fp-1", 3)

	// Terms absent from the corpus have no co-occurrence data
	assert.Equal(t, "blockchain", e.Expand("blockchain"))
	// Stop-words-only query is returned unchanged
	assert.Equal(t, "the and of", e.Expand("the and of"))
}

func TestQueryExpanderRespectsLimit(t *testing.T) {
	e := BuildQueryExpander(expanderCorpus(), "fp-1", 1)

	expanded := e.Expand("refund")
	added := strings.Fields(strings.TrimPrefix(expanded, "refund "))
	assert.Len(t, added, 1)
}

func TestQueryExpanderStaleness(t *testing.T) {
	e := BuildQueryExpander(expanderCorpus(), "fp-1", 3)
	assert.False(t, e.Stale("fp-1"))
	assert.True(t, e.Stale("fp-2"))
}

func TestQueryExpanderEmptyCorpus(t *testing.T) {
	e := BuildQueryExpander(nil, "", 3)
	assert.Equal(t, "refund policy", e.Expand("refund policy"))
}
