package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeProse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and strips punctuation",
			input: "Refunds are processed within 30 days.",
			want:  []string{"refunds", "are", "processed", "within", "30", "days"},
		},
		{
			name:  "drops single-character tokens",
			input: "a b cd",
			want:  []string{"cd"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
		{
			name:  "punctuation only",
			input: "!?. --- ::",
			want:  []string{},
		},
		{
			name:  "hyphenated words split",
			input: "self-service portal",
			want:  []string{"self", "service", "portal"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeProse(tt.input))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	t.Run("removes stop words", func(t *testing.T) {
		terms := QueryTerms("What is the refund policy?")
		assert.Equal(t, []string{"refund", "policy"}, terms)
	})

	t.Run("stop words only yields empty", func(t *testing.T) {
		assert.Empty(t, QueryTerms("is it the and of"))
	})
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"the", "is"})
	got := FilterStopWords([]string{"the", "refund", "is", "final"}, stop)
	assert.Equal(t, []string{"refund", "final"}, got)
}

func TestContentFingerprint(t *testing.T) {
	a := &Passage{Text: "The refund   policy\napplies."}
	b := &Passage{Text: "The refund policy applies."}
	c := &Passage{Text: "A different passage."}

	// Whitespace-insensitive
	assert.Equal(t, a.ContentFingerprint(), b.ContentFingerprint())
	assert.NotEqual(t, a.ContentFingerprint(), c.ContentFingerprint())
}

func TestDedupKey(t *testing.T) {
	a := &Passage{ID: "x", Text: "same text", Source: "a.pdf", Page: 1}
	b := &Passage{ID: "y", Text: "same  text", Source: "a.pdf", Page: 1}
	c := &Passage{ID: "z", Text: "same text", Source: "a.pdf", Page: 2}

	assert.Equal(t, a.DedupKey(), b.DedupKey(), "same source/page/content collapses")
	assert.NotEqual(t, a.DedupKey(), c.DedupKey(), "different page is a different identity")
}
