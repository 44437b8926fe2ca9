package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// ProseTokenizerName is the name of our custom prose tokenizer.
	ProseTokenizerName = "prose_tokenizer"

	// ProseStopFilterName is the name of our custom stop word filter.
	ProseStopFilterName = "prose_stop"

	// ProseAnalyzerName is the name of our custom prose analyzer.
	ProseAnalyzerName = "prose_analyzer"
)

func init() {
	// Register custom tokenizer
	_ = registry.RegisterTokenizer(ProseTokenizerName, proseTokenizerConstructor)

	// Register custom stop word filter
	_ = registry.RegisterTokenFilter(ProseStopFilterName, proseStopFilterConstructor)
}

// LexicalIndex is an in-memory Bleve index over passage text with BM25
// scoring. It is a pure function of the passage store's contents: it is
// built from a passage snapshot plus the store fingerprint at build
// time, and rebuilt from scratch whenever the fingerprint moves.
//
// Match queries only return documents sharing at least one analyzed
// term with the query, so a zero-overlap passage never appears in
// results, regardless of length normalization.
type LexicalIndex struct {
	mu          sync.RWMutex
	index       bleve.Index
	fingerprint string
	count       int
	closed      bool
}

// lexicalDocument is the document structure for Bleve indexing.
type lexicalDocument struct {
	Text string `json:"text"`
}

// BuildLexicalIndex builds an in-memory lexical index from a passage
// snapshot. fingerprint is the store fingerprint the snapshot was taken
// at, recorded for staleness checks.
func BuildLexicalIndex(passages []*Passage, fingerprint string) (*LexicalIndex, error) {
	indexMapping, err := createLexicalMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for _, p := range passages {
		if err := batch.Index(p.ID, lexicalDocument{Text: p.Text}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index passage %s: %w", p.ID, err)
		}
	}

	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	return &LexicalIndex{
		index:       idx,
		fingerprint: fingerprint,
		count:       len(passages),
	}, nil
}

// createLexicalMapping creates the Bleve index mapping with our prose analyzer.
func createLexicalMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(ProseAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": ProseTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			ProseStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = ProseAnalyzerName

	return indexMapping, nil
}

// Score returns the passages overlapping the query terms, scored by
// BM25, descending, at most limit results. Queries with no terms (or
// only stop words) return an empty ranking.
func (l *LexicalIndex) Score(ctx context.Context, terms []string, limit int) ([]*LexicalResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("index is closed")
	}

	queryStr := strings.TrimSpace(strings.Join(terms, " "))
	if queryStr == "" || limit <= 0 {
		return []*LexicalResult{}, nil
	}

	// Match query with OR semantics: any shared term qualifies,
	// zero overlap never matches
	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("text")

	searchRequest := bleve.NewSearchRequest(matchQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // For matched terms

	result, err := l.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return results, nil
}

// Fingerprint returns the store fingerprint this index was built at.
func (l *LexicalIndex) Fingerprint() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fingerprint
}

// Stale reports whether the index no longer reflects the store.
func (l *LexicalIndex) Stale(currentFingerprint string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.fingerprint != currentFingerprint
}

// Count returns the number of indexed passages.
func (l *LexicalIndex) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Close closes the index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "text" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// proseTokenizerConstructor creates a new prose tokenizer for Bleve.
func proseTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveProseTokenizer{}, nil
}

// bleveProseTokenizer implements analysis.Tokenizer using TokenizeProse.
type bleveProseTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveProseTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeProse(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Find token position in original text (case-insensitive search)
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// proseStopFilterConstructor creates a prose stop word filter for Bleve.
func proseStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveProseStopFilter{
		stopWords: BuildStopWordMap(DefaultStopWords),
	}, nil
}

// bleveProseStopFilter implements analysis.TokenFilter for English stop words.
type bleveProseStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveProseStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
