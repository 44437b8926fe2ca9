package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama scorer defaults.
const (
	DefaultScorerModel   = "qwen3:0.6b"
	defaultScorerTimeout = 120 * time.Second
)

// OllamaScorer scores (query, passage) pairs with a local LLM through
// Ollama's generate API. The model sees the query and all passages in
// one prompt and emits JSON scores, cross-encoder style. Temperature
// is pinned to zero for deterministic scoring.
type OllamaScorer struct {
	client *http.Client
	host   string
	model  string
}

// Verify interface implementation at compile time
var _ RelevanceScorer = (*OllamaScorer)(nil)

// NewOllamaScorer creates an LLM-backed relevance scorer.
func NewOllamaScorer(host, model string) *OllamaScorer {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultScorerModel
	}
	return &OllamaScorer{
		client: &http.Client{Timeout: defaultScorerTimeout},
		host:   host,
		model:  model,
	}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type pairScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type pairScoreResponse struct {
	Scores []pairScore `json:"scores"`
}

// ScorePairs implements RelevanceScorer. Any transport or parse
// failure is returned as-is; the caller owns retry policy.
func (s *OllamaScorer) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	reqBody := ollamaGenerateRequest{
		Model:  s.model,
		Prompt: buildScoringPrompt(query, texts),
		Stream: false,
		Format: "json",
		Options: map[string]any{
			"temperature": 0.0,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var genResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseScores(genResp.Response, len(texts))
}

// buildScoringPrompt asks the model to score every passage against the
// query in a single pass.
func buildScoringPrompt(query string, texts []string) string {
	var sb strings.Builder

	sb.WriteString("You are a relevance scoring system. Score each passage's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nPassages to score:\n")

	for i, text := range texts {
		// Truncate to keep the prompt within context limits
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		sb.WriteString(fmt.Sprintf("[Passage %d]: %s\n\n", i, text))
	}

	sb.WriteString(`Score each passage from 0.0 to 1.0 by relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}

Be strict: irrelevant passages score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)

	return sb.String()
}

// parseScores extracts per-passage scores from the model output. Every
// passage must be scored; a malformed response is an error, not a
// silent fallback.
func parseScores(response string, count int) ([]float64, error) {
	response = strings.TrimSpace(response)

	// Strip a markdown code fence if the model added one
	if idx := strings.Index(response, "```"); idx != -1 {
		start := idx + 3
		if strings.HasPrefix(response[start:], "json") {
			start += 4
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			response = response[start : start+end]
		}
	}
	response = strings.TrimSpace(response)

	var parsed pairScoreResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse scores: %w", err)
	}

	scores := make([]float64, count)
	seen := make([]bool, count)
	for _, s := range parsed.Scores {
		if s.DocIndex < 0 || s.DocIndex >= count {
			continue
		}
		score := s.Score
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[s.DocIndex] = score
		seen[s.DocIndex] = true
	}

	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("model omitted a score for passage %d", i)
		}
	}

	return scores, nil
}

// Name identifies the scorer.
func (s *OllamaScorer) Name() string {
	return "ollama/" + s.model
}
