// Package session holds conversation state for the ask flow.
// A Conversation is owned by the caller and passed into each ask;
// nothing here is global, so concurrent conversations never share state.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docsift/docsift/internal/search"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser is a question asked by the user.
	RoleUser Role = "user"
	// RoleEngine is retrieved evidence returned by the engine.
	RoleEngine Role = "engine"
)

// DefaultMaxTurns bounds conversation growth. Older turns are dropped
// pairwise (question + answer) once the limit is exceeded.
const DefaultMaxTurns = 40

// Turn is one entry in a conversation.
type Turn struct {
	Role       Role            `json:"role"`
	Content    string          `json:"content"`
	Sources    []search.Source `json:"sources,omitempty"`
	NoEvidence bool            `json:"no_evidence,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Conversation is an ordered list of turns with a growth bound.
// The zero value is not usable; construct with NewConversation.
type Conversation struct {
	Turns    []Turn    `json:"turns"`
	Started  time.Time `json:"started"`
	maxTurns int
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{
		Started:  time.Now().UTC(),
		maxTurns: DefaultMaxTurns,
	}
}

// AddQuestion appends a user question.
func (c *Conversation) AddQuestion(question string) {
	c.append(Turn{
		Role:      RoleUser,
		Content:   question,
		CreatedAt: time.Now().UTC(),
	})
}

// AddOutcome appends the engine's retrieval outcome for the most
// recent question.
func (c *Conversation) AddOutcome(outcome *search.Outcome) {
	c.append(Turn{
		Role:       RoleEngine,
		Content:    outcome.Context,
		Sources:    outcome.Sources,
		NoEvidence: outcome.NoEvidence,
		CreatedAt:  time.Now().UTC(),
	})
}

func (c *Conversation) append(t Turn) {
	c.Turns = append(c.Turns, t)
	if c.maxTurns > 0 && len(c.Turns) > c.maxTurns {
		// Drop the oldest question/answer pair, keeping turn parity
		drop := 2
		if drop > len(c.Turns) {
			drop = len(c.Turns)
		}
		c.Turns = append(c.Turns[:0], c.Turns[drop:]...)
	}
}

// Len returns the number of turns.
func (c *Conversation) Len() int { return len(c.Turns) }

// LastQuestion returns the most recent user question, or "".
func (c *Conversation) LastQuestion() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Role == RoleUser {
			return c.Turns[i].Content
		}
	}
	return ""
}

// Save writes the conversation as JSON. Atomic write, temp file plus
// rename, so a crash never leaves a half-written history.
func (c *Conversation) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create conversation directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a conversation previously written by Save.
func Load(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	c := NewConversation()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file %s: %w", path, err)
	}
	return c, nil
}
