package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/search"
)

func TestConversationTurns(t *testing.T) {
	c := NewConversation()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.LastQuestion())

	c.AddQuestion("What is the refund policy?")
	c.AddOutcome(&search.Outcome{
		Context: "Refunds are accepted within thirty days.",
		Sources: []search.Source{{Source: "handbook.pdf", Page: 2}},
	})

	require.Equal(t, 2, c.Len())
	assert.Equal(t, "What is the refund policy?", c.LastQuestion())
	assert.Equal(t, RoleUser, c.Turns[0].Role)
	assert.Equal(t, RoleEngine, c.Turns[1].Role)
	assert.Equal(t, "handbook.pdf", c.Turns[1].Sources[0].Source)
	assert.False(t, c.Turns[0].CreatedAt.IsZero())
}

func TestConversationNoEvidenceTurn(t *testing.T) {
	c := NewConversation()
	c.AddQuestion("What about submarines?")
	c.AddOutcome(&search.Outcome{NoEvidence: true})

	assert.True(t, c.Turns[1].NoEvidence)
	assert.Empty(t, c.Turns[1].Content)
}

func TestConversationDropsOldestPairs(t *testing.T) {
	c := NewConversation()
	c.maxTurns = 4

	for i := 0; i < 4; i++ {
		c.AddQuestion("question")
		c.AddOutcome(&search.Outcome{Context: "answer"})
	}

	assert.Equal(t, 4, c.Len())
	// Oldest pairs dropped, parity preserved
	assert.Equal(t, RoleUser, c.Turns[0].Role)
	assert.Equal(t, RoleEngine, c.Turns[len(c.Turns)-1].Role)
}

func TestConversationIndependence(t *testing.T) {
	a := NewConversation()
	b := NewConversation()

	a.AddQuestion("only in a")
	assert.Equal(t, 1, a.Len())
	assert.Zero(t, b.Len())
}

func TestConversationSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "conv.json")

	c := NewConversation()
	c.AddQuestion("What is the refund policy?")
	c.AddOutcome(&search.Outcome{
		Context: "Refunds are accepted within thirty days.",
		Sources: []search.Source{{Source: "handbook.pdf", Page: 2}},
	})
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())
	assert.Equal(t, c.Turns[0].Content, loaded.Turns[0].Content)
	assert.Equal(t, c.Turns[1].Sources, loaded.Turns[1].Sources)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
