package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/config"
	sifterrors "github.com/docsift/docsift/internal/errors"
)

func TestNewStaticProvider(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingsConfig{Provider: ProviderStatic, CacheSize: 10})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Always wrapped in a cache
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.Equal(t, "static", cached.ModelName())
	assert.Equal(t, StaticDimensions, cached.Dimensions())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.EmbeddingsConfig{Provider: "mlx"})
	require.Error(t, err)
	assert.True(t, sifterrors.IsCode(err, sifterrors.ErrCodeConfigInvalid))
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := New(context.Background(), config.EmbeddingsConfig{Provider: ProviderOpenAI})
	require.Error(t, err)
	assert.True(t, sifterrors.IsCode(err, sifterrors.ErrCodeConfigInvalid))
}

func TestNewAutoDetectFallsBackToStatic(t *testing.T) {
	// No Ollama at this address, auto-detection lands on static
	e, err := New(context.Background(), config.EmbeddingsConfig{OllamaHost: "http://127.0.0.1:1"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static", e.ModelName())
}
