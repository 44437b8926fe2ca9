package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	first, err := e.Embed(ctx, "refund policy for returned items")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "refund policy for returned items")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, StaticDimensions)
}

func TestStaticEmbedderUnitNorm(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(ctx, "the warranty covers manufacturing defects")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-6)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	for _, input := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(ctx, input)
		require.NoError(t, err)
		require.Len(t, vec, StaticDimensions)
		assert.Zero(t, vectorNorm(vec))
	}
}

func TestStaticEmbedderSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	refund, err := e.Embed(ctx, "refund policy allows returns")
	require.NoError(t, err)
	refundAgain, err := e.Embed(ctx, "refund policy for returns")
	require.NoError(t, err)
	shipping, err := e.Embed(ctx, "shipping times vary by carrier")
	require.NoError(t, err)

	// Overlapping wording scores higher than unrelated wording
	assert.Greater(t, dotProduct(refund, refundAgain), dotProduct(refund, shipping))
}

func TestStaticEmbedderBatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	texts := []string{"refund policy", "", "warranty coverage"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedderMetadata(t *testing.T) {
	e := NewStaticEmbedder()

	assert.Equal(t, StaticDimensions, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())
	assert.True(t, e.Available(context.Background()))

	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestStaticEmbedderEmptyBatch(t *testing.T) {
	e := NewStaticEmbedder()
	defer func() { _ = e.Close() }()

	batch, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"ref", "efu", "fun", "und"}, extractNgrams("refund", 3))
	assert.Empty(t, extractNgrams("ab", 3))
}

func TestNormalizeForNgrams(t *testing.T) {
	assert.Equal(t, "refundpolicy30", normalizeForNgrams("Refund Policy: 30!"))
}
