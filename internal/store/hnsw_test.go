package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sifterrors "github.com/docsift/docsift/internal/errors"
)

func newTestIndex(t *testing.T, dims int) *VectorIndex {
	t.Helper()
	idx, err := NewVectorIndex(DefaultVectorIndexConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestVectorIndexAddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 4)

	ids := []string{"a", "b", "c"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	require.NoError(t, idx.Add(ctx, ids, vectors))
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Exact match first, near match second
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, "b", results[2].ID)

	// Scores descend
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestVectorIndexSearchBeforeAdd(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 4)

	_, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.Error(t, err)
	assert.True(t, sifterrors.IsCode(err, sifterrors.ErrCodeIndexUnavailable))
}

func TestVectorIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 4)

	err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	require.Error(t, err)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}))
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestVectorIndexNormalizesInput(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	// Same direction, different magnitude
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{10, 0}}))

	results, err := idx.Search(ctx, []float32{0.5, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestVectorIndexTieBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 3)

	// Identical vectors, distinct IDs: earliest insertion wins ties
	vec := []float32{0, 1, 0}
	require.NoError(t, idx.Add(ctx, []string{"second"}, [][]float32{vec}))
	require.NoError(t, idx.Add(ctx, []string{"first-of-batch"}, [][]float32{vec}))

	results, err := idx.Search(ctx, vec, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].ID)
	assert.Equal(t, "first-of-batch", results[1].ID)
}

func TestVectorIndexDuplicateIDReplaces(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t, 2)

	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestVectorIndexSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	idx := newTestIndex(t, 8)

	ids := []string{"p1", "p2", "p3", "p4"}
	vectors := make([][]float32, len(ids))
	for i := range vectors {
		v := make([]float32, 8)
		v[i] = 1
		v[(i+1)%8] = 0.5
		vectors[i] = v
	}
	require.NoError(t, idx.Add(ctx, ids, vectors))

	query := []float32{1, 0.4, 0, 0, 0, 0, 0, 0}
	before, err := idx.Search(ctx, query, 4)
	require.NoError(t, err)

	require.NoError(t, idx.Save(path))

	loaded, err := NewVectorIndex(DefaultVectorIndexConfig(8))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 4, loaded.Count())
	assert.Equal(t, 8, loaded.Dimensions())

	after, err := loaded.Search(ctx, query, 4)
	require.NoError(t, err)
	require.Len(t, after, len(before))

	// Same IDs, same order, scores within 1e-6
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.InDelta(t, before[i].Score, after[i].Score, 1e-6)
	}
}

func TestVectorIndexIncrementalAddAfterLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	idx := newTestIndex(t, 2)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, idx.Save(path))

	loaded, err := NewVectorIndex(DefaultVectorIndexConfig(2))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	require.NoError(t, loaded.Add(ctx, []string{"b"}, [][]float32{{0, 1}}))
	assert.Equal(t, 2, loaded.Count())
	assert.True(t, loaded.Contains("a"))
	assert.True(t, loaded.Contains("b"))
}

func TestVectorIndexLoadMissingFile(t *testing.T) {
	idx := newTestIndex(t, 2)
	err := idx.Load(filepath.Join(t.TempDir(), "nope.hnsw"))
	require.Error(t, err)
	assert.True(t, sifterrors.IsCode(err, sifterrors.ErrCodeFileNotFound))
}

func TestReadVectorIndexDimensions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	// Fresh start
	dims, err := ReadVectorIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	idx := newTestIndex(t, 16)
	require.NoError(t, idx.Add(ctx, []string{"a"}, [][]float32{make([]float32, 16)}))
	require.NoError(t, idx.Save(path))

	dims, err = ReadVectorIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 16, dims)
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4}
	normalizeVectorInPlace(v)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	// Zero vector is left alone
	z := []float32{0, 0}
	normalizeVectorInPlace(z)
	assert.Equal(t, []float32{0, 0}, z)
}
