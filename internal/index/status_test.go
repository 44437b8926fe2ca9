package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/embed"
	sifterrors "github.com/docsift/docsift/internal/errors"
)

func TestReadStatusOnBuiltIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := openCoordinator(t, dir)
	_, err := c.Ingest(ctx, &memorySource{passages: corpus()})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	status, err := ReadStatus(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, status.PassageCount)
	assert.Equal(t, 3, status.VectorCount)
	assert.Equal(t, embed.StaticDimensions, status.Dimensions)
	assert.Equal(t, "static", status.Model)
}

func TestReadStatusWhileWriterHoldsLock(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c := openCoordinator(t, dir)
	defer func() { _ = c.Close() }()
	_, err := c.Ingest(ctx, &memorySource{passages: corpus()})
	require.NoError(t, err)

	// Lock-free read path works alongside the live coordinator
	status, err := ReadStatus(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, status.PassageCount)
}

func TestReadStatusMissingIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := ReadStatus(ctx, dir)
	require.Error(t, err)
	assert.True(t, sifterrors.IsCode(err, sifterrors.ErrCodeIndexUnavailable))

	// A status read must not create index files in the directory
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)

	_, statErr := os.Stat(filepath.Join(dir, PassagesFile))
	assert.True(t, os.IsNotExist(statErr))
}
