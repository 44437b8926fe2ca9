package index

import (
	"context"
	"os"
	"path/filepath"

	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/store"
)

// ReadStatus inspects an index directory without acquiring the writer
// lock or loading the vector graph. Suitable for status reporting
// while another process holds the index.
func ReadStatus(ctx context.Context, dataDir string) (*Status, error) {
	passagesPath := filepath.Join(dataDir, PassagesFile)

	// Opening the store would create the file, so check first: a status
	// read must leave a missing index missing.
	if _, err := os.Stat(passagesPath); err != nil {
		return nil, sifterrors.New(sifterrors.ErrCodeIndexUnavailable,
			"no index found at "+dataDir, err).
			WithSuggestion("run 'docsift index <chunks.jsonl>' to build one")
	}

	passages, err := store.NewSQLitePassageStore(passagesPath)
	if err != nil {
		return nil, sifterrors.New(sifterrors.ErrCodeIndexUnavailable,
			"no index found at "+dataDir, err).
			WithSuggestion("run 'docsift index <chunks.jsonl>' to build one")
	}
	defer func() { _ = passages.Close() }()

	count, err := passages.Count(ctx)
	if err != nil {
		return nil, err
	}

	model, _ := passages.GetState(ctx, store.StateKeyIndexModel)

	dims, vectorCount, err := store.ReadVectorIndexStats(filepath.Join(dataDir, VectorsFile))
	if err != nil {
		return nil, sifterrors.New(sifterrors.ErrCodeCorruptIndex,
			"vector index metadata unreadable", err)
	}

	return &Status{
		DataDir:      dataDir,
		PassageCount: count,
		VectorCount:  vectorCount,
		Dimensions:   dims,
		Model:        model,
	}, nil
}
