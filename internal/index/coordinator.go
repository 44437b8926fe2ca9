// Package index owns the persisted index directory: the SQLite passage
// store, the HNSW vector index with its metadata sidecar, and the
// cross-process writer lock. The coordinator keeps the two halves
// consistent with each other and with the configured embedding model.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/docsift/docsift/internal/embed"
	sifterrors "github.com/docsift/docsift/internal/errors"
	"github.com/docsift/docsift/internal/ingest"
	"github.com/docsift/docsift/internal/store"
)

// Index directory layout.
const (
	// PassagesFile is the SQLite passage store inside the data dir.
	PassagesFile = "passages.db"
	// VectorsFile is the HNSW graph inside the data dir. Its gob
	// metadata sidecar lives at VectorsFile + ".meta".
	VectorsFile = "vectors.hnsw"
)

// Config configures the coordinator.
type Config struct {
	// DataDir is the index directory.
	DataDir string

	// Embedder produces passage vectors. The coordinator verifies its
	// model and dimensions against what the index was built with.
	Embedder embed.Embedder

	// BatchSize is how many passages are embedded per batch during
	// ingestion. Defaults to embed.DefaultBatchSize.
	BatchSize int
}

// Coordinator opens and maintains one index directory. It holds an
// exclusive cross-process lock for its lifetime, so two processes
// never write the same index concurrently.
type Coordinator struct {
	dataDir  string
	passages *store.SQLitePassageStore
	vector   *store.VectorIndex
	embedder embed.Embedder
	lock     *DirLock

	batchSize int

	mu     sync.Mutex
	closed bool
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Read     int // passages read from the source
	Inserted int // passages newly added to the store and embedded
	Skipped  int // passages already present (by id)
}

// Status describes the current state of an opened index.
type Status struct {
	DataDir      string `json:"data_dir"`
	PassageCount int    `json:"passage_count"`
	VectorCount  int    `json:"vector_count"`
	Dimensions   int    `json:"dimensions"`
	Model        string `json:"model"`
}

// Open opens or creates the index directory and verifies that its
// persisted state is usable with the given embedder. The returned
// coordinator holds the directory lock until Close.
func Open(ctx context.Context, cfg Config) (*Coordinator, error) {
	if cfg.DataDir == "" {
		return nil, sifterrors.ConfigError("index data directory not set", nil)
	}
	if cfg.Embedder == nil {
		return nil, sifterrors.ConfigError("embedder is required", nil)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeFilePermission, err)
	}

	lock := NewDirLock(cfg.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, sifterrors.Wrap(sifterrors.ErrCodeStoreFailed, err)
	}
	if !acquired {
		return nil, sifterrors.New(sifterrors.ErrCodeStoreFailed,
			fmt.Sprintf("index directory %s is in use by another process", cfg.DataDir), nil).
			WithSuggestion("wait for the other docsift process to finish")
	}

	c := &Coordinator{
		dataDir:   cfg.DataDir,
		embedder:  cfg.Embedder,
		lock:      lock,
		batchSize: cfg.BatchSize,
	}

	if err := c.open(ctx); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) open(ctx context.Context) error {
	passages, err := store.NewSQLitePassageStore(filepath.Join(c.dataDir, PassagesFile))
	if err != nil {
		return err
	}
	c.passages = passages

	vectorPath := filepath.Join(c.dataDir, VectorsFile)
	persistedDims, err := store.ReadVectorIndexDimensions(vectorPath)
	if err != nil {
		_ = passages.Close()
		return sifterrors.New(sifterrors.ErrCodeCorruptIndex,
			"vector index metadata unreadable", err)
	}

	if persistedDims > 0 {
		err = c.loadExisting(ctx, vectorPath, persistedDims)
	} else {
		err = c.createFresh(ctx)
	}
	if err != nil {
		_ = passages.Close()
		return err
	}

	slog.Debug("index opened",
		slog.String("data_dir", c.dataDir),
		slog.Int("vectors", c.vector.Count()),
		slog.String("model", c.embedder.ModelName()))
	return nil
}

// loadExisting loads a persisted vector index and cross-checks it
// against the passage store and the configured embedder.
func (c *Coordinator) loadExisting(ctx context.Context, vectorPath string, dims int) error {
	// Lazily-detecting providers report 0 until their first call;
	// those are checked at Add time by the vector index instead.
	if got := c.embedder.Dimensions(); got != 0 && got != dims {
		return sifterrors.InconsistentState(fmt.Sprintf(
			"index was built with %d-dimensional vectors but embedder %q produces %d",
			dims, c.embedder.ModelName(), got))
	}

	if model, err := c.passages.GetState(ctx, store.StateKeyIndexModel); err == nil &&
		model != "" && model != c.embedder.ModelName() {
		return sifterrors.InconsistentState(fmt.Sprintf(
			"index was built with embedding model %q, configured model is %q",
			model, c.embedder.ModelName()))
	}

	vector, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(dims))
	if err != nil {
		return err
	}
	if err := vector.Load(vectorPath); err != nil {
		_ = vector.Close()
		return err
	}

	passageCount, err := c.passages.Count(ctx)
	if err != nil {
		_ = vector.Close()
		return err
	}
	if vector.Count() != passageCount {
		_ = vector.Close()
		return sifterrors.InconsistentState(fmt.Sprintf(
			"vector index holds %d vectors but the passage store holds %d passages",
			vector.Count(), passageCount))
	}

	c.vector = vector
	return nil
}

// createFresh initializes an empty vector index sized for the embedder
// and records the model identity in the store's state table.
func (c *Coordinator) createFresh(ctx context.Context) error {
	dims := c.embedder.Dimensions()
	if dims == 0 {
		// Providers that detect dimensions lazily report 0 until the
		// first call. Force detection with a probe.
		vec, err := c.embedder.Embed(ctx, "dimension probe")
		if err != nil {
			return sifterrors.EmbeddingFailure("failed to detect embedding dimensions", err)
		}
		dims = len(vec)
	}
	vector, err := store.NewVectorIndex(store.DefaultVectorIndexConfig(dims))
	if err != nil {
		return err
	}

	if err := c.recordModelState(ctx, dims); err != nil {
		_ = vector.Close()
		return err
	}

	c.vector = vector
	return nil
}

func (c *Coordinator) recordModelState(ctx context.Context, dims int) error {
	if err := c.passages.SetState(ctx, store.StateKeyIndexDimension, strconv.Itoa(dims)); err != nil {
		return err
	}
	return c.passages.SetState(ctx, store.StateKeyIndexModel, c.embedder.ModelName())
}

// Ingest reads all passages from the source, stores the new ones,
// embeds them, and persists the updated index. Passages whose id is
// already present are skipped, which makes re-running ingestion over
// the same input a no-op.
func (c *Coordinator) Ingest(ctx context.Context, source ingest.Source) (*IngestStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, sifterrors.InternalError("coordinator is closed", nil)
	}

	read, err := source.Read(ctx)
	if err != nil {
		return nil, err
	}

	inserted, err := c.passages.Add(ctx, read)
	if err != nil {
		return nil, err
	}

	if err := c.embedAndIndex(ctx, inserted); err != nil {
		return nil, err
	}

	if err := c.save(ctx); err != nil {
		return nil, err
	}

	stats := &IngestStats{
		Read:     len(read),
		Inserted: len(inserted),
		Skipped:  len(read) - len(inserted),
	}
	slog.Info("ingestion complete",
		slog.Int("read", stats.Read),
		slog.Int("inserted", stats.Inserted),
		slog.Int("skipped", stats.Skipped))
	return stats, nil
}

// embedAndIndex embeds only the newly inserted passages, batched.
func (c *Coordinator) embedAndIndex(ctx context.Context, passages []*store.Passage) error {
	for start := 0; start < len(passages); start += c.batchSize {
		end := start + c.batchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]

		ids := make([]string, len(batch))
		texts := make([]string, len(batch))
		for i, p := range batch {
			ids[i] = p.ID
			texts[i] = p.Text
		}

		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if sifterrors.GetCode(err) != "" {
				return err
			}
			return sifterrors.EmbeddingFailure("failed to embed passages", err)
		}

		if err := c.vector.Add(ctx, ids, vectors); err != nil {
			return err
		}

		slog.Debug("indexed batch",
			slog.Int("from", start),
			slog.Int("count", len(batch)))
	}
	return nil
}

// Save persists the vector index and model state. The passage store
// persists itself transactionally on every Add.
func (c *Coordinator) Save(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return sifterrors.InternalError("coordinator is closed", nil)
	}
	return c.save(ctx)
}

func (c *Coordinator) save(ctx context.Context) error {
	if err := c.vector.Save(filepath.Join(c.dataDir, VectorsFile)); err != nil {
		return sifterrors.New(sifterrors.ErrCodeStoreFailed,
			"failed to persist vector index", err)
	}
	return c.recordModelState(ctx, c.vector.Dimensions())
}

// Status reports the index state.
func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, sifterrors.InternalError("coordinator is closed", nil)
	}

	count, err := c.passages.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{
		DataDir:      c.dataDir,
		PassageCount: count,
		VectorCount:  c.vector.Count(),
		Dimensions:   c.vector.Dimensions(),
		Model:        c.embedder.ModelName(),
	}, nil
}

// Passages exposes the passage store for the search pipeline.
func (c *Coordinator) Passages() store.PassageStore { return c.passages }

// Vector exposes the vector index for the search pipeline.
func (c *Coordinator) Vector() *store.VectorIndex { return c.vector }

// Embedder exposes the embedder used to build this index.
func (c *Coordinator) Embedder() embed.Embedder { return c.embedder }

// Close releases the store, the vector index, and the directory lock.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.vector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.passages.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
