package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	sifterrors "github.com/docsift/docsift/internal/errors"
)

// VectorIndex is the dense recall index, backed by the coder/hnsw pure
// Go HNSW implementation. All stored vectors are normalized to unit
// length, so cosine distance and inner product give the same ordering
// and score = 1 - distance is the inner product.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig

	// ID mapping (string <-> uint64). Internal keys grow monotonically,
	// so key order is insertion order, which Search uses to break ties.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	loaded bool // at least one Add or a successful Load happened
	closed bool
}

// vectorIndexMetadata stores ID mappings for persistence.
type vectorIndexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorIndexConfig
}

// NewVectorIndex creates a new HNSW-based vector index.
func NewVectorIndex(cfg VectorIndexConfig) (*VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:   graph,
		config:  cfg,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
		nextKey: 0,
	}, nil
}

// Add inserts vectors with their IDs. Vectors are copied and normalized
// to unit length before insertion. If an ID already exists, the new
// vector replaces it.
func (s *VectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}

	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{
				Expected: s.config.Dimensions,
				Got:      len(v),
			}
		}
	}

	for i, id := range ids {
		// If ID exists, use lazy deletion (just update mappings, don't
		// remove from graph). Deleting nodes from coder/hnsw can break
		// the graph when the last node goes.
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		node := hnsw.MakeNode(key, vec)
		s.graph.Add(node)

		s.idMap[id] = key
		s.keyMap[key] = id
	}

	s.loaded = true
	return nil
}

// Search finds the k nearest neighbors to the query vector, scored by
// inner product over unit vectors, descending. Ties are broken by
// insertion order, earliest first. Searching before any Add or Load
// returns an index-unavailable error.
func (s *VectorIndex) Search(ctx context.Context, query []float32, k int) ([]*DenseResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if !s.loaded || len(s.idMap) == 0 {
		return nil, sifterrors.IndexUnavailable("dense index has no vectors")
	}

	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{
			Expected: s.config.Dimensions,
			Got:      len(query),
		}
	}

	if k <= 0 {
		return []*DenseResult{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeVectorInPlace(normalizedQuery)

	nodes := s.graph.Search(normalizedQuery, k)

	type keyed struct {
		result *DenseResult
		key    uint64
	}
	hits := make([]keyed, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			// Lazily deleted node still in the graph
			continue
		}

		distance := s.graph.Distance(normalizedQuery, node.Value)
		hits = append(hits, keyed{
			result: &DenseResult{
				ID:    id,
				Score: 1.0 - float64(distance),
			},
			key: node.Key,
		})
	}

	// Deterministic order: score descending, insertion order on ties
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].key < hits[j].key
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	results := make([]*DenseResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

// Contains checks if ID exists.
func (s *VectorIndex) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	_, exists := s.idMap[id]
	return exists
}

// Count returns the number of indexed vectors.
func (s *VectorIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	return len(s.idMap)
}

// Dimensions returns the configured vector dimension.
func (s *VectorIndex) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.Dimensions
}

// Save persists the index to disk.
// Uses atomic save (temp file + rename) for the graph and the metadata
// sidecar (<path>.meta).
func (s *VectorIndex) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpIndexPath := path + ".tmp"
	file, err := os.Create(tmpIndexPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmpIndexPath, path); err != nil {
		_ = os.Remove(tmpIndexPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	if err := s.saveMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}

	return nil
}

// saveMetadata saves ID mappings to a gob file.
func (s *VectorIndex) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := vectorIndexMetadata{
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Config:  s.config,
	}

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("failed to close temp file during cleanup", slog.String("error", closeErr.Error()))
		}
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load loads the index from disk. A missing file is reported as
// file-not-found; a file that cannot be decoded as corrupt.
func (s *VectorIndex) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	// Load ID mappings first to get config
	if err := s.loadMetadata(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sifterrors.New(sifterrors.ErrCodeFileNotFound,
				fmt.Sprintf("vector index file missing: %s", path), err)
		}
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// coder/hnsw Import requires an io.ByteReader
	reader := bufio.NewReader(file)
	if err := s.graph.Import(reader); err != nil {
		return sifterrors.New(sifterrors.ErrCodeCorruptIndex,
			fmt.Sprintf("failed to import vector graph from %s", path), err)
	}

	// Graph parameters are not part of the export format
	s.graph.Distance = hnsw.CosineDistance
	s.graph.M = s.config.M
	s.graph.EfSearch = s.config.EfSearch
	s.graph.Ml = 0.25

	s.loaded = true
	return nil
}

// loadMetadata loads ID mappings from a gob file.
func (s *VectorIndex) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sifterrors.New(sifterrors.ErrCodeFileNotFound,
				fmt.Sprintf("vector index metadata missing: %s", path), err)
		}
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta vectorIndexMetadata

	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&meta); err != nil {
		return sifterrors.New(sifterrors.ErrCodeCorruptIndex,
			fmt.Sprintf("failed to decode vector metadata from %s", path), err)
	}

	s.idMap = meta.IDMap
	s.keyMap = make(map[uint64]string)
	s.nextKey = meta.NextKey
	s.config = meta.Config

	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	return nil
}

// Close releases resources.
func (s *VectorIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.graph = nil

	return nil
}

// ReadVectorIndexDimensions reads the dimensions from an existing index's
// metadata sidecar. Returns 0 if the metadata file doesn't exist (fresh
// start). The path should be the index path (e.g., "vectors.hnsw"), not
// the meta file path.
func ReadVectorIndexDimensions(vectorPath string) (int, error) {
	metaPath := vectorPath + ".meta"

	file, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // Fresh start
		}
		return 0, fmt.Errorf("failed to open vector metadata: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close vector metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta vectorIndexMetadata
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&meta); err != nil {
		return 0, fmt.Errorf("failed to decode vector metadata: %w", err)
	}

	return meta.Config.Dimensions, nil
}

// ReadVectorIndexStats reads dimensions and vector count from an
// existing index's metadata sidecar without importing the graph.
// Returns zeros if the metadata file doesn't exist.
func ReadVectorIndexStats(vectorPath string) (dims, count int, err error) {
	metaPath := vectorPath + ".meta"

	file, err := os.Open(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to open vector metadata: %w", err)
	}
	defer func() { _ = file.Close() }()

	var meta vectorIndexMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, 0, fmt.Errorf("failed to decode vector metadata: %w", err)
	}

	return meta.Config.Dimensions, len(meta.IDMap), nil
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}
